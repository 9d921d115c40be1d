package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/cashflow/pix-gateway/internal/core"
	"github.com/cashflow/pix-gateway/internal/port/output"
)

const (
	ExchangeName  = "pix.confirmations"
	QueueName     = "confirmation_archive"
	RoutingKey    = "confirmation.terminal"
	PrefetchCount = 1 // Process one message at a time per worker
)

// RabbitMQClient is a secondary adapter that implements ConfirmationPublisher output port
type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *zap.Logger
}

var _ output.ConfirmationPublisher = (*RabbitMQClient)(nil)

// NewRabbitMQClient connects to RabbitMQ and declares the confirmation topology
func NewRabbitMQClient(amqpURL string, logger *zap.Logger) (*RabbitMQClient, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareTopology(channel); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	return &RabbitMQClient{
		conn:    conn,
		channel: channel,
		logger:  logger,
	}, nil
}

func declareTopology(channel *amqp.Channel) error {
	err := channel.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		QueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := channel.QueueBind(QueueName, RoutingKey, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	return nil
}

// PublishConfirmation publishes a terminal confirmation event
func (c *RabbitMQClient) PublishConfirmation(ctx context.Context, evt core.ConfirmationEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = c.channel.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    evt.EventID.String(),
			Type:         evt.EventType,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.logger.Debug("published confirmation",
		zap.String("event_type", evt.EventType),
		zap.String("external_id", evt.ExternalID),
	)
	return nil
}

// ConsumeConfirmations starts consuming confirmation events in the background
func (c *RabbitMQClient) ConsumeConfirmations(ctx context.Context, handler Handler) error {
	if err := c.channel.Qos(PrefetchCount, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := c.channel.ConsumeWithContext(ctx,
		QueueName,
		"",    // consumer tag
		false, // auto-ack (we'll manually ack after processing)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("started consuming confirmations", zap.String("queue", QueueName))

	go func() {
		for msg := range msgs {
			var evt core.ConfirmationEvent
			if err := json.Unmarshal(msg.Body, &evt); err != nil {
				// a malformed body never becomes valid, requeueing would loop forever
				c.logger.Error("dropping malformed message", zap.Error(err))
				msg.Nack(false, false)
				continue
			}

			if err := handler(ctx, evt); err != nil {
				if isTerminalError(err) {
					c.logger.Info("acknowledging already handled event",
						zap.String("event_id", evt.EventID.String()), zap.Error(err))
					msg.Ack(false)
				} else {
					c.logger.Error("requeueing event",
						zap.String("event_id", evt.EventID.String()), zap.Error(err))
					msg.Nack(false, true)
				}
				continue
			}

			msg.Ack(false)
		}
	}()

	return nil
}

// Close closes the RabbitMQ connection
func (c *RabbitMQClient) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
