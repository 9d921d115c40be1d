package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/cashflow/pix-gateway/internal/core"
	"github.com/cashflow/pix-gateway/internal/port/output"
)

// DefaultTopic is the Kafka topic for confirmation events
const DefaultTopic = "pix.confirmations.v1"

// KafkaPublisher implements ConfirmationPublisher on a Kafka topic
type KafkaPublisher struct {
	w      *kafka.Writer
	logger *zap.Logger
}

var _ output.ConfirmationPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher writing to topic
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{}, // partition by external ID
			RequiredAcks: kafka.RequireAll,
		},
		logger: logger,
	}
}

// PublishConfirmation writes evt keyed by external ID to keep per-payment ordering
func (p *KafkaPublisher) PublishConfirmation(ctx context.Context, evt core.ConfirmationEvent) error {
	val, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	err = p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.ExternalID),
		Value: val,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(evt.EventType)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// KafkaConsumer reads confirmation events as part of a consumer group
type KafkaConsumer struct {
	r            *kafka.Reader
	logger       *zap.Logger
	retryInitial time.Duration
	retryMax     time.Duration
}

// NewKafkaConsumer creates a consumer for topic in group
func NewKafkaConsumer(brokers []string, topic, group string, logger *zap.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  group,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		logger:       logger,
		retryInitial: 200 * time.Millisecond,
		retryMax:     30 * time.Second,
	}
}

// ConsumeConfirmations starts consuming in the background until ctx is done.
// Kafka cannot requeue a single message, so transient failures are retried
// in place and the offset is committed only once the event is handled or
// known to be terminal. Delivery is at least once.
func (c *KafkaConsumer) ConsumeConfirmations(ctx context.Context, handler Handler) error {
	c.logger.Info("started consuming confirmations", zap.String("topic", c.r.Config().Topic))

	go func() {
		for {
			msg, err := c.r.FetchMessage(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					c.logger.Error("kafka fetch failed", zap.Error(err))
				}
				return
			}

			if !c.handle(ctx, handler, msg) {
				// uncommitted, the group redelivers it after a rebalance or restart
				return
			}

			if err := c.r.CommitMessages(ctx, msg); err != nil {
				c.logger.Error("kafka commit failed", zap.Error(err))
			}
		}
	}()
	return nil
}

// handle reports whether msg may be committed
func (c *KafkaConsumer) handle(ctx context.Context, handler Handler, msg kafka.Message) bool {
	var evt core.ConfirmationEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		c.logger.Error("dropping malformed message", zap.Int64("offset", msg.Offset), zap.Error(err))
		return true
	}

	policy := backoff.WithContext(
		backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(c.retryInitial),
			backoff.WithMaxInterval(c.retryMax),
			backoff.WithMaxElapsedTime(0),
		),
		ctx,
	)
	err := backoff.RetryNotify(func() error {
		err := handler(ctx, evt)
		if err != nil && isTerminalError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		c.logger.Warn("retrying event", zap.String("event_id", evt.EventID.String()), zap.Duration("wait", wait), zap.Error(err))
	})

	switch {
	case err == nil:
		return true
	case isTerminalError(err):
		c.logger.Info("skipping already handled event", zap.String("event_id", evt.EventID.String()), zap.Error(err))
		return true
	default:
		c.logger.Warn("leaving event uncommitted", zap.String("event_id", evt.EventID.String()), zap.Error(err))
		return false
	}
}

func (c *KafkaConsumer) Close() error { return c.r.Close() }
