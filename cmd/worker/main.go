package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cashflow/pix-gateway/internal/adapter/secondary/database"
	"github.com/cashflow/pix-gateway/internal/adapter/secondary/messaging"
	"github.com/cashflow/pix-gateway/internal/config"
	"github.com/cashflow/pix-gateway/internal/constant/model/db"
	"github.com/cashflow/pix-gateway/internal/core/service"
	"github.com/cashflow/pix-gateway/internal/logging"
)

type consumer interface {
	ConsumeConfirmations(ctx context.Context, handler messaging.Handler) error
	Close() error
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize secondary adapter: Database
	dbConn, err := db.NewDB(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbConn.Close()

	// Initialize core service: archive processor
	processor := service.NewArchiveProcessor(database.NewGormArchiveRepository(dbConn.DB), logger)

	// Initialize secondary adapter: Messaging
	var c consumer
	switch cfg.Events.Driver {
	case "rabbitmq":
		client, err := messaging.NewRabbitMQClient(cfg.RabbitMQ.URL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		c = client
	case "kafka":
		c = messaging.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, logger)
	default:
		logger.Fatal("Worker needs EVENTS_DRIVER=rabbitmq or kafka", zap.String("driver", cfg.Events.Driver))
	}
	defer c.Close()

	// Start consuming messages
	if err := c.ConsumeConfirmations(ctx, processor.Process); err != nil {
		logger.Fatal("Failed to start consuming messages", zap.Error(err))
	}

	logger.Info("Confirmation worker started. Press CTRL+C to exit.", zap.String("driver", cfg.Events.Driver))

	<-ctx.Done()
	logger.Info("Shutting down worker...")
}
