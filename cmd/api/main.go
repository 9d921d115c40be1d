package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	httpadapter "github.com/cashflow/pix-gateway/internal/adapter/primary/http"
	"github.com/cashflow/pix-gateway/internal/adapter/primary/scheduler"
	"github.com/cashflow/pix-gateway/internal/adapter/secondary/database"
	"github.com/cashflow/pix-gateway/internal/adapter/secondary/gateway"
	"github.com/cashflow/pix-gateway/internal/adapter/secondary/memory"
	"github.com/cashflow/pix-gateway/internal/adapter/secondary/messaging"
	"github.com/cashflow/pix-gateway/internal/adapter/secondary/redisstore"
	"github.com/cashflow/pix-gateway/internal/config"
	"github.com/cashflow/pix-gateway/internal/constant/model/db"
	"github.com/cashflow/pix-gateway/internal/core/service"
	"github.com/cashflow/pix-gateway/internal/logging"
	"github.com/cashflow/pix-gateway/internal/port/output"
	"github.com/cashflow/pix-gateway/internal/telemetry"
)

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

	var transport http.RoundTripper
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint, logger)
		if err != nil {
			logger.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		defer shutdown(context.Background())
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}

	// Secondary adapters: confirmation store and event log
	store, events, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open confirmation store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer closeStore()

	// Secondary adapter: confirmation publisher
	publisher, err := openPublisher(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open event publisher", zap.String("driver", cfg.Events.Driver), zap.Error(err))
	}
	defer publisher.Close()

	// Secondary adapters: payment gateways
	adapters := gateway.NewAdapters(cfg.GatewayConfigs(transport), logger)

	// Core service (implements input port)
	confirmationService := service.NewConfirmationService(store, events, publisher, adapters, logger,
		service.WithUnknownStatusPolicy(cfg.UnknownStatusPolicy()),
	)

	sweeper, err := scheduler.NewSweeper(store, cfg.Store.SweepSchedule, logger)
	if err != nil {
		logger.Fatal("Failed to schedule expiry sweep", zap.Error(err))
	}
	sweeper.Start()
	defer sweeper.Stop()

	// Primary adapter: HTTP handler (uses input port)
	handler := httpadapter.NewConfirmationHandler(confirmationService, logger)
	e := httpadapter.NewServer(handler, logger, cfg.HTTP.BodyLimit)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpadapter.Instrument(e, cfg.Telemetry.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting API server",
			zap.String("addr", cfg.HTTP.Addr),
			zap.String("store", cfg.Store.Driver),
			zap.String("events", cfg.Events.Driver),
			zap.Int("gateways", len(adapters)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (output.ConfirmationStore, output.EventLog, func(), error) {
	switch cfg.Store.Driver {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s := redisstore.NewStore(rdb, cfg.Redis.Prefix)
		return s, s, func() { rdb.Close() }, nil

	case "postgres":
		dbConn, err := db.NewDB(cfg.Database.URL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		repo := database.NewGormConfirmationRepository(dbConn.DB)
		return repo, repo, func() { dbConn.Close() }, nil
	}

	logger.Warn("Using in-memory store, confirmations are lost on restart")
	s := memory.NewStore()
	return s, s, func() {}, nil
}

func openPublisher(cfg *config.Config, logger *zap.Logger) (output.ConfirmationPublisher, error) {
	switch cfg.Events.Driver {
	case "rabbitmq":
		client, err := messaging.NewRabbitMQClient(cfg.RabbitMQ.URL, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "kafka":
		return messaging.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger), nil
	}
	return messaging.NopPublisher{}, nil
}
