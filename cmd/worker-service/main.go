package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contentforge/contentforge/internal/config"
	"github.com/contentforge/contentforge/internal/content"
	"github.com/contentforge/contentforge/internal/engine"
	"github.com/contentforge/contentforge/internal/job"
	"github.com/contentforge/contentforge/internal/notify"
	"github.com/contentforge/contentforge/internal/queue"
	"github.com/contentforge/contentforge/internal/store"
	"github.com/contentforge/contentforge/internal/worker"
	"github.com/contentforge/contentforge/shared/logger"
	"github.com/contentforge/contentforge/shared/postgresql"
	"github.com/contentforge/contentforge/shared/rabbitmq"
	"github.com/contentforge/contentforge/shared/redis"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorker(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	appLogger.Info("Database connection established")

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	appLogger.Info("RabbitMQ connection established")

	notifier, redisClient, err := initNotifier(&cfg.Redis, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize notifier: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	jobStore := store.NewPostgres(dbClient.GetDB(), appLogger.Logger)

	schemaCtx, schemaCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer schemaCancel()
	if err := jobStore.EnsureSchema(schemaCtx); err != nil {
		return fmt.Errorf("failed to ensure store schema: %w", err)
	}

	queueClient := queue.NewAMQP(rabbitClient, cfg.RabbitMQ.ReceiveWait, appLogger.Logger)

	generator := content.NewHTTPGenerator(cfg.Generator.URL, cfg.Generator.Timeout, appLogger.Logger)

	jobEngine := engine.New(appLogger.Logger, jobStore, notifier)
	jobEngine.Register(job.TypeContentGenerate, generator.Generate)

	workerInstance := worker.New(&worker.Config{
		Logger:                appLogger.Logger,
		Queue:                 queueClient,
		Store:                 jobStore,
		Engine:                jobEngine,
		IdleSleep:             cfg.Worker.IdleSleep,
		ReceiveBackoffInitial: cfg.Worker.ReceiveBackoffInitial,
		ReceiveBackoffMax:     cfg.Worker.ReceiveBackoffMax,
		MaxAttempts:           cfg.Worker.MaxAttempts,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Run(ctx); err != nil {
			errChan <- err
		}
		close(errChan)
	}()

	appLogger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		if err != nil {
			appLogger.Error("Worker error",
				slog.Any("error", err),
			)
			return err
		}
	}

	// Cancel context to stop the worker after the in-flight message
	// settles.
	cancel()

	select {
	case <-errChan:
		appLogger.Info("Worker stopped gracefully")
	case <-time.After(30 * time.Second):
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	return postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
		Host:              cfg.Host,
		Port:              cfg.Port,
		User:              cfg.User,
		Password:          cfg.Password,
		VHost:             cfg.VHost,
		Exchange:          cfg.Exchange,
		Queue:             cfg.Queue,
		RoutingKey:        cfg.RoutingKey,
		VisibilityTimeout: cfg.VisibilityTimeout,
		RetryAttempts:     cfg.Connection.RetryAttempts,
		RetryInterval:     cfg.Connection.RetryInterval,
		Heartbeat:         cfg.Connection.Heartbeat,
		ConnectionTimeout: cfg.Connection.ConnectionTimeout,
	}, logger)
}

// initNotifier wires the Redis-backed notifier, or a no-op one when no
// Redis host is configured.
func initNotifier(cfg *config.RedisConfig, logger *slog.Logger) (notify.Notifier, *redis.Client, error) {
	if cfg.Host == "" {
		logger.Warn("Redis not configured, notifications disabled")
		return notify.Nop{}, nil, nil
	}

	redisClient, err := redis.NewClient(&redis.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	return notify.NewRedis(redisClient, cfg.Channel, logger), redisClient, nil
}
