package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/mediagallery/backend/internal/queue"
	"github.com/mediagallery/backend/internal/repositories"
	"github.com/mediagallery/backend/internal/services"
	"github.com/mediagallery/backend/internal/storage"
	"github.com/mediagallery/backend/libs/config"
	"github.com/mediagallery/backend/libs/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting Media Gallery Worker")

	// The worker only destroys remote objects, so it cannot run without credentials
	if err := cfg.MediaStore.Validate(); err != nil {
		logger.Logger.Fatal("Media store is not configured", zap.Error(err))
	}

	// Connect to database
	db, err := connectDB(cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Connect to Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// Test Redis connection
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	// Initialize dependencies
	store := storage.NewClient(cfg.MediaStore, logger.Logger)
	assetRepo := repositories.NewMediaAssetRepository(db)
	intentRepo := repositories.NewUploadIntentRepository(db)
	// Discard never enqueues, so the reconcile service runs without an enqueuer here
	reconcileService := services.NewReconcileService(intentRepo, assetRepo, store, nil, cfg.Sweep, logger.Logger)

	// Create Asynq server
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Queues: map[string]int{
				cfg.Sweep.DiscardQueue: 1,
			},
			Logger: logger.Logger.Sugar(),
		},
	)

	// Register task handlers
	worker := NewWorker(logger.Logger, reconcileService)
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeUploadDiscard, worker.HandleUploadDiscard)

	// Start worker
	go func() {
		if err := srv.Run(mux); err != nil {
			logger.Logger.Fatal("Failed to start worker", zap.Error(err))
		}
	}()

	logger.Logger.Info("Worker started", zap.String("queue", cfg.Sweep.DiscardQueue))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down worker...")
	srv.Shutdown()
	logger.Logger.Info("Worker exited")
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
