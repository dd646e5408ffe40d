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

	logger.Logger.Info("Starting Media Gallery Sweeper")

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

	// Create Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize dependencies; the sweep never calls the media store
	assetRepo := repositories.NewMediaAssetRepository(db)
	intentRepo := repositories.NewUploadIntentRepository(db)
	enqueuer := queue.NewEnqueuer(asynqClient, cfg.Sweep.DiscardQueue)
	reconcileService := services.NewReconcileService(intentRepo, assetRepo, nil, enqueuer, cfg.Sweep, logger.Logger)

	// Start sweeper
	sweeper := NewSweeper(NewRedisLocker(rdb, sweepLockKey), reconcileService, cfg.Sweep.LockTTL, logger.Logger)
	if err := sweeper.Start(cfg.Sweep.Schedule); err != nil {
		logger.Logger.Fatal("Failed to start sweeper", zap.Error(err))
	}
	defer func() {
		logger.Logger.Info("Shutting down sweeper...")
		sweeper.Stop()
		logger.Logger.Info("Sweeper exited")
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
