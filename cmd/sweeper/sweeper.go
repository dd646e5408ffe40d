package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mediagallery/backend/internal/models"
)

const sweepLockKey = "media-gallery:sweep:lock"

// releaseScript deletes the lock only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// SweepRunner runs one sweep pass over the upload intents
type SweepRunner interface {
	Sweep(ctx context.Context) (*models.SweepResult, error)
}

// Locker guards a sweep pass so only one sweeper instance runs it
type Locker interface {
	// TryLock acquires the lock for ttl, returning false if another holder has it
	TryLock(ctx context.Context, token string, ttl time.Duration) (bool, error)
	// Unlock releases the lock if token still holds it
	Unlock(ctx context.Context, token string) error
}

// redisLocker is a SETNX based Locker
type redisLocker struct {
	client *redis.Client
	key    string
}

// NewRedisLocker creates a Locker on key
func NewRedisLocker(client *redis.Client, key string) Locker {
	return &redisLocker{client: client, key: key}
}

func (l *redisLocker) TryLock(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	return ok, nil
}

func (l *redisLocker) Unlock(ctx context.Context, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release sweep lock: %w", err)
	}
	return nil
}

// Sweeper runs the intent sweep on a cron schedule
type Sweeper struct {
	cron    *cron.Cron
	locker  Locker
	runner  SweepRunner
	lockTTL time.Duration
	logger  *zap.Logger
}

// NewSweeper creates a new sweeper instance
func NewSweeper(locker Locker, runner SweepRunner, lockTTL time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		cron:    cron.New(),
		locker:  locker,
		runner:  runner,
		lockTTL: lockTTL,
		logger:  logger,
	}
}

// Start schedules the sweep and starts the cron loop
func (s *Sweeper) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.runOnce(context.Background()) }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	s.logger.Info("Sweeper started", zap.String("schedule", schedule))
	return nil
}

// Stop stops the cron loop and waits for a running pass to finish
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Sweeper stopped")
}

// runOnce runs a single sweep pass if the lock can be taken
func (s *Sweeper) runOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.lockTTL)
	defer cancel()

	token := uuid.NewString()
	acquired, err := s.locker.TryLock(ctx, token, s.lockTTL)
	if err != nil {
		s.logger.Error("Sweep skipped", zap.Error(err))
		return
	}
	if !acquired {
		s.logger.Debug("Sweep already running elsewhere")
		return
	}
	defer func() {
		if err := s.locker.Unlock(context.Background(), token); err != nil {
			s.logger.Warn("Sweep lock not released", zap.Error(err))
		}
	}()

	result, err := s.runner.Sweep(ctx)
	if err != nil {
		s.logger.Error("Sweep failed", zap.Error(err))
		return
	}
	s.logger.Debug("Sweep finished",
		zap.Int("expired", result.Expired),
		zap.Int("enqueued", result.Enqueued),
	)
}
