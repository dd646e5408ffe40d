package main

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/mediagallery/backend/internal/queue"
)

// Discarder destroys the remote object of an abandoned upload intent
type Discarder interface {
	Discard(ctx context.Context, intentID string) error
}

// Worker processes upload compensation tasks
type Worker struct {
	logger    *zap.Logger
	discarder Discarder
}

// NewWorker creates a new worker instance
func NewWorker(logger *zap.Logger, discarder Discarder) *Worker {
	return &Worker{
		logger:    logger,
		discarder: discarder,
	}
}

// HandleUploadDiscard processes an upload:discard task.
// Malformed payloads are not retried; store or database failures are.
func (w *Worker) HandleUploadDiscard(ctx context.Context, t *asynq.Task) error {
	intentID, err := queue.IntentID(t)
	if err != nil {
		w.logger.Error("Invalid discard task", zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	w.logger.Info("Processing discard", zap.String("intent_id", intentID))
	if err := w.discarder.Discard(ctx, intentID); err != nil {
		w.logger.Error("Discard failed", zap.String("intent_id", intentID), zap.Error(err))
		return err
	}
	return nil
}
