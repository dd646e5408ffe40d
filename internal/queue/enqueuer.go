// Package queue carries compensation work for abandoned upload intents over asynq
package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

// TypeUploadDiscard is the task type that destroys the remote object of an abandoned upload intent.
// The payload is the intent ID.
const TypeUploadDiscard = "upload:discard"

// discardMaxRetry bounds how often the worker retries a failed discard
const discardMaxRetry = 5

// TaskClient is the part of *asynq.Client the enqueuer needs
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer schedules discard tasks on a single queue
type Enqueuer struct {
	client TaskClient
	queue  string
}

// NewEnqueuer creates an enqueuer that publishes to queue
func NewEnqueuer(client TaskClient, queue string) *Enqueuer {
	return &Enqueuer{client: client, queue: queue}
}

// EnqueueDiscard schedules the discard of intentID.
// The task ID is derived from the intent so repeated sweeps never queue the same intent twice.
func (e *Enqueuer) EnqueueDiscard(ctx context.Context, intentID string) error {
	if intentID == "" {
		return fmt.Errorf("intent id is required")
	}

	task := asynq.NewTask(TypeUploadDiscard, []byte(intentID))
	_, err := e.client.EnqueueContext(ctx, task,
		asynq.Queue(e.queue),
		asynq.TaskID(DiscardTaskID(intentID)),
		asynq.MaxRetry(discardMaxRetry),
	)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("failed to enqueue discard of intent %s: %w", intentID, err)
	}
	return nil
}

// DiscardTaskID returns the deduplication ID of the discard task for intentID
func DiscardTaskID(intentID string) string {
	return "discard:" + intentID
}

// IntentID extracts the intent ID from a discard task
func IntentID(task *asynq.Task) (string, error) {
	if task.Type() != TypeUploadDiscard {
		return "", fmt.Errorf("unexpected task type %q", task.Type())
	}
	id := string(task.Payload())
	if id == "" {
		return "", fmt.Errorf("discard task without intent id")
	}
	return id, nil
}
