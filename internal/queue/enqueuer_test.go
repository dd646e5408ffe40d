package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTaskClient is a mock implementation of TaskClient
type mockTaskClient struct {
	err   error
	tasks []*asynq.Task
	opts  [][]asynq.Option
}

func (m *mockTaskClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	m.tasks = append(m.tasks, task)
	m.opts = append(m.opts, opts)
	if m.err != nil {
		return nil, m.err
	}
	return &asynq.TaskInfo{ID: DiscardTaskID(string(task.Payload())), Queue: "reconcile"}, nil
}

func optionValues(opts []asynq.Option) map[asynq.OptionType]any {
	values := make(map[asynq.OptionType]any, len(opts))
	for _, opt := range opts {
		values[opt.Type()] = opt.Value()
	}
	return values
}

func TestEnqueuer_EnqueueDiscard(t *testing.T) {
	tests := []struct {
		name          string
		intentID      string
		clientErr     error
		expectedError bool
		expectedCalls int
	}{
		{
			name:          "success",
			intentID:      "intent-1",
			expectedCalls: 1,
		},
		{
			name:          "already queued is not an error",
			intentID:      "intent-1",
			clientErr:     asynq.ErrTaskIDConflict,
			expectedCalls: 1,
		},
		{
			name:          "redis failure",
			intentID:      "intent-1",
			clientErr:     errors.New("connection refused"),
			expectedError: true,
			expectedCalls: 1,
		},
		{
			name:          "empty intent id",
			expectedError: true,
			expectedCalls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockTaskClient{err: tt.clientErr}
			enqueuer := NewEnqueuer(client, "reconcile")

			err := enqueuer.EnqueueDiscard(context.Background(), tt.intentID)

			if tt.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			require.Len(t, client.tasks, tt.expectedCalls)
			if tt.expectedCalls == 0 {
				return
			}

			task := client.tasks[0]
			assert.Equal(t, TypeUploadDiscard, task.Type())
			assert.Equal(t, []byte(tt.intentID), task.Payload())

			values := optionValues(client.opts[0])
			assert.Equal(t, "reconcile", values[asynq.QueueOpt])
			assert.Equal(t, "discard:"+tt.intentID, values[asynq.TaskIDOpt])
			assert.Equal(t, discardMaxRetry, values[asynq.MaxRetryOpt])
		})
	}
}

func TestIntentID(t *testing.T) {
	id, err := IntentID(asynq.NewTask(TypeUploadDiscard, []byte("intent-1")))
	require.NoError(t, err)
	assert.Equal(t, "intent-1", id)

	_, err = IntentID(asynq.NewTask(TypeUploadDiscard, nil))
	assert.Error(t, err)

	_, err = IntentID(asynq.NewTask("other:task", []byte("intent-1")))
	assert.Error(t, err)
}
