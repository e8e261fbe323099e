package enqueue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/contentforge/contentforge/internal/job"
	"github.com/contentforge/contentforge/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureQueue records enqueued bodies.
type captureQueue struct {
	bodies     [][]byte
	enqueueErr error
}

func (q *captureQueue) Enqueue(_ context.Context, body []byte) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.bodies = append(q.bodies, body)
	return nil
}

func (q *captureQueue) ReceiveOne(context.Context) (*queue.Delivery, error) { return nil, nil }
func (q *captureQueue) Acknowledge(*queue.Delivery) error                   { return nil }
func (q *captureQueue) Retain(*queue.Delivery) error                        { return nil }
func (q *captureQueue) ApproximateDepth(context.Context) (int, error)       { return 0, nil }
func (q *captureQueue) Healthy() bool                                       { return true }

func TestEnqueueJob(t *testing.T) {
	q := &captureQueue{}
	e := New(q, slog.New(slog.NewTextHandler(io.Discard, nil)))

	event := map[string]any{
		"prompt":  "draw a lighthouse",
		"user_id": "user@example.com",
	}

	jobID, err := e.EnqueueJob(context.Background(), event, job.TypeContentGenerate)
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)

	require.Len(t, q.bodies, 1)
	msg, err := job.DecodeMessage(q.bodies[0])
	require.NoError(t, err)

	assert.Equal(t, jobID, msg.JobID)
	assert.Equal(t, job.TypeContentGenerate, msg.JobType)
	assert.Equal(t, "user@example.com", msg.UserID)
	assert.Equal(t, "draw a lighthouse", msg.Event["prompt"])
	assert.Positive(t, msg.EnqueuedAt)
}

func TestEnqueueJob_QueueFailureIsHardError(t *testing.T) {
	q := &captureQueue{enqueueErr: errors.New("broker unavailable")}
	e := New(q, slog.New(slog.NewTextHandler(io.Discard, nil)))

	jobID, err := e.EnqueueJob(context.Background(), map[string]any{}, job.TypeContentGenerate)

	require.Error(t, err)
	assert.Empty(t, jobID)
	assert.Contains(t, err.Error(), "broker unavailable")
}

func TestEnqueueJob_FreshIDPerCall(t *testing.T) {
	q := &captureQueue{}
	e := New(q, slog.New(slog.NewTextHandler(io.Discard, nil)))

	id1, err := e.EnqueueJob(context.Background(), map[string]any{}, job.TypeContentGenerate)
	require.NoError(t, err)
	id2, err := e.EnqueueJob(context.Background(), map[string]any{}, job.TypeContentGenerate)
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
}

func TestResolveUserID(t *testing.T) {
	tests := []struct {
		name  string
		event map[string]any
		want  string
	}{
		{
			name:  "explicit user_id wins",
			event: map[string]any{"user_id": "alice@example.com"},
			want:  "alice@example.com",
		},
		{
			name: "explicit user_id wins over headers",
			event: map[string]any{
				"user_id": "alice@example.com",
				"headers": map[string]any{"x-user-id": "bob@example.com"},
			},
			want: "alice@example.com",
		},
		{
			name: "header lookup",
			event: map[string]any{
				"headers": map[string]any{"x-user-id": "bob@example.com"},
			},
			want: "bob@example.com",
		},
		{
			name: "header lookup is case insensitive",
			event: map[string]any{
				"headers": map[string]any{"X-User-Email": "carol@example.com"},
			},
			want: "carol@example.com",
		},
		{
			name: "known header order preferred",
			event: map[string]any{
				"headers": map[string]any{
					"user-email": "second@example.com",
					"X-USER-ID":  "first@example.com",
				},
			},
			want: "first@example.com",
		},
		{
			name: "empty header value skipped",
			event: map[string]any{
				"headers": map[string]any{
					"x-user-id":  "",
					"user-email": "fallback@example.com",
				},
			},
			want: "fallback@example.com",
		},
		{
			name:  "no identity at all",
			event: map[string]any{"prompt": "hello"},
			want:  AnonymousUser,
		},
		{
			name:  "empty user_id falls through",
			event: map[string]any{"user_id": ""},
			want:  AnonymousUser,
		},
		{
			name:  "non-string user_id ignored",
			event: map[string]any{"user_id": 42},
			want:  AnonymousUser,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveUserID(tt.event))
		})
	}
}
