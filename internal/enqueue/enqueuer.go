package enqueue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/contentforge/contentforge/internal/job"
	"github.com/contentforge/contentforge/internal/queue"
)

// userIDHeaders are the request headers consulted, in order, when the
// event carries no explicit user_id.
var userIDHeaders = []string{
	"x-user-id",
	"x-user-email",
	"x-forwarded-user",
	"user-email",
}

// AnonymousUser is the attribution used when no user can be resolved
// from the event.
const AnonymousUser = "anonymous"

// Enqueuer builds job envelopes and submits them to the queue. It never
// writes the job store; status writes stay on the single worker path.
type Enqueuer struct {
	logger *slog.Logger
	queue  queue.Client
}

// New creates an Enqueuer on the given queue client.
func New(q queue.Client, logger *slog.Logger) *Enqueuer {
	return &Enqueuer{
		logger: logger,
		queue:  q,
	}
}

// EnqueueJob assigns a fresh job_id, resolves a best-effort user_id
// from the event, and publishes the envelope. The returned job_id is
// what callers poll status with. Enqueue failure is a hard error.
func (e *Enqueuer) EnqueueJob(ctx context.Context, event map[string]any, jobType job.Type) (string, error) {
	msg := &job.Message{
		JobID:      job.NewID(),
		JobType:    jobType,
		EnqueuedAt: job.NowMillis(),
		Event:      event,
		UserID:     ResolveUserID(event),
	}

	body, err := msg.Encode()
	if err != nil {
		return "", fmt.Errorf("failed to build job envelope: %w", err)
	}

	if err := e.queue.Enqueue(ctx, body); err != nil {
		return "", fmt.Errorf("failed to enqueue job %s: %w", msg.JobID, err)
	}

	e.logger.Info("Job enqueued",
		slog.String("job_id", msg.JobID),
		slog.String("job_type", string(jobType)),
		slog.String("user_id", msg.UserID),
	)

	return msg.JobID, nil
}

// ResolveUserID extracts the requesting user from an event: an explicit
// user_id field wins, then a case-insensitive lookup across the known
// identity headers, then the anonymous fallback.
func ResolveUserID(event map[string]any) string {
	if id, ok := event["user_id"].(string); ok && id != "" {
		return id
	}

	headers, ok := event["headers"].(map[string]any)
	if !ok {
		return AnonymousUser
	}

	for _, name := range userIDHeaders {
		for key, value := range headers {
			if !strings.EqualFold(key, name) {
				continue
			}
			if s, ok := value.(string); ok && s != "" {
				return s
			}
		}
	}

	return AnonymousUser
}
