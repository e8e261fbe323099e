package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/contentforge/contentforge/internal/job"
)

// Notifier is the best-effort side channel for human-readable status
// updates. Implementations swallow their own errors; nothing the core
// depends on ever comes back from a notification.
type Notifier interface {
	NotifyQueued(ctx context.Context, jobID, email string, position int, excerpt string)
	NotifyCompleted(ctx context.Context, jobID string, result map[string]any, userID string)
	NotifyFailed(ctx context.Context, jobID, friendly, userID string)
}

// Publisher delivers an opaque payload on a named channel. Satisfied by
// the shared Redis client.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Event is the outbound notification envelope consumed by the
// notification service.
type Event struct {
	Kind     string         `json:"kind"`
	JobID    string         `json:"job_id"`
	UserID   string         `json:"user_id,omitempty"`
	Email    string         `json:"email,omitempty"`
	Position int            `json:"position,omitempty"`
	Excerpt  string         `json:"excerpt,omitempty"`
	Result   map[string]any `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
	SentAt   int64          `json:"sent_at"`
}

const (
	kindQueued    = "job_queued"
	kindCompleted = "job_completed"
	kindFailed    = "job_failed"
)

// Redis publishes notification events on a Redis pub/sub channel. The
// notification service consumes them out of process, so a delivery
// failure here is structurally incapable of touching job state.
type Redis struct {
	logger    *slog.Logger
	publisher Publisher
	channel   string
}

// NewRedis creates a Redis-backed notifier publishing on channel.
func NewRedis(publisher Publisher, channel string, logger *slog.Logger) *Redis {
	return &Redis{
		logger:    logger,
		publisher: publisher,
		channel:   channel,
	}
}

// NotifyQueued announces that a job entered the queue, with its
// approximate position and a short excerpt of the request.
func (n *Redis) NotifyQueued(ctx context.Context, jobID, email string, position int, excerpt string) {
	n.publish(ctx, Event{
		Kind:     kindQueued,
		JobID:    jobID,
		Email:    email,
		Position: position,
		Excerpt:  excerpt,
		SentAt:   job.NowMillis(),
	})
}

// NotifyCompleted announces a finished job along with its result.
func (n *Redis) NotifyCompleted(ctx context.Context, jobID string, result map[string]any, userID string) {
	n.publish(ctx, Event{
		Kind:   kindCompleted,
		JobID:  jobID,
		UserID: userID,
		Result: result,
		SentAt: job.NowMillis(),
	})
}

// NotifyFailed announces a failed job with its user-facing message.
func (n *Redis) NotifyFailed(ctx context.Context, jobID, friendly, userID string) {
	n.publish(ctx, Event{
		Kind:   kindFailed,
		JobID:  jobID,
		UserID: userID,
		Error:  friendly,
		SentAt: job.NowMillis(),
	})
}

func (n *Redis) publish(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("Failed to marshal notification event",
			slog.String("kind", event.Kind),
			slog.String("job_id", event.JobID),
			slog.Any("error", err),
		)
		return
	}

	if err := n.publisher.Publish(ctx, n.channel, payload); err != nil {
		n.logger.Warn("Failed to publish notification event",
			slog.String("kind", event.Kind),
			slog.String("job_id", event.JobID),
			slog.Any("error", err),
		)
		return
	}

	n.logger.Debug("Notification event published",
		slog.String("kind", event.Kind),
		slog.String("job_id", event.JobID),
	)
}

// Nop is a Notifier that does nothing. Useful for tests and for
// deployments without a notification service.
type Nop struct{}

func (Nop) NotifyQueued(context.Context, string, string, int, string)       {}
func (Nop) NotifyCompleted(context.Context, string, map[string]any, string) {}
func (Nop) NotifyFailed(context.Context, string, string, string)            {}
