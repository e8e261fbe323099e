package job

import (
	"errors"
	"time"
)

// Type selects the handler that processes a job. The set is closed;
// an unknown type is resolved to a failed status, never a crash.
type Type string

const (
	TypeContentGenerate Type = "CONTENT_GENERATE"
)

// Status values for the job state machine. failed is not terminal:
// queue redelivery legitimately re-enters in_progress. completed is
// sticky, no handler runs again for a completed job_id.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var (
	// ErrNotFound is returned when a job has no store record
	ErrNotFound = errors.New("job not found")

	// ErrMalformedMessage is returned when a queue message body cannot be decoded
	ErrMalformedMessage = errors.New("malformed queue message")

	// ErrMissingJobID is returned when a decodable message carries no job_id
	ErrMissingJobID = errors.New("queue message missing job_id")
)

// Record is a job's entry in the status store, keyed by JobID.
type Record struct {
	JobID     string `json:"job_id" db:"job_id"`
	Status    Status `json:"status" db:"status"`
	UpdatedAt int64  `json:"updated_at" db:"updated_at"`
	Meta      Meta   `json:"meta"`
}

// Meta carries the status-specific attributes of a store record.
// Timestamps are epoch milliseconds.
type Meta struct {
	QueuedAt    int64          `json:"queued_at,omitempty"`
	StartedAt   int64          `json:"started_at,omitempty"`
	CompletedAt int64          `json:"completed_at,omitempty"`
	FailedAt    int64          `json:"failed_at,omitempty"`
	Attempts    int            `json:"attempts,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	Result      map[string]any `json:"result,omitempty"`

	// Error is the short user-facing failure message; TechnicalError
	// preserves the raw diagnostic text for operators.
	Error          string `json:"error,omitempty"`
	TechnicalError string `json:"technical_error,omitempty"`
}

// NowMillis returns the current time as epoch milliseconds, the
// timestamp unit used on the wire and in the store.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
