package dto

import "github.com/contentforge/contentforge/internal/job"

// EnqueueJobRequest is the body of POST /api/v1/jobs. Event is the
// opaque request context forwarded to the handler untouched.
type EnqueueJobRequest struct {
	JobType string         `json:"job_type" binding:"required"`
	Event   map[string]any `json:"event" binding:"required"`
}

// EnqueueJobResponse acknowledges an accepted job.
type EnqueueJobResponse struct {
	JobID         string `json:"job_id"`
	Status        string `json:"status"`
	QueuePosition int    `json:"queue_position,omitempty"`
}

// JobStatusResponse is the status-polling view of a store record.
type JobStatusResponse struct {
	JobID     string   `json:"job_id"`
	Status    string   `json:"status"`
	UpdatedAt int64    `json:"updated_at"`
	Meta      job.Meta `json:"meta"`
}

// QueueDepthResponse reports the approximate queue backlog.
type QueueDepthResponse struct {
	Depth int `json:"depth"`
}
