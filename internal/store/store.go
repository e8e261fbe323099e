package store

import (
	"context"

	"github.com/contentforge/contentforge/internal/job"
)

// Store is the keyed status repository for jobs. It is the single
// source of truth read by the worker's idempotency guard and by the
// status-polling API. Writes are upserts keyed by job_id; there is no
// store-level locking, single-writer-per-job is guaranteed by the
// queue's redelivery window.
type Store interface {
	// PutStatus upserts the record for jobID with a fresh updated_at.
	PutStatus(ctx context.Context, jobID string, status job.Status, meta job.Meta) error

	// GetStatus returns the record for jobID, or job.ErrNotFound.
	GetStatus(ctx context.Context, jobID string) (*job.Record, error)

	// WasCompleted reports whether jobID has reached completed. It is
	// the idempotency primitive and must see the store's own latest
	// write (read-your-own-write).
	WasCompleted(ctx context.Context, jobID string) (bool, error)
}
