package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/contentforge/contentforge/internal/job"
	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS job_status (
	job_id     TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	meta       JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at BIGINT NOT NULL
)`

// Postgres is the production Store backed by PostgreSQL.
type Postgres struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgres creates a Postgres store on an established connection pool.
func NewPostgres(db *sqlx.DB, logger *slog.Logger) *Postgres {
	return &Postgres{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the job_status table if it does not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure job_status schema: %w", err)
	}
	return nil
}

// PutStatus upserts the status record for a job. Every write carries a
// fresh updated_at.
func (s *Postgres) PutStatus(ctx context.Context, jobID string, status job.Status, meta job.Meta) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal job meta: %w", err)
	}

	query := `
		INSERT INTO job_status (job_id, status, meta, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_id) DO UPDATE
		SET status = EXCLUDED.status,
		    meta = EXCLUDED.meta,
		    updated_at = EXCLUDED.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, jobID, string(status), metaJSON, job.NowMillis()); err != nil {
		return fmt.Errorf("failed to put job status: %w", err)
	}

	s.logger.Debug("Job status written",
		slog.String("job_id", jobID),
		slog.String("status", string(status)),
	)

	return nil
}

// GetStatus returns the status record for a job, or job.ErrNotFound.
func (s *Postgres) GetStatus(ctx context.Context, jobID string) (*job.Record, error) {
	query := `
		SELECT job_id, status, meta, updated_at
		FROM job_status
		WHERE job_id = $1
	`

	var (
		rec      job.Record
		metaJSON []byte
	)

	err := s.db.QueryRowContext(ctx, query, jobID).Scan(
		&rec.JobID,
		&rec.Status,
		&metaJSON,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, job.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job status: %w", err)
	}

	if err := json.Unmarshal(metaJSON, &rec.Meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job meta: %w", err)
	}

	return &rec, nil
}

// WasCompleted reports whether the job has a sticky completed record.
func (s *Postgres) WasCompleted(ctx context.Context, jobID string) (bool, error) {
	query := `
		SELECT 1
		FROM job_status
		WHERE job_id = $1 AND status = $2
	`

	var one int
	err := s.db.QueryRowContext(ctx, query, jobID, string(job.StatusCompleted)).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check completion: %w", err)
	}

	return true, nil
}
