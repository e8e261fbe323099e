package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/contentforge/contentforge/internal/job"
	"github.com/contentforge/contentforge/internal/notify"
	"github.com/contentforge/contentforge/internal/store"
)

// HandlerFunc executes one job. It receives the original request event
// and returns a result map carrying at least one artifact reference, or
// an error. Handlers know nothing about queue or store mechanics.
type HandlerFunc func(ctx context.Context, event map[string]any) (map[string]any, error)

// Outcome reports how a dispatch resolved. It is informational: by the
// time RunJob returns, the terminal status is already persisted and the
// notification attempt already made.
type Outcome struct {
	Status         job.Status
	Result         map[string]any
	Friendly       string
	TechnicalError string
}

// Engine maps job types to handlers and drives the state transitions
// around handler execution. RunJob never panics and never reports an
// error to its caller; one poisoned job must not be able to take down
// the consumption loop.
type Engine struct {
	logger   *slog.Logger
	store    store.Store
	notifier notify.Notifier
	handlers map[job.Type]HandlerFunc
}

// New creates an Engine with an empty handler registry.
func New(logger *slog.Logger, st store.Store, notifier notify.Notifier) *Engine {
	return &Engine{
		logger:   logger,
		store:    st,
		notifier: notifier,
		handlers: make(map[job.Type]HandlerFunc),
	}
}

// Register binds a handler to a job type. Adding a job type is a
// registration call at startup, not a change to dispatch logic.
func (e *Engine) Register(t job.Type, h HandlerFunc) {
	e.handlers[t] = h
}

// RunJob executes the state machine for one delivered message:
// in_progress before the handler, then completed or failed depending on
// the handler result. attempts is the delivery attempt number, carried
// on every transition write so redeliveries can keep counting. Every
// path ends in a store write plus a best-effort notification, and
// control always returns normally.
func (e *Engine) RunJob(ctx context.Context, msg *job.Message, attempts int) Outcome {
	handler, ok := e.handlers[msg.JobType]
	if !ok {
		// Unknown type short-circuits to failed; in_progress is never
		// recorded and no handler runs.
		technical := fmt.Sprintf("no handler registered for job type %q", msg.JobType)
		return e.Fail(ctx, msg, attempts, MsgInvalidJobType, technical)
	}

	e.putStatus(ctx, msg.JobID, job.StatusInProgress, job.Meta{
		StartedAt: job.NowMillis(),
		Attempts:  attempts,
	})

	result, err := e.invoke(ctx, handler, msg)
	if err != nil {
		return e.Fail(ctx, msg, attempts, FriendlyMessage(err.Error()), err.Error())
	}

	if errText, flagged := resultError(result); flagged {
		return e.Fail(ctx, msg, attempts, FriendlyMessage(errText), errText)
	}

	// A well-formed but artifact-free result is a failure. Success
	// means the handler produced something, not merely that it did not
	// blow up.
	if !hasArtifacts(result) {
		technical := fmt.Sprintf("handler for %q returned no artifacts", msg.JobType)
		return e.Fail(ctx, msg, attempts, MsgEmptyResult, technical)
	}

	e.putStatus(ctx, msg.JobID, job.StatusCompleted, job.Meta{
		CompletedAt: job.NowMillis(),
		Attempts:    attempts,
		Result:      result,
	})

	e.notifier.NotifyCompleted(ctx, msg.JobID, result, msg.UserID)

	e.logger.Info("Job completed",
		slog.String("job_id", msg.JobID),
		slog.String("job_type", string(msg.JobType)),
	)

	return Outcome{Status: job.StatusCompleted, Result: result}
}

// Fail resolves a job to failed with a friendly/technical message pair,
// writes the store record, and makes the best-effort failure
// notification. Exported so the worker can settle jobs it refuses to
// dispatch, such as an exhausted attempt budget.
func (e *Engine) Fail(ctx context.Context, msg *job.Message, attempts int, friendly, technical string) Outcome {
	e.putStatus(ctx, msg.JobID, job.StatusFailed, job.Meta{
		FailedAt:       job.NowMillis(),
		Attempts:       attempts,
		Error:          friendly,
		TechnicalError: technical,
	})

	e.notifier.NotifyFailed(ctx, msg.JobID, friendly, msg.UserID)

	e.logger.Warn("Job failed",
		slog.String("job_id", msg.JobID),
		slog.String("job_type", string(msg.JobType)),
		slog.String("error", technical),
	)

	return Outcome{Status: job.StatusFailed, Friendly: friendly, TechnicalError: technical}
}

// invoke runs the handler with panic containment, converting a panic
// into an ordinary error before it can cross the dispatcher boundary.
func (e *Engine) invoke(ctx context.Context, handler HandlerFunc, msg *job.Message) (result map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Handler panicked",
				slog.String("job_id", msg.JobID),
				slog.Any("panic", r),
			)
			result = nil
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return handler(ctx, msg.Event)
}

// putStatus writes a status record, logging rather than propagating
// failure; a missed write degrades status polling, not the job itself.
func (e *Engine) putStatus(ctx context.Context, jobID string, status job.Status, meta job.Meta) {
	if err := e.store.PutStatus(ctx, jobID, status, meta); err != nil {
		e.logger.Error("Failed to write job status",
			slog.String("job_id", jobID),
			slog.String("status", string(status)),
			slog.Any("error", err),
		)
	}
}

// resultError reports whether the handler result explicitly flags an
// error.
func resultError(result map[string]any) (string, bool) {
	if result == nil {
		return "handler returned no result", true
	}
	if v, ok := result["error"]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// hasArtifacts reports whether the result references at least one
// generated asset.
func hasArtifacts(result map[string]any) bool {
	if urls, ok := result["image_urls"].([]any); ok && len(urls) > 0 {
		return true
	}
	if urls, ok := result["image_urls"].([]string); ok && len(urls) > 0 {
		return true
	}
	if u, ok := result["pdf_url"].(string); ok && u != "" {
		return true
	}
	return false
}
