package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/contentforge/contentforge/internal/engine"
	"github.com/contentforge/contentforge/internal/job"
	"github.com/contentforge/contentforge/internal/queue"
	"github.com/contentforge/contentforge/internal/store"
)

// Config holds worker configuration
type Config struct {
	Logger *slog.Logger
	Queue  queue.Client
	Store  store.Store
	Engine *engine.Engine

	// IdleSleep is the pause after an empty receive before polling
	// again.
	IdleSleep time.Duration

	// ReceiveBackoffInitial and ReceiveBackoffMax bound the exponential
	// backoff applied when the queue is unreachable.
	ReceiveBackoffInitial time.Duration
	ReceiveBackoffMax     time.Duration

	// MaxAttempts caps how many times a delivery may enter processing
	// before the job is settled as failed. Zero means unbounded, which
	// retries at the visibility-timeout cadence forever.
	MaxAttempts int
}

// Worker is a single-threaded sequential consumer: one message in
// flight at a time, with the handler blocking the loop for the duration
// of the job. Throughput comes from running more worker processes, not
// from multiplexing in here.
type Worker struct {
	logger      *slog.Logger
	queue       queue.Client
	store       store.Store
	engine      *engine.Engine
	idleSleep   time.Duration
	backoffInit time.Duration
	backoffMax  time.Duration
	maxAttempts int

	receiveBackoff time.Duration
}

// New creates a worker instance. Zero durations fall back to sane
// defaults.
func New(cfg *Config) *Worker {
	idle := cfg.IdleSleep
	if idle <= 0 {
		idle = time.Second
	}
	backoffInit := cfg.ReceiveBackoffInitial
	if backoffInit <= 0 {
		backoffInit = time.Second
	}
	backoffMax := cfg.ReceiveBackoffMax
	if backoffMax <= 0 {
		backoffMax = 30 * time.Second
	}

	return &Worker{
		logger:      cfg.Logger,
		queue:       cfg.Queue,
		store:       cfg.Store,
		engine:      cfg.Engine,
		idleSleep:   idle,
		backoffInit: backoffInit,
		backoffMax:  backoffMax,
		maxAttempts: cfg.MaxAttempts,
	}
}

// Run consumes the queue until ctx is canceled. The loop is immortal:
// any panic escaping an iteration is recovered, logged, and followed by
// a short sleep before resuming.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Worker started",
		slog.Int("max_attempts", w.maxAttempts),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker stopping, context canceled")
			return nil
		default:
		}

		w.runOnce(ctx)
	}
}

// runOnce executes one guarded iteration of the consumption loop.
func (w *Worker) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Worker iteration panicked",
				slog.Any("panic", r),
			)
			w.sleep(ctx, w.idleSleep)
		}
	}()

	d, err := w.queue.ReceiveOne(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		w.receiveBackoff = nextBackoff(w.receiveBackoff, w.backoffInit, w.backoffMax)
		w.logger.Error("Failed to receive from queue, backing off",
			slog.Any("error", err),
			slog.Duration("backoff", w.receiveBackoff),
		)
		w.sleep(ctx, w.receiveBackoff)
		return
	}
	w.receiveBackoff = 0

	if d == nil {
		w.sleep(ctx, w.idleSleep)
		return
	}

	w.handleDelivery(ctx, d)
}

// handleDelivery settles one delivery: decode, duplicate check, attempt
// accounting, dispatch, acknowledge-or-retain. Business failures are
// finalized inside the engine; the only question answered here is
// whether the infrastructure steps succeeded.
func (w *Worker) handleDelivery(ctx context.Context, d *queue.Delivery) {
	msg, err := job.DecodeMessage(d.Body)
	if err != nil {
		// A message that cannot name its job is a poison message:
		// discard it rather than let it block the queue forever. It
		// never produces a store record.
		w.logger.Warn("Discarding undecodable message",
			slog.Any("error", err),
			slog.Int("body_size", len(d.Body)),
		)
		w.acknowledge(d, "")
		return
	}

	logger := w.logger.With(
		slog.String("job_id", msg.JobID),
		slog.String("job_type", string(msg.JobType)),
	)

	completed, err := w.store.WasCompleted(ctx, msg.JobID)
	if err != nil {
		// Store unreachable: retain so the queue redelivers after the
		// visibility timeout.
		logger.Error("Idempotency check failed, retaining message",
			slog.Any("error", err),
		)
		w.retain(d, msg.JobID)
		return
	}
	if completed {
		logger.Info("Duplicate delivery of completed job, discarding")
		w.acknowledge(d, msg.JobID)
		return
	}

	attempts := w.recordQueued(ctx, msg, logger)

	if w.maxAttempts > 0 && attempts > w.maxAttempts {
		logger.Warn("Attempt budget exhausted, settling job as failed",
			slog.Int("attempts", attempts),
			slog.Int("max_attempts", w.maxAttempts),
		)
		w.engine.Fail(ctx, msg, attempts, engine.MsgTooManyAttempts,
			"attempt budget exhausted before handler completed")
		w.acknowledge(d, msg.JobID)
		return
	}

	outcome := w.engine.RunJob(ctx, msg, attempts)

	logger.Info("Job dispatch finished",
		slog.String("status", string(outcome.Status)),
	)

	w.acknowledge(d, msg.JobID)
}

// recordQueued makes the best-effort queued store write for UI polling
// and returns the attempt number of this delivery. Failure here is
// logged, not fatal.
func (w *Worker) recordQueued(ctx context.Context, msg *job.Message, logger *slog.Logger) int {
	attempts := 1
	rec, err := w.store.GetStatus(ctx, msg.JobID)
	switch {
	case err == nil:
		attempts = rec.Meta.Attempts + 1
	case errors.Is(err, job.ErrNotFound):
		// first delivery
	default:
		logger.Warn("Failed to read prior job record",
			slog.Any("error", err),
		)
	}

	meta := job.Meta{
		QueuedAt: msg.EnqueuedAt,
		Attempts: attempts,
		Payload:  msg.Event,
	}
	if err := w.store.PutStatus(ctx, msg.JobID, job.StatusQueued, meta); err != nil {
		logger.Warn("Failed to write queued status",
			slog.Any("error", err),
		)
	}

	return attempts
}

func (w *Worker) acknowledge(d *queue.Delivery, jobID string) {
	if err := w.queue.Acknowledge(d); err != nil {
		// The message will come back after the visibility timeout; the
		// idempotency guard absorbs the duplicate.
		w.logger.Error("Failed to acknowledge message",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
	}
}

func (w *Worker) retain(d *queue.Delivery, jobID string) {
	if err := w.queue.Retain(d); err != nil {
		w.logger.Error("Failed to retain message",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func nextBackoff(current, initial, max time.Duration) time.Duration {
	if current <= 0 {
		return initial
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}
