package handler

import (
	"log/slog"

	"github.com/contentforge/contentforge/internal/enqueue"
	"github.com/contentforge/contentforge/internal/notify"
	"github.com/contentforge/contentforge/internal/queue"
	"github.com/contentforge/contentforge/internal/store"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger   *slog.Logger
	Enqueuer *enqueue.Enqueuer
	Store    store.Store
	Queue    queue.Client
	Notifier notify.Notifier
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger   *slog.Logger
	enqueuer *enqueue.Enqueuer
	store    store.Store
	queue    queue.Client
	notifier notify.Notifier
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:   deps.Logger,
		enqueuer: deps.Enqueuer,
		store:    deps.Store,
		queue:    deps.Queue,
		notifier: deps.Notifier,
	}
}
