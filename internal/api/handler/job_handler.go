package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/contentforge/contentforge/internal/api/dto"
	"github.com/contentforge/contentforge/internal/enqueue"
	"github.com/contentforge/contentforge/internal/job"
	"github.com/gin-gonic/gin"
)

// excerptLimit caps how much request text is forwarded in the queued
// notification.
const excerptLimit = 80

// EnqueueJob handles POST /api/v1/jobs.
// Submits the event to the queue and returns the job_id for polling.
func (h *JobHandler) EnqueueJob(c *gin.Context) {
	var req dto.EnqueueJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid enqueue request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	jobID, err := h.enqueuer.EnqueueJob(c.Request.Context(), req.Event, job.Type(req.JobType))
	if err != nil {
		h.logger.Error("Failed to enqueue job",
			slog.String("job_type", req.JobType),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to enqueue job",
		})
		return
	}

	// Queue position and the queued notification are best effort; the
	// job is already safely on the queue.
	position := 0
	if depth, err := h.queue.ApproximateDepth(c.Request.Context()); err == nil {
		position = depth
	} else {
		h.logger.Warn("Failed to read queue depth", slog.String("error", err.Error()))
	}

	userID := enqueue.ResolveUserID(req.Event)
	h.notifier.NotifyQueued(c.Request.Context(), jobID, userID, position, eventExcerpt(req.Event))

	c.JSON(http.StatusAccepted, dto.EnqueueJobResponse{
		JobID:         jobID,
		Status:        string(job.StatusQueued),
		QueuePosition: position,
	})
}

// GetJob handles GET /api/v1/jobs/:job_id.
// Returns the job's store record, the single source of truth for
// status polling.
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id is required",
		})
		return
	}

	rec, err := h.store.GetStatus(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		h.logger.Error("Failed to get job status",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job status",
		})
		return
	}

	c.JSON(http.StatusOK, dto.JobStatusResponse{
		JobID:     rec.JobID,
		Status:    string(rec.Status),
		UpdatedAt: rec.UpdatedAt,
		Meta:      rec.Meta,
	})
}

// QueueDepth handles GET /api/v1/queue/depth.
func (h *JobHandler) QueueDepth(c *gin.Context) {
	depth, err := h.queue.ApproximateDepth(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to read queue depth", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to read queue depth",
		})
		return
	}

	c.JSON(http.StatusOK, dto.QueueDepthResponse{Depth: depth})
}

// eventExcerpt pulls a short human-readable snippet out of the request
// event for the queued notification. Truncation lands on a rune
// boundary so the excerpt stays valid UTF-8.
func eventExcerpt(event map[string]any) string {
	for _, key := range []string{"prompt", "body", "message", "text"} {
		s, ok := event[key].(string)
		if !ok || s == "" {
			continue
		}
		if len(s) <= excerptLimit {
			return s
		}
		cut := excerptLimit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut]
	}
	return ""
}
