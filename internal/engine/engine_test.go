package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/contentforge/contentforge/internal/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// statusWrite records one PutStatus call.
type statusWrite struct {
	jobID  string
	status job.Status
	meta   job.Meta
}

// fakeStore is an in-memory Store recording every write.
type fakeStore struct {
	writes    []statusWrite
	records   map[string]*job.Record
	putErr    error
	getErr    error
	checkErr  error
	completed map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records:   make(map[string]*job.Record),
		completed: make(map[string]bool),
	}
}

func (s *fakeStore) PutStatus(_ context.Context, jobID string, status job.Status, meta job.Meta) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.writes = append(s.writes, statusWrite{jobID: jobID, status: status, meta: meta})
	s.records[jobID] = &job.Record{JobID: jobID, Status: status, UpdatedAt: job.NowMillis(), Meta: meta}
	if status == job.StatusCompleted {
		s.completed[jobID] = true
	}
	return nil
}

func (s *fakeStore) GetStatus(_ context.Context, jobID string) (*job.Record, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	rec, ok := s.records[jobID]
	if !ok {
		return nil, job.ErrNotFound
	}
	return rec, nil
}

func (s *fakeStore) WasCompleted(_ context.Context, jobID string) (bool, error) {
	if s.checkErr != nil {
		return false, s.checkErr
	}
	return s.completed[jobID], nil
}

func (s *fakeStore) statuses() []job.Status {
	out := make([]job.Status, 0, len(s.writes))
	for _, w := range s.writes {
		out = append(out, w.status)
	}
	return out
}

// fakeNotifier counts notification attempts.
type fakeNotifier struct {
	queued    int
	completed int
	failed    int

	lastFriendly string
	lastResult   map[string]any
}

func (n *fakeNotifier) NotifyQueued(context.Context, string, string, int, string) {
	n.queued++
}

func (n *fakeNotifier) NotifyCompleted(_ context.Context, _ string, result map[string]any, _ string) {
	n.completed++
	n.lastResult = result
}

func (n *fakeNotifier) NotifyFailed(_ context.Context, _ string, friendly, _ string) {
	n.failed++
	n.lastFriendly = friendly
}

func testMessage(t job.Type) *job.Message {
	return &job.Message{
		JobID:      job.NewID(),
		JobType:    t,
		EnqueuedAt: job.NowMillis(),
		Event:      map[string]any{"prompt": "draw a lighthouse"},
		UserID:     "user@example.com",
	}
}

func newTestEngine(st *fakeStore, n *fakeNotifier) *Engine {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), st, n)
}

func TestRunJob_Completed(t *testing.T) {
	st := newFakeStore()
	n := &fakeNotifier{}
	e := newTestEngine(st, n)

	e.Register(job.TypeContentGenerate, func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return map[string]any{"image_urls": []any{"u1"}}, nil
	})

	msg := testMessage(job.TypeContentGenerate)
	outcome := e.RunJob(context.Background(), msg, 1)

	assert.Equal(t, job.StatusCompleted, outcome.Status)
	assert.Equal(t, []job.Status{job.StatusInProgress, job.StatusCompleted}, st.statuses())

	final := st.writes[len(st.writes)-1]
	assert.Equal(t, []any{"u1"}, final.meta.Result["image_urls"])

	assert.Equal(t, 1, n.completed)
	assert.Equal(t, 0, n.failed)
	assert.Equal(t, []any{"u1"}, n.lastResult["image_urls"])
}

func TestRunJob_HandlerError(t *testing.T) {
	st := newFakeStore()
	n := &fakeNotifier{}
	e := newTestEngine(st, n)

	e.Register(job.TypeContentGenerate, func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return nil, errors.New("rate limit exceeded")
	})

	outcome := e.RunJob(context.Background(), testMessage(job.TypeContentGenerate), 1)

	assert.Equal(t, job.StatusFailed, outcome.Status)
	assert.Equal(t, []job.Status{job.StatusInProgress, job.StatusFailed}, st.statuses())

	final := st.writes[len(st.writes)-1]
	assert.Equal(t, "We are handling too many requests right now. Please retry in a few minutes.", final.meta.Error)
	assert.Equal(t, "rate limit exceeded", final.meta.TechnicalError)
	assert.Equal(t, 1, n.failed)
}

func TestRunJob_HandlerPanicNeverEscapes(t *testing.T) {
	st := newFakeStore()
	n := &fakeNotifier{}
	e := newTestEngine(st, n)

	e.Register(job.TypeContentGenerate, func(_ context.Context, _ map[string]any) (map[string]any, error) {
		panic("boom: nil pointer somewhere deep")
	})

	var outcome Outcome
	require.NotPanics(t, func() {
		outcome = e.RunJob(context.Background(), testMessage(job.TypeContentGenerate), 1)
	})

	assert.Equal(t, job.StatusFailed, outcome.Status)

	final := st.writes[len(st.writes)-1]
	assert.Equal(t, job.StatusFailed, final.status)
	assert.NotEmpty(t, final.meta.Error)
	assert.NotEmpty(t, final.meta.TechnicalError)
	assert.Contains(t, final.meta.TechnicalError, "handler panic")
}

func TestRunJob_UnknownTypeFastFail(t *testing.T) {
	st := newFakeStore()
	n := &fakeNotifier{}
	e := newTestEngine(st, n)

	outcome := e.RunJob(context.Background(), testMessage(job.Type("NOT_A_REAL_TYPE")), 1)

	assert.Equal(t, job.StatusFailed, outcome.Status)

	// in_progress is never recorded; exactly one failed write
	require.Len(t, st.writes, 1)
	assert.Equal(t, job.StatusFailed, st.writes[0].status)
	assert.Equal(t, MsgInvalidJobType, st.writes[0].meta.Error)
	assert.Equal(t, 1, n.failed)
}

func TestRunJob_EmptyResultIsFailure(t *testing.T) {
	tests := []struct {
		name   string
		result map[string]any
	}{
		{
			name:   "zero artifacts",
			result: map[string]any{"image_urls": []any{}, "pdf_url": nil},
		},
		{
			name:   "empty map",
			result: map[string]any{},
		},
		{
			name:   "empty pdf url",
			result: map[string]any{"pdf_url": ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newFakeStore()
			n := &fakeNotifier{}
			e := newTestEngine(st, n)

			e.Register(job.TypeContentGenerate, func(_ context.Context, _ map[string]any) (map[string]any, error) {
				return tt.result, nil
			})

			outcome := e.RunJob(context.Background(), testMessage(job.TypeContentGenerate), 1)

			assert.Equal(t, job.StatusFailed, outcome.Status)
			final := st.writes[len(st.writes)-1]
			assert.Equal(t, MsgEmptyResult, final.meta.Error)
		})
	}
}

func TestRunJob_ResultErrorFlag(t *testing.T) {
	st := newFakeStore()
	n := &fakeNotifier{}
	e := newTestEngine(st, n)

	e.Register(job.TypeContentGenerate, func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return map[string]any{"error": "render timed out after 240s"}, nil
	})

	outcome := e.RunJob(context.Background(), testMessage(job.TypeContentGenerate), 1)

	assert.Equal(t, job.StatusFailed, outcome.Status)
	final := st.writes[len(st.writes)-1]
	assert.Equal(t, "The job took too long to finish. Try again with a smaller request.", final.meta.Error)
	assert.Equal(t, "render timed out after 240s", final.meta.TechnicalError)
}

func TestRunJob_StoreFailureStillReturns(t *testing.T) {
	st := newFakeStore()
	st.putErr = errors.New("store unreachable")
	n := &fakeNotifier{}
	e := newTestEngine(st, n)

	e.Register(job.TypeContentGenerate, func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return map[string]any{"pdf_url": "https://cdn.example.com/out.pdf"}, nil
	})

	require.NotPanics(t, func() {
		outcome := e.RunJob(context.Background(), testMessage(job.TypeContentGenerate), 1)
		assert.Equal(t, job.StatusCompleted, outcome.Status)
	})
}

func TestHasArtifacts(t *testing.T) {
	tests := []struct {
		name   string
		result map[string]any
		want   bool
	}{
		{"image urls present", map[string]any{"image_urls": []any{"u1", "u2"}}, true},
		{"typed string slice", map[string]any{"image_urls": []string{"u1"}}, true},
		{"pdf only", map[string]any{"pdf_url": "https://x/p.pdf"}, true},
		{"empty image urls", map[string]any{"image_urls": []any{}}, false},
		{"nil pdf", map[string]any{"pdf_url": nil}, false},
		{"unrelated keys", map[string]any{"took_ms": 1200}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasArtifacts(tt.result))
		})
	}
}
