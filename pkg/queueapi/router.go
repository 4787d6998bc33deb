package queueapi

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrymomot/mailqueue/pkg/logger"
	"github.com/dmitrymomot/mailqueue/pkg/queue"
)

// Queue is the part of queue.Engine the admin API drives.
type Queue interface {
	GetJob(ctx context.Context, id uuid.UUID) (*queue.Job, error)
	GetJobs(ctx context.Context, filter queue.Filter) ([]*queue.Job, error)
	GetStats(ctx context.Context) (queue.Stats, error)
	Clear(ctx context.Context) (int, error)
	Pause()
	Resume()
	Paused() bool
	Running() bool
}

var _ Queue = (*queue.Engine)(nil)

// RouterOption configures the admin router.
type RouterOption func(*handlers)

// WithLogger sets the logger for request and error logs.
func WithLogger(l *slog.Logger) RouterOption {
	return func(h *handlers) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMaxListLimit caps the limit accepted by GET /jobs.
func WithMaxListLimit(n int) RouterOption {
	return func(h *handlers) {
		if n > 0 {
			h.maxLimit = n
		}
	}
}

type handlers struct {
	q        Queue
	logger   *slog.Logger
	maxLimit int
}

// NewRouter returns the admin HTTP API over q:
//
//	GET    /healthz        liveness and queue state
//	GET    /stats          job counts per status
//	GET    /jobs           list jobs (?status=&limit=&offset=)
//	GET    /jobs/{id}      one job
//	POST   /pause          stop claiming new jobs
//	POST   /resume         resume dispatch
//	DELETE /jobs/pending   delete every pending job
func NewRouter(q Queue, opts ...RouterOption) (http.Handler, error) {
	if q == nil {
		return nil, ErrQueueNil
	}

	h := &handlers{
		q:        q,
		logger:   slog.Default(),
		maxLimit: DefaultConfig().MaxListLimit,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(logger.Component("queueapi"))

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.logger))

	r.Get("/healthz", h.health)
	r.Get("/stats", h.stats)
	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", h.listJobs)
		r.Delete("/pending", h.clearPending)
		r.Get("/{id}", h.getJob)
	})
	r.Post("/pause", h.pause)
	r.Post("/resume", h.resume)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, Response{Error: &ErrorDetail{Code: "not_found", Message: "route not found"}})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, Response{Error: &ErrorDetail{Code: "method_not_allowed", Message: http.StatusText(http.StatusMethodNotAllowed)}})
	})

	return r, nil
}

type queueState struct {
	Running bool `json:"running"`
	Paused  bool `json:"paused"`
}

func (h *handlers) state() queueState {
	return queueState{Running: h.q.Running(), Paused: h.q.Paused()}
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeData(w, h.state(), nil)
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.q.GetStats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, stats, map[string]any{"running": h.q.Running(), "paused": h.q.Paused()})
}

func (h *handlers) listJobs(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	jobs, err := h.q.GetJobs(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*queue.Job{}
	}

	writeData(w, jobs, map[string]any{
		"count":  len(jobs),
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func (h *handlers) getJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, badRequestError{msg: "invalid job id"})
		return
	}

	job, err := h.q.GetJob(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, job, nil)
}

func (h *handlers) pause(w http.ResponseWriter, _ *http.Request) {
	h.q.Pause()
	writeData(w, h.state(), nil)
}

func (h *handlers) resume(w http.ResponseWriter, _ *http.Request) {
	h.q.Resume()
	writeData(w, h.state(), nil)
}

func (h *handlers) clearPending(w http.ResponseWriter, r *http.Request) {
	n, err := h.q.Clear(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, map[string]int{"deleted": n}, nil)
}

func (h *handlers) parseFilter(r *http.Request) (queue.Filter, error) {
	q := r.URL.Query()
	filter := queue.Filter{
		Status: queue.Status(q.Get("status")),
		Limit:  queue.DefaultListLimit,
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return filter, badRequestError{msg: "limit must be a positive integer"}
		}
		filter.Limit = min(n, h.maxLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, badRequestError{msg: "offset must be a non-negative integer"}
		}
		filter.Offset = n
	}
	return filter, nil
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := writeError(w, err); status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "admin request failed", logger.Error(err))
	}
}
