package logger

import (
	"context"
	"log/slog"
)

// ContextExtractor pulls one attribute out of a record's context.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

type jobScopeKey struct{}

type jobScope struct {
	jobID   any
	batchID any
}

// WithJob returns a copy of ctx scoped to one job. Context-aware loggers add
// job_id, and batch_id when batchID is not nil, to every record logged with it.
func WithJob(ctx context.Context, jobID, batchID any) context.Context {
	return context.WithValue(ctx, jobScopeKey{}, jobScope{jobID: jobID, batchID: batchID})
}

// JobFromContext returns the identifiers stored by WithJob.
func JobFromContext(ctx context.Context) (jobID, batchID any, ok bool) {
	s, ok := ctx.Value(jobScopeKey{}).(jobScope)
	if !ok {
		return nil, nil, false
	}
	return s.jobID, s.batchID, true
}

// ContextAware returns l with a handler that adds the job scope and the
// extractors' attributes from each record's context. Loggers built by New are
// already context aware; wrapping one again only appends extractors.
func ContextAware(l *slog.Logger, extractors ...ContextExtractor) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return slog.New(newContextHandler(l.Handler(), extractors))
}

// contextHandler decorates the next handler. Extraction happens per record, so
// values added to a context after the logger was built are still picked up.
type contextHandler struct {
	next       slog.Handler
	extractors []ContextExtractor
}

func newContextHandler(next slog.Handler, extractors []ContextExtractor) *contextHandler {
	var merged []ContextExtractor
	if h, ok := next.(*contextHandler); ok {
		next = h.next
		merged = append(merged, h.extractors...)
	}
	for _, ex := range extractors {
		if ex != nil {
			merged = append(merged, ex)
		}
	}
	return &contextHandler{next: next, extractors: merged}
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	if jobID, batchID, ok := JobFromContext(ctx); ok {
		rec.AddAttrs(JobID(jobID))
		if batchID != nil {
			rec.AddAttrs(BatchID(batchID))
		}
	}
	for _, ex := range h.extractors {
		if attr, ok := ex(ctx); ok {
			rec.AddAttrs(attr)
		}
	}
	return h.next.Handle(ctx, rec)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs), extractors: h.extractors}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name), extractors: h.extractors}
}
