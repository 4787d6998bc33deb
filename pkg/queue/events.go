package queue

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/mailqueue/pkg/logger"
)

// EventKind identifies a job lifecycle event.
type EventKind string

const (
	KindJobAdded          EventKind = "job.added"
	KindJobProcessing     EventKind = "job.processing"
	KindJobCompleted      EventKind = "job.completed"
	KindJobRetryScheduled EventKind = "job.retry_scheduled"
	KindJobFailed         EventKind = "job.failed"
)

// Event is implemented by every lifecycle event payload.
type Event interface {
	Kind() EventKind
}

// JobAdded is emitted after a job is persisted.
type JobAdded struct {
	Job Job
}

// JobProcessing is emitted right before a job is handed to the sender.
type JobProcessing struct {
	Job Job
}

// JobCompleted is emitted after a successful send.
type JobCompleted struct {
	Job      Job
	Result   json.RawMessage
	Duration time.Duration
}

// JobRetryScheduled is emitted when a failed attempt will be retried.
type JobRetryScheduled struct {
	Job   Job
	Err   error
	Delay time.Duration
}

// JobFailed is emitted when a job exhausts its attempts.
type JobFailed struct {
	Job Job
	Err error
}

func (JobAdded) Kind() EventKind          { return KindJobAdded }
func (JobProcessing) Kind() EventKind     { return KindJobProcessing }
func (JobCompleted) Kind() EventKind      { return KindJobCompleted }
func (JobRetryScheduled) Kind() EventKind { return KindJobRetryScheduled }
func (JobFailed) Kind() EventKind         { return KindJobFailed }

// EventHandler receives events of the kind it was registered for.
type EventHandler func(Event)

// Subscription identifies a registered handler for Off.
type Subscription struct {
	kind EventKind
	id   uint64
}

// Kind returns the event kind the subscription listens to.
func (s Subscription) Kind() EventKind { return s.kind }

type subscriber struct {
	id      uint64
	handler EventHandler
}

// emitter dispatches events synchronously, in registration order.
// A panicking handler is logged and does not affect the others.
type emitter struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[EventKind][]subscriber
	logger   *slog.Logger
}

func newEmitter(l *slog.Logger) *emitter {
	return &emitter{
		handlers: make(map[EventKind][]subscriber),
		logger:   l,
	}
}

func (e *emitter) on(kind EventKind, h EventHandler) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	e.handlers[kind] = append(e.handlers[kind], subscriber{id: e.nextID, handler: h})
	return Subscription{kind: kind, id: e.nextID}
}

func (e *emitter) off(sub Subscription) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.handlers[sub.kind]
	for i, s := range subs {
		if s.id == sub.id {
			e.handlers[sub.kind] = append(subs[:i:i], subs[i+1:]...)
			return true
		}
	}
	return false
}

func (e *emitter) emit(ev Event) {
	e.mu.RLock()
	subs := e.handlers[ev.Kind()]
	e.mu.RUnlock()

	for _, s := range subs {
		e.call(s.handler, ev)
	}
}

func (e *emitter) call(h EventHandler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event handler panicked",
				logger.EventType(string(ev.Kind())),
				slog.Any("panic", r))
		}
	}()
	h(ev)
}
