package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailqueue/pkg/backoff"
	"github.com/dmitrymomot/mailqueue/pkg/logger"
	"github.com/dmitrymomot/mailqueue/pkg/ratelimiter"
)

// Engine drives jobs of one Storage through their lifecycle:
// pending -> processing -> completed | retrying | failed, retrying -> pending.
type Engine struct {
	storage Storage
	sender  Sender
	config  Config
	logger  *slog.Logger
	clock   Clock
	global  ratelimiter.Limiter
	local   *ratelimiter.Bucket
	backoff backoff.Strategy
	tracker BatchTracker
	events  *emitter
	wakeups *wakeups
	workers int

	wake    chan struct{}
	paused  atomic.Bool
	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	// drained is closed once every worker of the last stopped run has exited.
	drained chan struct{}
}

// NewEngine creates a queue engine over storage that hands payloads to sender.
// An invalid rate limit is reported here rather than at dispatch time.
func NewEngine(storage Storage, sender Sender, opts ...EngineOption) (*Engine, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	if sender == nil {
		return nil, ErrSenderNil
	}

	options := &engineOptions{
		config: DefaultConfig(),
		logger: slog.Default(),
		clock:  SystemClock(),
	}
	for _, opt := range opts {
		opt(options)
	}
	cfg := options.config.withDefaults()

	local, err := ratelimiter.NewSequential(cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine rate limiter: %w", err)
	}

	strategy := options.backoff
	if strategy == nil {
		strategy = backoff.NewExponential(cfg.BaseDelay, cfg.MaxDelay)
	}

	log := logger.ContextAware(options.logger).With(logger.Component("queue"))
	workers := workerCount(storage)

	return &Engine{
		storage: storage,
		sender:  sender,
		config:  cfg,
		logger:  log,
		clock:   options.clock,
		global:  options.global,
		local:   local,
		backoff: strategy,
		tracker: options.tracker,
		events:  newEmitter(log),
		wakeups: newWakeups(options.clock),
		workers: workers,
		wake:    make(chan struct{}, workers),
	}, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Add persists a pending job and triggers dispatch when the engine is running.
func (e *Engine) Add(ctx context.Context, payload any, opts ...AddOption) (*Job, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}

	options := &addOptions{}
	for _, opt := range opts {
		opt(options)
	}

	now := e.clock.Now()
	job := e.newJob(raw, nil, now)
	switch {
	case options.scheduledFor != nil:
		job.ScheduledFor = options.scheduledFor
	case options.delay > 0:
		due := now.Add(options.delay)
		job.ScheduledFor = &due
	}

	if err := e.storage.Add(ctx, job); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJobCreate, err)
	}

	e.events.emit(JobAdded{Job: *job.Clone()})

	if job.ScheduledFor != nil && job.ScheduledFor.After(now) {
		if e.running.Load() {
			e.wakeups.schedule(job.ID, job.ScheduledFor.Sub(now), e.notify)
		}
	} else {
		e.notify()
	}

	return job.Clone(), nil
}

// AddBatch persists all payloads atomically under one batch ID. The batch is
// reserved with the attached tracker before any job can be dispatched and
// confirmed only after the insert succeeds.
func (e *Engine) AddBatch(ctx context.Context, payloads ...any) ([]*Job, error) {
	if len(payloads) == 0 {
		return nil, ErrNoItemsToEnqueue
	}

	raws := make([]json.RawMessage, len(payloads))
	for i, p := range payloads {
		raw, err := marshalPayload(p)
		if err != nil {
			return nil, fmt.Errorf("payload %d: %w", i, err)
		}
		raws[i] = raw
	}

	batchID := uuid.New()
	now := e.clock.Now()
	jobs := make([]*Job, len(raws))
	for i, raw := range raws {
		jobs[i] = e.newJob(raw, &batchID, now)
	}

	if e.tracker != nil {
		e.tracker.ReserveBatch(batchID, len(jobs))
	}

	if err := e.storage.Add(ctx, jobs...); err != nil {
		if e.tracker != nil {
			e.tracker.CancelBatch(batchID)
		}
		return nil, fmt.Errorf("%w: batch %s: %w", ErrJobCreate, batchID, err)
	}

	if e.tracker != nil {
		e.tracker.ConfirmBatch(batchID)
	}

	out := make([]*Job, len(jobs))
	for i, job := range jobs {
		e.events.emit(JobAdded{Job: *job.Clone()})
		out[i] = job.Clone()
	}

	e.logger.Debug("batch added", logger.BatchID(batchID), logger.Count(len(jobs)))
	e.notify()

	return out, nil
}

// GetJob returns a job snapshot by ID.
func (e *Engine) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	return e.storage.Get(ctx, id)
}

// GetJobs lists jobs newest first.
func (e *Engine) GetJobs(ctx context.Context, filter Filter) ([]*Job, error) {
	return e.storage.List(ctx, filter)
}

// GetStats returns job counts per status.
func (e *Engine) GetStats(ctx context.Context) (Stats, error) {
	return e.storage.Stats(ctx)
}

// Clear deletes every pending job and returns how many were removed.
// In-flight and terminal jobs are untouched.
func (e *Engine) Clear(ctx context.Context) (int, error) {
	ids, err := e.storage.DeletePending(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear pending jobs: %w", err)
	}
	e.wakeups.cancel(ids...)

	e.logger.Info("pending jobs cleared", logger.Count(len(ids)))
	return len(ids), nil
}

// On registers a handler for one event kind.
func (e *Engine) On(kind EventKind, h EventHandler) Subscription {
	return e.events.on(kind, h)
}

// Off removes a handler. It reports whether the subscription was registered.
func (e *Engine) Off(sub Subscription) bool {
	return e.events.off(sub)
}

// Subscribe registers a handler typed by its event payload.
// E must be one of the value event types declared in this package.
func Subscribe[E Event](e *Engine, fn func(E)) Subscription {
	var zero E
	return e.On(zero.Kind(), func(ev Event) {
		if typed, ok := ev.(E); ok {
			fn(typed)
		}
	})
}

// Pause stops new jobs from being claimed. In-flight sends continue.
func (e *Engine) Pause() {
	if !e.paused.Swap(true) {
		e.logger.Info("queue paused")
	}
}

// Resume lifts a Pause and triggers dispatch.
func (e *Engine) Resume() {
	if e.paused.Swap(false) {
		e.logger.Info("queue resumed")
	}
	e.notify()
}

// Paused reports whether the engine is paused.
func (e *Engine) Paused() bool {
	return e.paused.Load()
}

// Running reports whether the engine has been started and not stopped.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Start recovers jobs interrupted by a previous run and begins dispatching.
// Dispatch stops when ctx is cancelled or Stop is called. After a Stop that
// timed out, Start fails with ErrEngineDraining until the old sends finish.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		return ErrEngineRunning
	}
	if e.drained != nil {
		select {
		case <-e.drained:
		default:
			return ErrEngineDraining
		}
	}

	recovered, err := e.storage.Recover(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover interrupted jobs: %w", err)
	}
	if recovered > 0 {
		e.logger.Info("recovered interrupted jobs", logger.Count(recovered))
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running.Store(true)

	for i := range e.workers {
		e.wg.Add(1)
		go e.work(runCtx, i)
	}
	e.notify()

	e.logger.Info("queue started",
		slog.Int("workers", e.workers),
		slog.Float64("rate_limit", e.config.RateLimit),
		slog.Int("max_attempts", e.config.MaxAttempts))

	return nil
}

// Stop prevents new dispatch and waits for in-flight sends, bounded by
// Config.ShutdownTimeout. Sends are never cancelled by Stop.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.cancel == nil {
		e.mu.Unlock()
		return ErrEngineNotRunning
	}
	cancel := e.cancel
	e.cancel = nil
	e.running.Store(false)
	done := make(chan struct{})
	e.drained = done
	e.mu.Unlock()

	cancel()
	e.wakeups.stopAll()

	e.logger.Info("queue stopping, waiting for in-flight jobs")

	go func() {
		e.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(e.config.ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		e.logger.Info("queue stopped")
		return nil
	case <-timer.C:
		e.logger.Warn("queue stop timed out", slog.Duration("timeout", e.config.ShutdownTimeout))
		return ErrShutdownTimeout
	}
}

// Run starts the engine and returns a function suitable for errgroup
func (e *Engine) Run(ctx context.Context) func() error {
	return func() error {
		if err := e.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return e.Stop()
	}
}

func (e *Engine) newJob(payload json.RawMessage, batchID *uuid.UUID, now time.Time) *Job {
	return &Job{
		ID:          uuid.New(),
		BatchID:     batchID,
		Payload:     payload,
		Status:      StatusPending,
		MaxAttempts: e.config.MaxAttempts,
		CreatedAt:   now,
	}
}

// notify wakes idle workers without blocking.
func (e *Engine) notify() {
	for range e.workers {
		select {
		case e.wake <- struct{}{}:
		default:
			return
		}
	}
}

// work is the dispatch loop of one worker
func (e *Engine) work(ctx context.Context, id int) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	e.logger.Debug("worker started", slog.Int("worker", id))

	for {
		e.drain(ctx)

		select {
		case <-ctx.Done():
			return
		case <-e.wake:
		case <-ticker.C:
		}
	}
}

// drain dispatches jobs until none is eligible, the engine is paused or ctx ends.
func (e *Engine) drain(ctx context.Context) {
	if ctx.Err() != nil || e.paused.Load() {
		return
	}

	if n, err := e.storage.PromoteDue(ctx, e.clock.Now()); err != nil {
		if ctx.Err() == nil {
			e.logger.Error("failed to promote due jobs", logger.Error(err))
		}
	} else if n > 0 {
		e.logger.Debug("due jobs promoted", logger.Count(n))
	}

	for ctx.Err() == nil && !e.paused.Load() {
		if !e.dispatchNext(ctx) {
			return
		}
	}
}

// dispatchNext claims and processes one job. It reports whether a job was handled.
func (e *Engine) dispatchNext(ctx context.Context) bool {
	job, err := e.storage.ClaimNext(ctx, e.clock.Now())
	if err != nil {
		if !errors.Is(err, ErrNoJobToClaim) && ctx.Err() == nil {
			e.logger.Error("failed to claim job", logger.Error(err))
		}
		return false
	}

	if err := e.acquire(ctx); err != nil {
		e.release(job, err)
		return false
	}

	e.process(job)
	return true
}

// acquire consults the global limiter first, then the engine's own.
func (e *Engine) acquire(ctx context.Context) error {
	if e.global != nil {
		if err := e.global.Acquire(ctx); err != nil {
			return fmt.Errorf("global rate limiter: %w", err)
		}
	}
	if err := e.local.Acquire(ctx); err != nil {
		return fmt.Errorf("engine rate limiter: %w", err)
	}
	return nil
}

// release returns a claimed job to pending without counting the attempt.
func (e *Engine) release(job *Job, cause error) {
	job.Status = StatusPending
	job.Attempts = max(job.Attempts-1, 0)
	if job.Attempts == 0 {
		job.LastAttemptAt = nil
	}

	if err := e.storage.Update(context.Background(), job); err != nil {
		e.logger.Error("failed to release claimed job",
			logger.JobID(job.ID),
			logger.Errors(cause, err))
		return
	}

	if !errors.Is(cause, context.Canceled) {
		e.logger.Warn("claimed job released", logger.JobID(job.ID), logger.Error(cause))
	}
}

// process hands the job to the sender and records the outcome.
func (e *Engine) process(job *Job) {
	e.events.emit(JobProcessing{Job: *job.Clone()})

	ctx := logger.WithJob(context.Background(), job.ID, batchAttr(job))

	start := time.Now()
	result, err := e.send(ctx, job)
	duration := time.Since(start)

	if err != nil {
		e.handleFailure(ctx, job, err)
		return
	}
	e.handleSuccess(ctx, job, result, duration)
}

// send runs the sender under its own timeout so Stop never cancels it.
// ctx carries only the job's log scope.
func (e *Engine) send(ctx context.Context, job *Job) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in sender: %v", r)
			e.logger.ErrorContext(ctx, "sender panicked", slog.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, e.config.SendTimeout)
	defer cancel()

	return e.sender.Send(ctx, job.Payload)
}

func (e *Engine) handleSuccess(ctx context.Context, job *Job, result json.RawMessage, duration time.Duration) {
	job.Status = StatusCompleted
	job.Result = result
	job.LastError = ""
	job.ScheduledFor = nil

	if err := e.storage.Update(ctx, job); err != nil {
		e.logger.ErrorContext(ctx, "failed to mark job completed", logger.Error(err))
		return
	}

	e.logger.DebugContext(ctx, "job completed",
		logger.Attempt(job.Attempts, job.MaxAttempts),
		logger.Duration(duration))

	e.events.emit(JobCompleted{Job: *job.Clone(), Result: job.Result, Duration: duration})

	if job.BatchID != nil && e.tracker != nil {
		e.tracker.RecordSuccess(*job.BatchID)
	}
}

func (e *Engine) handleFailure(ctx context.Context, job *Job, sendErr error) {
	job.LastError = sendErr.Error()

	if job.Attempts < job.MaxAttempts {
		delay := e.backoff.Delay(job.Attempts)
		due := e.clock.Now().Add(delay)
		job.Status = StatusRetrying
		job.ScheduledFor = &due

		if err := e.storage.Update(ctx, job); err != nil {
			e.logger.ErrorContext(ctx, "failed to schedule job retry", logger.Errors(sendErr, err))
			return
		}

		e.logger.WarnContext(ctx, "job attempt failed, retry scheduled",
			logger.Attempt(job.Attempts, job.MaxAttempts),
			logger.Delay(delay),
			logger.Error(sendErr))

		e.events.emit(JobRetryScheduled{Job: *job.Clone(), Err: sendErr, Delay: delay})

		if e.running.Load() {
			e.wakeups.schedule(job.ID, delay, e.notify)
		}
		return
	}

	job.Status = StatusFailed
	if err := e.storage.Update(ctx, job); err != nil {
		e.logger.ErrorContext(ctx, "failed to mark job failed", logger.Errors(sendErr, err))
		return
	}

	e.logger.ErrorContext(ctx, "job failed",
		logger.Attempt(job.Attempts, job.MaxAttempts),
		logger.Error(sendErr))

	e.events.emit(JobFailed{Job: *job.Clone(), Err: sendErr})

	if job.BatchID != nil && e.tracker != nil {
		e.tracker.RecordFailure(*job.BatchID)
	}
}

// batchAttr avoids logging a typed nil pointer as a non-empty attribute.
func batchAttr(job *Job) any {
	if job.BatchID == nil {
		return nil
	}
	return *job.BatchID
}
