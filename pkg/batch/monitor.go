package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailqueue/pkg/logger"
	"github.com/dmitrymomot/mailqueue/pkg/queue"
	"github.com/dmitrymomot/mailqueue/pkg/webhook"
)

// Monitor aggregates per-job outcomes into batch progress and completion
// summaries. It implements queue.BatchTracker; attach it with
// queue.WithBatchTracker.
type Monitor struct {
	cfg        Config
	logger     *slog.Logger
	clock      queue.Clock
	onProgress []func(Progress)
	onComplete []func(Summary)
	notifier   *notifier

	mu      sync.Mutex
	batches map[uuid.UUID]*state
}

var _ queue.BatchTracker = (*Monitor)(nil)

// Option configures a Monitor.
type Option func(*monitorOptions)

type monitorOptions struct {
	config     Config
	logger     *slog.Logger
	clock      queue.Clock
	sender     *webhook.Sender
	onProgress []func(Progress)
	onComplete []func(Summary)
}

// WithConfig replaces the monitor configuration. Zero fields take defaults.
func WithConfig(cfg Config) Option {
	return func(o *monitorOptions) {
		o.config = cfg
	}
}

// WithWebhook sets the notification target and optional signing secret.
func WithWebhook(url, secret string) Option {
	return func(o *monitorOptions) {
		o.config.WebhookURL = url
		o.config.WebhookSecret = secret
	}
}

// WithWebhookSender replaces the HTTP sender used for notifications.
func WithWebhookSender(s *webhook.Sender) Option {
	return func(o *monitorOptions) {
		if s != nil {
			o.sender = s
		}
	}
}

// WithOnProgress registers a callback invoked after every recorded outcome.
func WithOnProgress(fn func(Progress)) Option {
	return func(o *monitorOptions) {
		if fn != nil {
			o.onProgress = append(o.onProgress, fn)
		}
	}
}

// WithOnComplete registers a callback invoked once per batch on completion.
func WithOnComplete(fn func(Summary)) Option {
	return func(o *monitorOptions) {
		if fn != nil {
			o.onComplete = append(o.onComplete, fn)
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *monitorOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock replaces the time source used for durations.
func WithClock(c queue.Clock) Option {
	return func(o *monitorOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// NewMonitor creates a Monitor. A configured webhook URL is validated here,
// so an unsafe or malformed target fails construction instead of every delivery.
func NewMonitor(opts ...Option) (*Monitor, error) {
	options := &monitorOptions{
		config: DefaultConfig(),
		logger: slog.Default(),
		clock:  queue.SystemClock(),
	}
	for _, opt := range opts {
		opt(options)
	}
	cfg := options.config.withDefaults()

	m := &Monitor{
		cfg:        cfg,
		logger:     options.logger.With(logger.Component("batch-monitor")),
		clock:      options.clock,
		onProgress: options.onProgress,
		onComplete: options.onComplete,
		batches:    make(map[uuid.UUID]*state),
	}

	if cfg.WebhookURL != "" {
		guard := webhook.Guard{AllowPrivate: cfg.AllowPrivateWebhook}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.WebhookTimeout)
		defer cancel()
		if _, err := guard.ValidateURL(ctx, cfg.WebhookURL); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidWebhook, err)
		}

		sender := options.sender
		if sender == nil {
			var senderOpts []webhook.SenderOption
			if cfg.AllowPrivateWebhook {
				senderOpts = append(senderOpts, webhook.WithAllowPrivateNetworks())
			}
			sender = webhook.NewSender(senderOpts...)
		}
		m.notifier = newNotifier(sender, cfg.WebhookURL, cfg, m.logger)
	}

	return m, nil
}

// StartBatch begins tracking a batch of total jobs and announces it.
func (m *Monitor) StartBatch(batchID uuid.UUID, total int) {
	if m.reserve(batchID, total) {
		m.ConfirmBatch(batchID)
	}
}

// ReserveBatch begins tracking a batch without announcing it, so outcomes of
// jobs dispatched before ConfirmBatch are still counted.
func (m *Monitor) ReserveBatch(batchID uuid.UUID, total int) {
	m.reserve(batchID, total)
}

func (m *Monitor) reserve(batchID uuid.UUID, total int) bool {
	if total <= 0 {
		m.logger.Warn("ignoring empty batch", logger.BatchID(batchID))
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.batches[batchID]; ok {
		m.logger.Warn("batch restarted, previous progress discarded", logger.BatchID(batchID))
	}
	m.batches[batchID] = &state{total: total, startedAt: m.clock.Now()}
	return true
}

// ConfirmBatch sends batch.started for a reserved batch. It is a no-op when
// the batch is unknown or was already announced by its first outcome.
func (m *Monitor) ConfirmBatch(batchID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.batches[batchID]; ok {
		m.announce(batchID, st)
	}
}

// announce must be called with mu held, which keeps batch.started queued
// ahead of any progress event for the same batch.
func (m *Monitor) announce(batchID uuid.UUID, st *state) {
	if st.announced {
		return
	}
	st.announced = true
	m.logger.Info("batch started", logger.BatchID(batchID), logger.Count(st.total))
	m.notify(EventStarted, st.startedAt, st.progress(batchID, st.startedAt))
}

// CancelBatch stops tracking a batch without completing it. A reserved batch
// that was never announced leaves no webhook trace.
func (m *Monitor) CancelBatch(batchID uuid.UUID) {
	m.mu.Lock()
	st, ok := m.batches[batchID]
	delete(m.batches, batchID)
	m.mu.Unlock()

	if ok {
		m.logger.Info("batch cancelled", logger.BatchID(batchID), slog.Bool("announced", st.announced))
	}
}

// RecordSuccess counts one completed job.
func (m *Monitor) RecordSuccess(batchID uuid.UUID) {
	m.record(batchID, true)
}

// RecordFailure counts one permanently failed job.
func (m *Monitor) RecordFailure(batchID uuid.UUID) {
	m.record(batchID, false)
}

func (m *Monitor) record(batchID uuid.UUID, success bool) {
	now := m.clock.Now()

	m.mu.Lock()
	st, ok := m.batches[batchID]
	if !ok {
		m.mu.Unlock()
		m.logger.Debug("outcome for untracked batch", logger.BatchID(batchID))
		return
	}
	m.announce(batchID, st)
	if success {
		st.completed++
	} else {
		st.failed++
	}

	p := st.progress(batchID, now)
	done := st.processed() >= st.total
	notify := !done && st.shouldNotify(m.cfg.ProgressPercentStep, m.cfg.ProgressEveryJobs)
	if notify {
		st.lastNotified = st.processed()
	}
	if done {
		delete(m.batches, batchID)
	}
	m.mu.Unlock()

	for _, fn := range m.onProgress {
		m.safeCall("progress", batchID, func() { fn(p) })
	}
	if notify {
		m.notify(EventProgress, now, p)
	}
	if !done {
		return
	}

	summary := Summary{
		BatchID:     batchID,
		TotalSent:   p.Completed,
		TotalFailed: p.Failed,
		DurationMs:  p.ElapsedMs,
	}
	m.logger.Info("batch completed",
		logger.BatchID(batchID),
		slog.Int("sent", summary.TotalSent),
		slog.Int("failed", summary.TotalFailed),
		logger.Duration(now.Sub(p.StartedAt)))

	for _, fn := range m.onComplete {
		m.safeCall("complete", batchID, func() { fn(summary) })
	}
	m.notify(EventCompleted, now, summary)
}

// GetBatchStats returns the progress of a tracked batch.
// Completed batches are no longer tracked.
func (m *Monitor) GetBatchStats(batchID uuid.UUID) (Progress, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.batches[batchID]
	if !ok {
		return Progress{}, false
	}
	return st.progress(batchID, m.clock.Now()), true
}

// HasBatch reports whether batchID is being tracked.
func (m *Monitor) HasBatch(batchID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.batches[batchID]
	return ok
}

// Close flushes queued webhook notifications, waiting at most
// Config.CloseTimeout. Callbacks keep firing after Close; only webhook
// delivery stops.
func (m *Monitor) Close() error {
	if m.notifier == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.CloseTimeout)
	defer cancel()
	return m.notifier.close(ctx)
}

func (m *Monitor) notify(eventType string, ts time.Time, data any) {
	if m.notifier == nil {
		return
	}
	m.notifier.enqueue(Event{Type: eventType, Timestamp: ts.UTC(), Data: data})
}

func (m *Monitor) safeCall(hook string, batchID uuid.UUID, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("batch callback panicked",
				slog.String("hook", hook),
				logger.BatchID(batchID),
				slog.Any("panic", r))
		}
	}()
	fn()
}
