package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailqueue/pkg/logger"
	"github.com/dmitrymomot/mailqueue/pkg/queue"
	"github.com/dmitrymomot/mailqueue/pkg/sqlitestore"
)

// Ephemeral runs one batch through a private SQLite store that is deleted by
// Destroy.
type Ephemeral struct {
	id      uuid.UUID
	path    string
	logger  *slog.Logger
	store   *sqlitestore.Store
	engine  *queue.Engine
	monitor *Monitor

	mu      sync.Mutex
	added   bool
	summary Summary

	done        chan struct{}
	doneOnce    sync.Once
	destroyed   chan struct{}
	destroyOnce sync.Once
	destroyErr  error
}

// EphemeralOption configures an Ephemeral batch.
type EphemeralOption func(*ephemeralOptions)

type ephemeralOptions struct {
	dir         string
	storeConfig sqlitestore.Config
	engineOpts  []queue.EngineOption
	monitorOpts []Option
	logger      *slog.Logger
}

// WithDir sets the directory for the batch database file.
func WithDir(dir string) EphemeralOption {
	return func(o *ephemeralOptions) {
		if dir != "" {
			o.dir = dir
		}
	}
}

// WithStoreConfig replaces the store configuration. Path is always generated.
func WithStoreConfig(cfg sqlitestore.Config) EphemeralOption {
	return func(o *ephemeralOptions) {
		o.storeConfig = cfg
	}
}

// WithEngineOptions passes options to the underlying queue engine.
func WithEngineOptions(opts ...queue.EngineOption) EphemeralOption {
	return func(o *ephemeralOptions) {
		o.engineOpts = append(o.engineOpts, opts...)
	}
}

// WithMonitorOptions passes options to the batch monitor.
func WithMonitorOptions(opts ...Option) EphemeralOption {
	return func(o *ephemeralOptions) {
		o.monitorOpts = append(o.monitorOpts, opts...)
	}
}

// WithEphemeralLogger sets the logger for the store, engine and monitor.
func WithEphemeralLogger(l *slog.Logger) EphemeralOption {
	return func(o *ephemeralOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewEphemeral creates a fresh store file under the configured directory and
// wires an engine and monitor to it. The engine is not started.
func NewEphemeral(ctx context.Context, sender queue.Sender, opts ...EphemeralOption) (*Ephemeral, error) {
	if sender == nil {
		return nil, ErrSenderNil
	}

	storeCfg := sqlitestore.DefaultConfig("")
	storeCfg.HandleSignals = false
	storeCfg.RetentionWindow = 0
	options := &ephemeralOptions{
		dir:         DefaultConfig().Dir,
		storeConfig: storeCfg,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	e := &Ephemeral{
		id:        uuid.New(),
		done:      make(chan struct{}),
		destroyed: make(chan struct{}),
	}
	e.path = filepath.Join(options.dir, "batch-"+e.id.String()+".db")
	e.logger = options.logger.With(logger.Component("ephemeral-batch"), logger.Path(e.path))

	cfg := options.storeConfig
	cfg.Path = e.path
	store, err := sqlitestore.New(ctx, cfg, sqlitestore.WithLogger(options.logger))
	if err != nil {
		_ = removeDatabase(e.path)
		return nil, err
	}
	e.store = store

	monitorOpts := append([]Option{WithLogger(options.logger)}, options.monitorOpts...)
	monitorOpts = append(monitorOpts, WithOnComplete(e.complete))
	e.monitor, err = NewMonitor(monitorOpts...)
	if err != nil {
		return nil, errors.Join(err, e.closeStore())
	}

	engineOpts := append([]queue.EngineOption{queue.WithLogger(options.logger)}, options.engineOpts...)
	engineOpts = append(engineOpts, queue.WithBatchTracker(e.monitor))
	e.engine, err = queue.NewEngine(store, sender, engineOpts...)
	if err != nil {
		return nil, errors.Join(err, e.monitor.Close(), e.closeStore())
	}

	return e, nil
}

// ID returns the identifier used in the database file name.
func (e *Ephemeral) ID() uuid.UUID { return e.id }

// Path returns the database file path.
func (e *Ephemeral) Path() string { return e.path }

// Engine exposes the underlying engine for event subscriptions and stats.
func (e *Ephemeral) Engine() *queue.Engine { return e.engine }

// AddBatch enqueues the batch. Only one batch may be added.
func (e *Ephemeral) AddBatch(ctx context.Context, payloads ...any) ([]*queue.Job, error) {
	select {
	case <-e.destroyed:
		return nil, ErrDestroyed
	default:
	}

	e.mu.Lock()
	if e.added {
		e.mu.Unlock()
		return nil, ErrBatchExists
	}
	e.added = true
	e.mu.Unlock()

	jobs, err := e.engine.AddBatch(ctx, payloads...)
	if err != nil {
		e.mu.Lock()
		e.added = false
		e.mu.Unlock()
		return nil, err
	}
	return jobs, nil
}

// Start starts the engine.
func (e *Ephemeral) Start(ctx context.Context) error {
	select {
	case <-e.destroyed:
		return ErrDestroyed
	default:
	}
	return e.engine.Start(ctx)
}

// WaitForCompletion blocks until the batch completes, ctx is done or timeout
// elapses (timeout <= 0 waits without a limit). A timeout does not stop
// processing; calling WaitForCompletion again keeps waiting for the same batch.
func (e *Ephemeral) WaitForCompletion(ctx context.Context, timeout time.Duration) (Summary, error) {
	e.mu.Lock()
	added := e.added
	e.mu.Unlock()
	if !added {
		return Summary{}, ErrNoBatch
	}

	select {
	case <-e.done:
		return e.result(), nil
	default:
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-e.done:
		return e.result(), nil
	case <-expired:
		return Summary{}, fmt.Errorf("%w after %s", ErrWaitTimeout, timeout)
	case <-e.destroyed:
		return Summary{}, ErrDestroyed
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	}
}

// Destroy stops the engine, flushes notifications, closes the store and deletes
// the database file with its -wal and -shm siblings. It is safe to call more
// than once and on every exit path.
func (e *Ephemeral) Destroy() error {
	e.destroyOnce.Do(func() {
		close(e.destroyed)

		var errs []error
		if err := e.engine.Stop(); err != nil && !errors.Is(err, queue.ErrEngineNotRunning) {
			errs = append(errs, err)
		}
		if err := e.monitor.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := e.closeStore(); err != nil {
			errs = append(errs, err)
		}

		e.destroyErr = errors.Join(errs...)
		e.logger.Debug("ephemeral batch destroyed")
	})
	return e.destroyErr
}

func (e *Ephemeral) result() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summary
}

func (e *Ephemeral) complete(s Summary) {
	e.doneOnce.Do(func() {
		e.mu.Lock()
		e.summary = s
		e.mu.Unlock()
		close(e.done)
	})
}

// closeStore closes the store and always removes the files, even when Close fails.
func (e *Ephemeral) closeStore() error {
	return errors.Join(e.store.Close(), removeDatabase(e.path))
}

func removeDatabase(path string) error {
	var errs []error
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
