package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailqueue/pkg/logger"
	"github.com/dmitrymomot/mailqueue/pkg/queue"
)

const jobColumns = `id, batch_id, payload, status, attempts, max_attempts,
	created_at, last_attempt_at, scheduled_for, result, last_error`

// Store is a queue.Storage backed by one SQLite file.
type Store struct {
	cfg    Config
	writer *sql.DB
	reader *sql.DB
	logger *slog.Logger

	// claimed holds jobs handed out by ClaimNext that have not been settled yet.
	claimMu  sync.Mutex
	claimed  map[uuid.UUID]struct{}
	draining atomic.Bool
	closed   atomic.Bool

	stopRetention context.CancelFunc
	retentionDone chan struct{}
	closeOnce     sync.Once
	closeErr      error
}

var _ queue.ConcurrentStorage = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger for the store.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New opens (or creates) the database at cfg.Path, migrates it, resets jobs
// interrupted by a previous process and starts the retention task.
func New(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	cfg = cfg.withDefaults()

	s := &Store{
		cfg:     cfg,
		logger:  slog.Default(),
		claimed: make(map[uuid.UUID]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("sqlitestore"), logger.Path(cfg.Path))

	writer, reader, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.writer, s.reader = writer, reader

	if err := Migrate(ctx, writer, s.logger); err != nil {
		s.closeDBs()
		return nil, err
	}

	recovered, err := s.Recover(ctx)
	if err != nil {
		s.closeDBs()
		return nil, errors.Join(ErrFailedToRecoverJobs, err)
	}
	if recovered > 0 {
		s.logger.Info("recovered interrupted jobs", logger.Count(recovered))
	}

	s.startRetention()
	if cfg.HandleSignals {
		register(s)
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.cfg.Path
}

// MaxWorkers implements queue.ConcurrentStorage.
func (s *Store) MaxWorkers() int {
	return s.cfg.Workers
}

// Healthcheck pings both pools.
func (s *Store) Healthcheck(ctx context.Context) error {
	if err := Healthcheck(s.writer)(ctx); err != nil {
		return err
	}
	return Healthcheck(s.reader)(ctx)
}

// Add implements queue.Storage. All jobs are inserted in one transaction.
func (s *Store) Add(ctx context.Context, jobs ...*queue.Job) (err error) {
	if s.closed.Load() {
		return queue.ErrStorageClosed
	}
	if len(jobs) == 0 {
		return nil
	}

	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, job := range jobs {
		if job == nil {
			return fmt.Errorf("%w: nil job", queue.ErrJobCreate)
		}
		if _, err = stmt.ExecContext(ctx, jobArgs(job)...); err != nil {
			if IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: %s", queue.ErrJobExists, job.ID)
			}
			return fmt.Errorf("insert job %s: %w", job.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

// ClaimNext implements queue.Storage with a single UPDATE ... RETURNING so
// two workers can never claim the same row.
func (s *Store) ClaimNext(ctx context.Context, now time.Time) (*queue.Job, error) {
	if s.closed.Load() {
		return nil, queue.ErrStorageClosed
	}
	if s.draining.Load() {
		return nil, queue.ErrNoJobToClaim
	}

	ms := now.UnixMilli()
	row := s.writer.QueryRowContext(ctx, `UPDATE jobs
		SET status = 'processing', attempts = attempts + 1, last_attempt_at = ?
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'pending' AND (scheduled_for IS NULL OR scheduled_for <= ?)
			ORDER BY created_at, rowid
			LIMIT 1
		)
		RETURNING `+jobColumns, ms, ms)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, queue.ErrNoJobToClaim
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}

	s.claimMu.Lock()
	s.claimed[job.ID] = struct{}{}
	s.claimMu.Unlock()

	return job, nil
}

// Update implements queue.Storage.
func (s *Store) Update(ctx context.Context, job *queue.Job) error {
	if s.closed.Load() {
		return queue.ErrStorageClosed
	}
	if job == nil {
		return fmt.Errorf("%w: nil job", queue.ErrJobNotFound)
	}

	res, err := s.writer.ExecContext(ctx, `UPDATE jobs
		SET status = ?, attempts = ?, last_attempt_at = ?, scheduled_for = ?, result = ?, last_error = ?
		WHERE id = ?`,
		string(job.Status),
		job.Attempts,
		nullMillis(job.LastAttemptAt),
		nullMillis(job.ScheduledFor),
		nullJSON(job.Result),
		nullString(job.LastError),
		job.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", queue.ErrJobNotFound, job.ID)
	}

	if job.Status != queue.StatusProcessing {
		s.claimMu.Lock()
		delete(s.claimed, job.ID)
		s.claimMu.Unlock()
	}
	return nil
}

// Get implements queue.Storage.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*queue.Job, error) {
	if s.closed.Load() {
		return nil, queue.ErrStorageClosed
	}

	row := s.reader.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id.String())
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", queue.ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// List implements queue.Storage.
func (s *Store) List(ctx context.Context, filter queue.Filter) ([]*queue.Job, error) {
	if s.closed.Load() {
		return nil, queue.ErrStorageClosed
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", queue.ErrInvalidFilter, filter.Status)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = queue.DefaultListLimit
	}
	offset := max(filter.Offset, 0)

	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(`SELECT ` + jobColumns + ` FROM jobs`)
	if filter.Status != "" {
		query.WriteString(` WHERE status = ?`)
		args = append(args, string(filter.Status))
	}
	query.WriteString(` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`)
	args = append(args, limit, offset)

	rows, err := s.reader.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*queue.Job, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list jobs: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Stats implements queue.Storage.
func (s *Store) Stats(ctx context.Context) (queue.Stats, error) {
	if s.closed.Load() {
		return queue.Stats{}, queue.ErrStorageClosed
	}

	rows, err := s.reader.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return queue.Stats{}, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	var stats queue.Stats
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return queue.Stats{}, fmt.Errorf("job stats: %w", err)
		}
		stats.Add(queue.Status(status), n)
	}
	if err := rows.Err(); err != nil {
		return queue.Stats{}, fmt.Errorf("job stats: %w", err)
	}
	return stats, nil
}

// DeletePending implements queue.Storage.
func (s *Store) DeletePending(ctx context.Context) ([]uuid.UUID, error) {
	if s.closed.Load() {
		return nil, queue.ErrStorageClosed
	}

	rows, err := s.writer.QueryContext(ctx, `DELETE FROM jobs WHERE status = 'pending' RETURNING id`)
	if err != nil {
		return nil, fmt.Errorf("delete pending jobs: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("delete pending jobs: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, errors.Join(ErrCorruptRow, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("delete pending jobs: %w", err)
	}
	return ids, nil
}

// Recover implements queue.Storage.
func (s *Store) Recover(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, queue.ErrStorageClosed
	}

	res, err := s.writer.ExecContext(ctx, `UPDATE jobs
		SET attempts = CASE WHEN status = 'processing' AND attempts > 0 THEN attempts - 1 ELSE attempts END,
			status = 'pending'
		WHERE status IN ('processing', 'retrying')`)
	if err != nil {
		return 0, fmt.Errorf("recover jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("recover jobs: %w", err)
	}
	return int(n), nil
}

// PromoteDue implements queue.Storage.
func (s *Store) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	if s.closed.Load() {
		return 0, queue.ErrStorageClosed
	}

	res, err := s.writer.ExecContext(ctx, `UPDATE jobs SET status = 'pending'
		WHERE status = 'retrying' AND (scheduled_for IS NULL OR scheduled_for <= ?)`,
		now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("promote due jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("promote due jobs: %w", err)
	}
	return int(n), nil
}

// Close drains the store: no further claims are handed out, claimed jobs get
// up to ShutdownTimeout to settle, retention stops and both pools close.
// Safe to call multiple times.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		unregister(s)
		s.drain()

		if s.stopRetention != nil {
			s.stopRetention()
			<-s.retentionDone
		}

		s.closed.Store(true)
		s.closeErr = s.closeDBs()
		s.logger.Info("store closed")
	})
	return s.closeErr
}

// drain waits until every claimed job is settled or ShutdownTimeout passes.
func (s *Store) drain() {
	s.draining.Store(true)

	deadline := time.NewTimer(s.cfg.ShutdownTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()

	for {
		n := s.inFlight()
		if n == 0 {
			return
		}
		select {
		case <-deadline.C:
			s.logger.Warn("store drain timed out with jobs still in flight", logger.Count(n))
			return
		case <-tick.C:
		}
	}
}

func (s *Store) inFlight() int {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()
	return len(s.claimed)
}

func (s *Store) closeDBs() error {
	var errs []error
	if s.reader != nil {
		errs = append(errs, s.reader.Close())
	}
	if s.writer != nil {
		errs = append(errs, s.writer.Close())
	}
	return errors.Join(errs...)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*queue.Job, error) {
	var (
		id, payload, status      string
		batchID, result, lastErr sql.NullString
		attempts, maxAttempts    int
		createdAt                int64
		lastAttemptAt, schedFor  sql.NullInt64
	)
	if err := row.Scan(&id, &batchID, &payload, &status, &attempts, &maxAttempts,
		&createdAt, &lastAttemptAt, &schedFor, &result, &lastErr); err != nil {
		return nil, err
	}

	jobID, err := uuid.Parse(id)
	if err != nil {
		return nil, errors.Join(ErrCorruptRow, err)
	}

	job := &queue.Job{
		ID:            jobID,
		Payload:       json.RawMessage(payload),
		Status:        queue.Status(status),
		Attempts:      attempts,
		MaxAttempts:   maxAttempts,
		CreatedAt:     time.UnixMilli(createdAt).UTC(),
		LastAttemptAt: fromMillis(lastAttemptAt),
		ScheduledFor:  fromMillis(schedFor),
		LastError:     lastErr.String,
	}
	if batchID.Valid {
		bid, err := uuid.Parse(batchID.String)
		if err != nil {
			return nil, errors.Join(ErrCorruptRow, err)
		}
		job.BatchID = &bid
	}
	if result.Valid {
		job.Result = json.RawMessage(result.String)
	}
	return job, nil
}

func jobArgs(job *queue.Job) []any {
	var batchID any
	if job.BatchID != nil {
		batchID = job.BatchID.String()
	}
	return []any{
		job.ID.String(),
		batchID,
		string(job.Payload),
		string(job.Status),
		job.Attempts,
		job.MaxAttempts,
		job.CreatedAt.UnixMilli(),
		nullMillis(job.LastAttemptAt),
		nullMillis(job.ScheduledFor),
		nullJSON(job.Result),
		nullString(job.LastError),
	}
}

func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
