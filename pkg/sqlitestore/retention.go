package sqlitestore

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrymomot/mailqueue/pkg/logger"
)

// PurgeExpired deletes completed and failed jobs whose last activity is older
// than the retention window. It returns the number of deleted rows.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	if s.cfg.RetentionWindow <= 0 {
		return 0, nil
	}
	return s.purgeBefore(ctx, time.Now().Add(-s.cfg.RetentionWindow))
}

func (s *Store) purgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.writer.ExecContext(ctx, `DELETE FROM jobs
		WHERE status IN ('completed', 'failed')
		AND COALESCE(last_attempt_at, created_at) < ?`,
		cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge expired jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge expired jobs: %w", err)
	}
	return int(n), nil
}

// startRetention runs PurgeExpired once immediately, then every CleanupInterval.
func (s *Store) startRetention() {
	if s.cfg.RetentionWindow <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopRetention = cancel
	s.retentionDone = make(chan struct{})

	go func() {
		defer close(s.retentionDone)

		s.runRetention(ctx)

		ticker := time.NewTicker(s.cfg.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runRetention(ctx)
			}
		}
	}()
}

func (s *Store) runRetention(ctx context.Context) {
	n, err := s.PurgeExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("retention cleanup failed", logger.Error(err))
		}
		return
	}
	if n > 0 {
		s.logger.Info("expired jobs purged", logger.Count(n))
	}
}
