package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"

// Connect opens the database file in WAL mode and returns two pools: a
// single-connection writer that serializes every mutation, and a read-only
// pool so stats and listings proceed while a write transaction is open.
func Connect(ctx context.Context, cfg Config) (writer, reader *sql.DB, err error) {
	if cfg.Path == "" {
		return nil, nil, ErrEmptyPath
	}

	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, errors.Join(ErrFailedToCreateDir, err)
		}
	}

	writer, err = open(ctx, dsn(cfg, false), 1)
	if err != nil {
		return nil, nil, err
	}

	reader, err = open(ctx, dsn(cfg, true), cfg.ReadConns)
	if err != nil {
		_ = writer.Close()
		return nil, nil, err
	}

	return writer, reader, nil
}

func open(ctx context.Context, dsn string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Join(ErrFailedToOpenDBConnection, err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	// Verify the file can actually be opened and the pragmas applied.
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Join(ErrFailedToOpenDBConnection, err)
	}
	return db, nil
}

func dsn(cfg Config, readOnly bool) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")
	q.Set("_busy_timeout", strconv.FormatInt(cfg.BusyTimeout.Milliseconds(), 10))
	q.Set("_foreign_keys", "on")
	if readOnly {
		q.Set("_query_only", "true")
	} else {
		q.Set("_txlock", "immediate")
	}
	return cfg.Path + "?" + q.Encode()
}

// Healthcheck returns a closure that validates database connectivity for health endpoints.
func Healthcheck(db *sql.DB) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
