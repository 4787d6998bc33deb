package sqlitestore

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrEmptyPath                = errors.New("empty sqlite database path, use SQLITE_PATH env var")
	ErrFailedToCreateDir        = errors.New("failed to create database directory")
	ErrFailedToOpenDBConnection = errors.New("failed to open db connection")
	ErrFailedToApplyMigrations  = errors.New("failed to apply migrations")
	ErrFailedToRecoverJobs      = errors.New("failed to recover interrupted jobs")
	ErrHealthcheckFailed        = errors.New("healthcheck failed, connection is not available")
	ErrCorruptRow               = errors.New("corrupt job row")
)

// IsDuplicateKeyError detects primary key and unique constraint violations.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// IsBusyError detects lock contention that outlived the busy timeout.
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		(sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked)
}
