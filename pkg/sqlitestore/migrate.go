package sqlitestore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/dmitrymomot/mailqueue/pkg/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded schema migrations. It is idempotent.
// The goose provider API is used so concurrent stores in one process do not
// share goose's package-level state.
func Migrate(ctx context.Context, db *sql.DB, log *slog.Logger) error {
	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations,
		goose.WithLogger(newSlogAdapter(log)),
	)
	if err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	for _, r := range results {
		log.DebugContext(ctx, "migration applied",
			slog.Int64("version", r.Source.Version),
			logger.Duration(r.Duration))
	}

	return nil
}

// migrateSlogAdapter bridges goose's Printf-style logging to structured logging.
type migrateSlogAdapter struct {
	log *slog.Logger
}

func newSlogAdapter(log *slog.Logger) goose.Logger {
	return &migrateSlogAdapter{log: log}
}

func (a *migrateSlogAdapter) Fatalf(format string, v ...any) {
	a.log.ErrorContext(context.Background(), fmt.Sprintf(format, v...))
}

func (a *migrateSlogAdapter) Printf(format string, v ...any) {
	a.log.InfoContext(context.Background(), fmt.Sprintf(format, v...))
}
