package sqlitestore

import "time"

type Config struct {
	Path            string        `env:"SQLITE_PATH" envDefault:"data/queue.db"`    // Path is the database file; parent directories are created.
	Workers         int           `env:"SQLITE_WORKERS" envDefault:"3"`             // Workers is the dispatch fan-out an engine may run over this store.
	ReadConns       int           `env:"SQLITE_READ_CONNS" envDefault:"4"`          // ReadConns caps the read-only pool used by stats and listings.
	BusyTimeout     time.Duration `env:"SQLITE_BUSY_TIMEOUT" envDefault:"5s"`       // BusyTimeout is how long SQLite waits on a locked database.
	RetentionWindow time.Duration `env:"SQLITE_RETENTION_WINDOW" envDefault:"168h"` // RetentionWindow is how long completed and failed jobs are kept; 0 keeps them forever.
	CleanupInterval time.Duration `env:"SQLITE_CLEANUP_INTERVAL" envDefault:"1h"`   // CleanupInterval is the period between retention runs.
	ShutdownTimeout time.Duration `env:"SQLITE_SHUTDOWN_TIMEOUT" envDefault:"10s"`  // ShutdownTimeout bounds how long Close waits for claimed jobs to settle.
	HandleSignals   bool          `env:"SQLITE_HANDLE_SIGNALS" envDefault:"true"`   // HandleSignals drains the store on SIGINT/SIGTERM.
}

// DefaultConfig returns the documented defaults for path.
func DefaultConfig(path string) Config {
	return Config{
		Path:            path,
		Workers:         3,
		ReadConns:       4,
		BusyTimeout:     5 * time.Second,
		RetentionWindow: 7 * 24 * time.Hour,
		CleanupInterval: time.Hour,
		ShutdownTimeout: 10 * time.Second,
		HandleSignals:   true,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig(c.Path)
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.ReadConns <= 0 {
		c.ReadConns = d.ReadConns
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = d.BusyTimeout
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}
