package queueapi

import "time"

// Config holds admin HTTP server settings.
type Config struct {
	Addr            string        `env:"ADMIN_ADDR" envDefault:":8080"`          // listen address
	ReadTimeout     time.Duration `env:"ADMIN_READ_TIMEOUT" envDefault:"10s"`    // full request read deadline
	WriteTimeout    time.Duration `env:"ADMIN_WRITE_TIMEOUT" envDefault:"30s"`   // response write deadline
	IdleTimeout     time.Duration `env:"ADMIN_IDLE_TIMEOUT" envDefault:"120s"`   // keep-alive idle timeout
	ShutdownTimeout time.Duration `env:"ADMIN_SHUTDOWN_TIMEOUT" envDefault:"5s"` // graceful shutdown window
	MaxListLimit    int           `env:"ADMIN_MAX_LIST_LIMIT" envDefault:"1000"` // cap for GET /jobs?limit
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		MaxListLimit:    1000,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.MaxListLimit <= 0 {
		c.MaxListLimit = d.MaxListLimit
	}
	return c
}
