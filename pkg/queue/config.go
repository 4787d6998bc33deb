package queue

import "time"

// Config holds the configuration for a queue engine
type Config struct {
	MaxAttempts     int           `env:"QUEUE_MAX_ATTEMPTS" envDefault:"3"`
	BaseDelay       time.Duration `env:"QUEUE_BASE_DELAY" envDefault:"1s"`
	MaxDelay        time.Duration `env:"QUEUE_MAX_DELAY" envDefault:"1m"`
	RateLimit       float64       `env:"QUEUE_RATE_LIMIT" envDefault:"10"`
	PollInterval    time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`
	SendTimeout     time.Duration `env:"QUEUE_SEND_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		BaseDelay:       time.Second,
		MaxDelay:        time.Minute,
		RateLimit:       10,
		PollInterval:    time.Second,
		SendTimeout:     30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig. A negative RateLimit is
// kept so the limiter rejects it at construction.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RateLimit == 0 {
		c.RateLimit = d.RateLimit
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = d.SendTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}
