package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/dmitrymomot/mailqueue/pkg/batch"
	"github.com/dmitrymomot/mailqueue/pkg/config"
	"github.com/dmitrymomot/mailqueue/pkg/email"
	"github.com/dmitrymomot/mailqueue/pkg/logger"
	"github.com/dmitrymomot/mailqueue/pkg/queue"
	"github.com/dmitrymomot/mailqueue/pkg/queueapi"
	"github.com/dmitrymomot/mailqueue/pkg/ratelimiter"
	"github.com/dmitrymomot/mailqueue/pkg/sqlitestore"
)

// appConfig groups the per-package configs read from the environment.
type appConfig struct {
	Log   logger.Config
	Email email.Config
	Queue queue.Config
	Limit ratelimiter.Config
	Batch batch.Config
	Store sqlitestore.Config
	Admin queueapi.Config
}

func loadConfig() (appConfig, error) {
	var cfg appConfig
	loaders := []struct {
		name string
		load func() error
	}{
		{"logger", func() error { return config.Load(&cfg.Log) }},
		{"email", func() error { return config.Load(&cfg.Email) }},
		{"queue", func() error { return config.Load(&cfg.Queue) }},
		{"rate limiter", func() error { return config.Load(&cfg.Limit) }},
		{"batch", func() error { return config.Load(&cfg.Batch) }},
		{"sqlite store", func() error { return config.Load(&cfg.Store) }},
		{"admin api", func() error { return config.Load(&cfg.Admin) }},
	}
	for _, l := range loaders {
		if err := l.load(); err != nil {
			return appConfig{}, fmt.Errorf("%s config: %w", l.name, err)
		}
	}
	return cfg, nil
}

func newLogger(cfg logger.Config, w io.Writer) *slog.Logger {
	return logger.New(
		logger.FromConfig(cfg),
		logger.WithOutput(w),
		logger.WithContextExtractors(queueapi.RequestIDExtractor()),
	)
}

// newGlobalLimiter returns the process-wide limiter shared by the queue
// engine and direct sends.
func newGlobalLimiter(cfg ratelimiter.Config, log *slog.Logger) (*ratelimiter.Global, error) {
	global := ratelimiter.NewGlobal(ratelimiter.WithLogger(log))
	if err := global.Configure(cfg); err != nil {
		return nil, fmt.Errorf("global rate limiter: %w", err)
	}
	return global, nil
}

func newEmailSender(cfg email.Config) (email.Sender, error) {
	sender, err := email.New(cfg)
	if err != nil {
		return nil, err
	}
	if !sender.ValidateConfig() {
		return nil, fmt.Errorf("%w: driver %q is not usable with the current settings", email.ErrInvalidConfig, cfg.Driver)
	}
	return sender, nil
}
