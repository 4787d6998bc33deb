package batch

import "time"

type Config struct {
	WebhookURL          string        `env:"BATCH_WEBHOOK_URL"`                              // WebhookURL receives batch.started, batch.progress and batch.completed events; empty disables delivery.
	WebhookSecret       string        `env:"BATCH_WEBHOOK_SECRET"`                           // WebhookSecret signs deliveries with HMAC-SHA256 when set.
	WebhookTimeout      time.Duration `env:"BATCH_WEBHOOK_TIMEOUT" envDefault:"10s"`         // WebhookTimeout bounds a single delivery attempt.
	WebhookRetries      int           `env:"BATCH_WEBHOOK_RETRIES" envDefault:"2"`           // WebhookRetries is the number of retries after a failed delivery.
	AllowPrivateWebhook bool          `env:"BATCH_WEBHOOK_ALLOW_PRIVATE" envDefault:"false"` // AllowPrivateWebhook permits loopback and private network targets.
	ProgressPercentStep int           `env:"BATCH_PROGRESS_PERCENT_STEP" envDefault:"10"`    // ProgressPercentStep sends batch.progress each time progress crosses a multiple of this percentage.
	ProgressEveryJobs   int           `env:"BATCH_PROGRESS_EVERY_JOBS" envDefault:"100"`     // ProgressEveryJobs sends batch.progress after this many outcomes since the last one.
	CloseTimeout        time.Duration `env:"BATCH_CLOSE_TIMEOUT" envDefault:"15s"`           // CloseTimeout bounds how long Close waits for queued notifications.
	Dir                 string        `env:"BATCH_DIR" envDefault:"data/batches"`            // Dir holds the database files of ephemeral batches.
}

// DefaultConfig returns the documented defaults without a webhook.
func DefaultConfig() Config {
	return Config{
		WebhookTimeout:      10 * time.Second,
		WebhookRetries:      2,
		ProgressPercentStep: 10,
		ProgressEveryJobs:   100,
		CloseTimeout:        15 * time.Second,
		Dir:                 "data/batches",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WebhookTimeout <= 0 {
		c.WebhookTimeout = d.WebhookTimeout
	}
	if c.WebhookRetries < 0 {
		c.WebhookRetries = 0
	}
	if c.ProgressPercentStep <= 0 || c.ProgressPercentStep > 100 {
		c.ProgressPercentStep = d.ProgressPercentStep
	}
	if c.ProgressEveryJobs <= 0 {
		c.ProgressEveryJobs = d.ProgressEveryJobs
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = d.CloseTimeout
	}
	if c.Dir == "" {
		c.Dir = d.Dir
	}
	return c
}
