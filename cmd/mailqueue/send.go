package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dmitrymomot/mailqueue/pkg/batch"
	"github.com/dmitrymomot/mailqueue/pkg/email"
	"github.com/dmitrymomot/mailqueue/pkg/logger"
	"github.com/dmitrymomot/mailqueue/pkg/queue"
)

func runSend(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "", "batch file (.json, .yaml or .yml)")
	timeout := fs.Duration("timeout", 0, "give up waiting after this long; 0 waits until done")
	webhook := fs.String("webhook", "", "batch webhook URL; overrides BATCH_WEBHOOK_URL")
	direct := fs.Bool("direct", false, "skip the queue and send through the provider's batch call")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		fs.Usage()
		return errors.New("send: -file is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if *webhook != "" {
		cfg.Batch.WebhookURL = *webhook
	}
	log := newLogger(cfg.Log, stderr)

	msgs, err := loadBatchFile(ctx, *file)
	if err != nil {
		return err
	}

	sender, err := newEmailSender(cfg.Email)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")

	if *direct {
		result, err := sendDirect(ctx, log, cfg, sender, msgs)
		if err != nil {
			return err
		}
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		if result.Failed > 0 {
			return fmt.Errorf("%w: %d of %d", errPartialFailure, result.Failed, result.Total)
		}
		return nil
	}

	summary, err := sendBatch(ctx, log, cfg, sender, msgs, *timeout)
	if err != nil {
		return err
	}
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if summary.TotalFailed > 0 {
		return fmt.Errorf("%w: %d of %d", errPartialFailure, summary.TotalFailed, len(msgs))
	}
	return nil
}

// sendDirect hands msgs to the sender in one batch call, paced by the same
// global limit the queue uses. Nothing is persisted and nothing is retried.
func sendDirect(ctx context.Context, log *slog.Logger, cfg appConfig, sender email.Sender, msgs []email.Message) (*email.BatchResult, error) {
	global, err := newGlobalLimiter(cfg.Limit, log)
	if err != nil {
		return nil, err
	}
	defer global.Reset()

	start := time.Now()
	result, err := email.RateLimited(sender, global).SendBatch(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("direct send: %w", err)
	}

	log.Info("direct send finished",
		slog.Int("sent", result.Successful),
		slog.Int("failed", result.Failed),
		logger.Duration(time.Since(start)))

	return result, nil
}

// sendBatch runs msgs through a private queue and returns its summary. The
// queue's database is removed on every exit path.
func sendBatch(ctx context.Context, log *slog.Logger, cfg appConfig, sender email.Sender, msgs []email.Message, timeout time.Duration) (batch.Summary, error) {
	global, err := newGlobalLimiter(cfg.Limit, log)
	if err != nil {
		return batch.Summary{}, err
	}

	eph, err := batch.NewEphemeral(ctx, email.QueueSender(sender),
		batch.WithDir(cfg.Batch.Dir),
		batch.WithEphemeralLogger(log),
		batch.WithEngineOptions(
			queue.WithConfig(cfg.Queue),
			queue.WithGlobalLimiter(global),
		),
		batch.WithMonitorOptions(
			batch.WithConfig(cfg.Batch),
			batch.WithOnProgress(func(p batch.Progress) {
				log.Debug("batch progress",
					logger.BatchID(p.BatchID),
					slog.Int("processed", p.Processed),
					slog.Int("total", p.Total),
					slog.Float64("percent", p.Percent))
			}),
		),
	)
	if err != nil {
		return batch.Summary{}, fmt.Errorf("create batch queue: %w", err)
	}
	defer func() {
		if err := eph.Destroy(); err != nil {
			log.Warn("failed to clean up batch queue", logger.Error(err))
		}
	}()

	if _, err := eph.AddBatch(ctx, payloads(msgs)...); err != nil {
		return batch.Summary{}, fmt.Errorf("enqueue batch: %w", err)
	}
	if err := eph.Start(ctx); err != nil {
		return batch.Summary{}, fmt.Errorf("start batch queue: %w", err)
	}

	log.Info("batch started", logger.Count(len(msgs)), logger.Path(eph.Path()))

	summary, err := eph.WaitForCompletion(ctx, timeout)
	if err != nil {
		return batch.Summary{}, fmt.Errorf("wait for batch: %w", err)
	}

	log.Info("batch finished",
		slog.Int("sent", summary.TotalSent),
		slog.Int("failed", summary.TotalFailed),
		slog.Int64("duration_ms", summary.DurationMs))

	return summary, nil
}
