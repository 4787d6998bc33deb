package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/mailqueue/pkg/batch"
	"github.com/dmitrymomot/mailqueue/pkg/email"
	"github.com/dmitrymomot/mailqueue/pkg/logger"
	"github.com/dmitrymomot/mailqueue/pkg/queue"
	"github.com/dmitrymomot/mailqueue/pkg/queueapi"
	"github.com/dmitrymomot/mailqueue/pkg/sqlitestore"
)

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "", "optional batch file to enqueue on startup")
	addr := fs.String("addr", "", "admin API listen address; overrides ADMIN_ADDR")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Admin.Addr = *addr
	}
	log := newLogger(cfg.Log, stderr)
	slog.SetDefault(log)

	var msgs []email.Message
	if *file != "" {
		if msgs, err = loadBatchFile(ctx, *file); err != nil {
			return err
		}
	}

	sender, err := newEmailSender(cfg.Email)
	if err != nil {
		return err
	}
	return serve(ctx, log, cfg, email.QueueSender(sender), msgs)
}

// serve runs the durable queue and the admin API until ctx is cancelled.
// Shutdown signals arrive through ctx, so the store does not install its own
// signal handler.
func serve(ctx context.Context, log *slog.Logger, cfg appConfig, sender queue.Sender, initial []email.Message) (err error) {
	global, err := newGlobalLimiter(cfg.Limit, log)
	if err != nil {
		return err
	}

	storeCfg := cfg.Store
	storeCfg.HandleSignals = false
	store, err := sqlitestore.New(ctx, storeCfg, sqlitestore.WithLogger(log))
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer func() {
		err = errors.Join(err, store.Close())
	}()

	monitor, err := batch.NewMonitor(batch.WithConfig(cfg.Batch), batch.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, monitor.Close())
	}()

	engine, err := queue.NewEngine(store, sender,
		queue.WithConfig(cfg.Queue),
		queue.WithGlobalLimiter(global),
		queue.WithBatchTracker(monitor),
		queue.WithLogger(log),
	)
	if err != nil {
		return err
	}

	if len(initial) > 0 {
		jobs, err := engine.AddBatch(ctx, payloads(initial)...)
		if err != nil {
			return fmt.Errorf("enqueue batch: %w", err)
		}
		log.Info("batch enqueued", logger.BatchID(*jobs[0].BatchID), logger.Count(len(jobs)))
	}

	router, err := queueapi.NewRouter(engine,
		queueapi.WithLogger(log),
		queueapi.WithMaxListLimit(cfg.Admin.MaxListLimit))
	if err != nil {
		return err
	}
	server := queueapi.NewServer(cfg.Admin, queueapi.WithServerLogger(log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(engine.Run(gctx))
	g.Go(func() error { return server.Run(gctx, router) })

	return g.Wait()
}
