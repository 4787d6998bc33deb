// Package queue provides a durable-storage-agnostic job queue that paces,
// retries and tracks outbound sends.
//
// The package is organised around a few components:
//
//   - Engine: owns one Storage, claims eligible jobs, paces them through a
//     global and a per-engine rate limiter and hands them to a Sender
//   - Storage: persistence contract; MemoryStorage ships here and a SQLite
//     implementation lives in pkg/sqlitestore
//   - Events: typed lifecycle notifications delivered synchronously to
//     handlers registered with On or Subscribe
//
// # Job lifecycle
//
// A job moves through pending -> processing -> completed | retrying | failed.
// Claiming increments Attempts. A failed attempt below MaxAttempts becomes
// retrying with ScheduledFor set to the backoff due time; the dispatch loop
// promotes it back to pending once due, but only while the engine runs and is
// not paused. Completed and failed are terminal.
//
// Jobs are claimed in creation order among pending jobs whose ScheduledFor is
// unset or elapsed. Storages that do not implement ConcurrentStorage are
// served by exactly one worker, so sends never overlap. ConcurrentStorage
// implementations get MaxWorkers workers, each claiming one job at a time.
//
// # Usage
//
//	sender := queue.NewSender(func(ctx context.Context, m email.Message) (*email.SendResult, error) {
//		return postmark.Send(ctx, m)
//	})
//
//	engine, err := queue.NewEngine(store, sender,
//		queue.WithConfig(cfg),
//		queue.WithGlobalLimiter(global),
//		queue.WithLogger(log),
//	)
//	if err != nil {
//		return err // invalid rate limit
//	}
//
//	queue.Subscribe(engine, func(ev queue.JobFailed) {
//		log.Warn("send failed", "job_id", ev.Job.ID, "error", ev.Err)
//	})
//
//	if err := engine.Start(ctx); err != nil {
//		return err
//	}
//	defer engine.Stop()
//
//	_, err = engine.Add(ctx, msg, queue.WithDelay(time.Minute))
//
// # Shutdown
//
// Stop cancels the dispatch context, which interrupts rate-limiter waits, and
// waits up to Config.ShutdownTimeout for in-flight sends. Sends run under
// their own context bounded by Config.SendTimeout and are never cancelled by
// Stop. A job whose limiter wait was interrupted is returned to pending
// without counting the attempt.
//
// # Error Handling
//
// Package-level sentinel errors (e.g. ErrPayloadNil, ErrJobNotFound) can be
// checked with errors.Is. Sender errors never escape the dispatch loop; they
// are recorded in Job.LastError and reported through JobRetryScheduled and
// JobFailed events.
package queue
