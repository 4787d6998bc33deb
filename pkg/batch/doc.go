// Package batch tracks groups of queue jobs and runs self-contained batches.
//
// Monitor implements queue.BatchTracker. Attached to an engine with
// queue.WithBatchTracker, it counts the terminal outcome of every job added
// through Engine.AddBatch, reports progress to callbacks after each outcome,
// and emits a Summary exactly once when all jobs of a batch are completed or
// failed. With a webhook configured it also POSTs batch.started,
// batch.progress and batch.completed events:
//
//	{"type":"batch.progress","timestamp":"2025-01-02T03:04:05Z","data":{...}}
//
// The engine reserves a batch before its jobs are stored and confirms it after
// the insert commits, so batch.started is never sent for a batch whose insert
// failed. Progress events are throttled to one per Config.ProgressPercentStep percent
// or per Config.ProgressEveryJobs outcomes, whichever comes first. Deliveries
// run in order on a background goroutine; failures are logged and never
// affect the batch. The webhook URL is checked against SSRF when the Monitor
// is created.
//
// Ephemeral processes a single batch through its own SQLite file:
//
//	eb, err := batch.NewEphemeral(ctx, sender, batch.WithDir(os.TempDir()))
//	if err != nil {
//		return err
//	}
//	defer eb.Destroy()
//
//	if _, err := eb.AddBatch(ctx, messages...); err != nil {
//		return err
//	}
//	if err := eb.Start(ctx); err != nil {
//		return err
//	}
//	summary, err := eb.WaitForCompletion(ctx, 10*time.Minute)
//
// A timed-out wait leaves the batch running; Destroy stops the engine and
// removes the database file together with its -wal and -shm files.
package batch
