// Package logger builds *slog.Logger instances and provides attribute
// helpers that keep key names consistent across mailqueue packages.
//
// Loggers from New are context aware: each record picks up the job scope set
// by WithJob plus whatever registered ContextExtractor callbacks find in the
// record's context. ContextAware gives the same behaviour to a logger built
// elsewhere, which is how the queue engine tags sender-side records.
//
// WithEnvironment selects a level and format preset and tags records with
// service and env. Development logs text at debug; staging and production log
// JSON at info. FromConfig applies a preset from Config (APP_ENV, LOG_LEVEL,
// LOG_FORMAT and LOG_SERVICE) and then the explicit overrides.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithEnvironment(logger.EnvProduction, "mailqueue"),
//	    logger.WithContextValue("tenant", tenantKey{}),
//	)
//	slog.SetDefault(log)
//
//	ctx = logger.WithJob(ctx, job.ID, job.BatchID)
//	log.InfoContext(ctx, "job completed",
//	    logger.Attempt(job.Attempts, job.MaxAttempts),
//	    logger.Duration(time.Since(start)),
//	)
//
// Error and Errors return an empty attribute for nil errors, so they can be
// passed unconditionally.
package logger
