// Package queueapi exposes a queue.Engine over a small JSON admin API built
// on github.com/go-chi/chi/v5.
//
// Every reply uses the Response envelope: {"data": ..., "meta": ...} on
// success and {"error": {"code": ..., "message": ...}} on failure. Unknown
// job IDs return 404, malformed query parameters or an unknown status filter
// return 400.
//
//	router, err := queueapi.NewRouter(engine, queueapi.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	srv := queueapi.NewServer(cfg, queueapi.WithServerLogger(log))
//	return srv.Run(ctx, router)
//
// Run returns after ctx is cancelled and in-flight requests finish or the
// shutdown timeout elapses. Signal handling belongs to the caller.
package queueapi
