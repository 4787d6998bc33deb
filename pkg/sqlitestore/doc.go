// Package sqlitestore implements queue.Storage on an embedded SQLite database.
//
// Each Store owns one database file opened in WAL mode through
// github.com/mattn/go-sqlite3. Mutations go through a single-connection
// writer pool, reads through a separate query-only pool, so stats and
// listings never wait on a dispatch transaction. The schema is embedded and
// applied with goose on every open.
//
// Claiming is one UPDATE ... RETURNING statement that selects the oldest
// eligible pending row and flips it to processing, so several dispatch
// workers (Config.Workers) can poll the same store without double dispatch.
//
// # Lifecycle
//
// New creates the parent directory, opens and migrates the database, resets
// rows left in processing or retrying by a previous process, and starts a
// retention task that deletes completed and failed rows older than
// Config.RetentionWindow (once at startup, then every CleanupInterval).
//
// Close drains the store: it stops handing out claims, waits up to
// Config.ShutdownTimeout for claimed jobs to be settled, stops retention and
// closes the file. With Config.HandleSignals, SIGINT and SIGTERM trigger the
// same drain for every open store through one process-wide signal
// registration, after which the signal is re-raised. Applications that manage
// signals themselves should disable HandleSignals and call Close.
//
// # Usage
//
//	store, err := sqlitestore.New(ctx, sqlitestore.DefaultConfig("data/queue.db"),
//		sqlitestore.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	engine, err := queue.NewEngine(store, sender)
package sqlitestore
