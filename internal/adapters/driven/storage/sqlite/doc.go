// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple ports
// through a single database connection:
//
//   - CheckpointStore: continuation token persistence, one row per key
//   - RunHistoryStore: finished sync runs
//   - SchedulerStore: background task state and results
//   - SearchIndex: a local FTS5 index that also answers queries
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.indexsync/data/indexsync.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
