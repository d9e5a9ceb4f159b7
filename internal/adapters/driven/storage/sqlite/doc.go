// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - AccountStore: Accounts, tokens and watermarks
//   - PostStore: Ingested posts
//   - SchedulerStore: Scheduler state and batch run history
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Timestamps
//
// Times are written as fixed-width UTC text (see timeLayout) so that string
// comparison in SQL orders them chronologically. The watermark may also hold
// text written by other tools, so AdvanceWatermark compares parsed times.
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
