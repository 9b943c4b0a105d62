// Package store persists run history in a SQLite ledger.
//
// Two tables back the ledger:
//   - runs: one row per suite execution with aggregate case counts
//   - outcomes: one row per executed assignment plan, keyed by
//     (run_id, case_name, row_index)
//
// Writes are idempotent: runs conflict on id, outcomes on their composite
// key, and duplicates are silently ignored. Re-recording a finished run is
// therefore safe.
//
// Failures that happen before any row runs (a bad source binding, a
// malformed data file) are recorded as a single outcome with row_index -1,
// so the history of a case includes its configuration errors.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: outcomes must reference an existing run
package store
