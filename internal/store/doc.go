// Package store keeps run history in SQLite.
//
// Every run is one row in runs (totals plus how it was invoked) and one row
// per case in verdicts, in report order. History is append-only: writing a
// run ID that already exists is a no-op.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
