// Package storage persists the task list.
//
// Drivers:
//   - "file": a single JSON array, rewritten atomically (tmp + rename) on every change
//   - "sqlite": a SQLite database (modernc.org/sqlite, no cgo)
//
// Both drivers tolerate damaged data on load: unreadable records are skipped
// with a warning instead of failing startup.
package storage
