package storage

import (
	"context"
	"errors"
	"time"

	"tickrun/internal/task"
)

var (
	ErrExists = errors.New("task already exists")
	ErrClosed = errors.New("storage closed")
)

// Config configures storage.
//
// Driver values:
//   - "file": JSON array file (default)
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the durable task list. Implementations are safe for concurrent use;
// List order is insertion order.
type Store interface {
	LoadAll(ctx context.Context) ([]task.Task, error)
	SaveAll(ctx context.Context, tasks []task.Task) error
	Add(ctx context.Context, t task.Task) error
	// Update replaces the task with the same ID. It reports false if there is none.
	Update(ctx context.Context, t task.Task) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (task.Task, bool, error)
	Close() error
}
