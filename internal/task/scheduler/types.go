package scheduler

import (
	"errors"
	"sync"
	"time"

	"tickrun/internal/eventbus"
	"tickrun/internal/launch"
	"tickrun/internal/runtime/supervisor"
	"tickrun/internal/storage"
	"tickrun/internal/task"
	"tickrun/internal/task/registry"
	logx "tickrun/pkg/logx"
)

const DefaultTick = time.Second

var (
	ErrNotFound    = errors.New("task not found")
	ErrInvalidTask = task.ErrInvalid
	ErrExists      = storage.ErrExists
)

// Event types published on the bus.
const (
	EventAdded        = "task.added"
	EventUpdated      = "task.updated"
	EventDeleted      = "task.deleted"
	EventToggled      = "task.toggled"
	EventFired        = "task.fired"
	EventLaunchFailed = "task.launch_failed"
	EventStalled      = "task.stalled"
)

// Config controls the dispatcher.
type Config struct {
	Tick time.Duration // polling cadence; <= 0 means DefaultTick
}

func (c Config) tick() time.Duration {
	if c.Tick <= 0 {
		return DefaultTick
	}
	return c.Tick
}

// TaskEvent is the Data of every task.* event.
type TaskEvent struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Kind    task.Kind  `json:"kind"`
	Enabled bool       `json:"enabled"`
	NextRun *time.Time `json:"next_run,omitempty"`
	Err     string     `json:"err,omitempty"`
}

type Service struct {
	mu sync.Mutex

	log      logx.Logger
	cfg      Config
	store    storage.Store
	reg      *registry.Registry
	launcher launch.Launcher
	bus      eventbus.Bus
	now      func() time.Time
	failures *failureReporter

	running  bool
	sup      *supervisor.Supervisor
	retick   chan time.Duration
	lastTick time.Time
	fired    uint64
	failed   uint64
}

type Snapshot struct {
	Running    bool                `json:"running"`
	Tick       time.Duration       `json:"tick"`
	LastTick   time.Time           `json:"last_tick"`
	Fired      uint64              `json:"fired"`
	Failed     uint64              `json:"failed"`
	Triggers   []registry.Trigger  `json:"triggers"`
	Supervisor supervisor.Snapshot `json:"supervisor"`
}
