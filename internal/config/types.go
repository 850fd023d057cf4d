package config

import (
	"errors"
	"strings"
	"time"

	"tickrun/internal/storage"
	"tickrun/internal/task/scheduler"
	logx "tickrun/pkg/logx"
)

// ErrInvalid marks a config that parsed but failed validation.
var ErrInvalid = errors.New("invalid config")

// Config is the daemon configuration. Files may be JSON or YAML; keys are the
// json tags below. Durations are Go duration strings ("1s", "500ms").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   StorageConfig   `json:"storage"`
	API       APIConfig       `json:"api"`
	Launch    LaunchConfig    `json:"launch"`
}

type LoggingConfig struct {
	Level   string        `json:"level" validate:"loglevel"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file"`
}

type LogFileConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" validate:"gte=0"`
	MaxBackups int    `json:"max_backups,omitempty" validate:"gte=0"`
	MaxAgeDays int    `json:"max_age_days,omitempty" validate:"gte=0"`
}

// SchedulerConfig controls the dispatcher. Tick is hot-reloadable.
type SchedulerConfig struct {
	Tick string `json:"tick,omitempty" validate:"omitempty,duration"`
}

// StorageConfig selects the task store. Changes apply on restart.
type StorageConfig struct {
	Driver      string `json:"driver,omitempty" validate:"omitempty,oneof=file json sqlite sqlite3"`
	Path        string `json:"path" validate:"required"`
	BusyTimeout string `json:"busy_timeout,omitempty" validate:"omitempty,duration"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty" validate:"omitempty,hostname_port"`
	// Pprof mounts net/http/pprof under /debug on the API listener.
	Pprof bool `json:"pprof,omitempty"`
}

type LaunchConfig struct {
	// WorkDir is the working directory of launched targets; empty inherits ours.
	WorkDir string `json:"work_dir,omitempty"`
}

const (
	DefaultTick    = "1s"
	DefaultAPIAddr = "127.0.0.1:7070"
	DefaultStore   = "tasks.json"
)

// Default returns the config used when no file exists. Parsed files are
// decoded on top of it, so omitted keys keep these values.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			File:    LogFileConfig{Path: "./tickrun.log"},
		},
		Scheduler: SchedulerConfig{Tick: DefaultTick},
		Storage:   StorageConfig{Driver: "file", Path: DefaultStore},
		API:       APIConfig{Enabled: true, Addr: DefaultAPIAddr},
	}
}

// LogConfig maps the logging section onto logx.
func (c *Config) LogConfig() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File: logx.FileConfig{
			Enabled:    c.Logging.File.Enabled,
			Path:       strings.TrimSpace(c.Logging.File.Path),
			MaxSizeMB:  c.Logging.File.MaxSizeMB,
			MaxBackups: c.Logging.File.MaxBackups,
			MaxAgeDays: c.Logging.File.MaxAgeDays,
		},
	}
}

// SchedulerSettings resolves the scheduler section.
func (c *Config) SchedulerSettings() (scheduler.Config, error) {
	tick, err := ParseDurationOrDefault("scheduler.tick", c.Scheduler.Tick, scheduler.DefaultTick)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{Tick: tick}, nil
}

// StorageSettings resolves the storage section.
func (c *Config) StorageSettings() (storage.Config, error) {
	busy, err := ParseDurationOrDefault("storage.busy_timeout", c.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(c.Storage.Driver)),
		Path:        strings.TrimSpace(c.Storage.Path),
		BusyTimeout: busy,
	}, nil
}
