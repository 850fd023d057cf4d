package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment override, e.g. TICKRUN_LOG_LEVEL.
const EnvPrefix = "TICKRUN"

// envOverrides lists the keys that may be set from the environment. Unset
// variables leave the file value alone.
type envOverrides struct {
	LogLevel      string `envconfig:"LOG_LEVEL"`
	LogFile       string `envconfig:"LOG_FILE"`
	Tick          string `envconfig:"TICK"`
	StorageDriver string `envconfig:"STORAGE_DRIVER"`
	StoragePath   string `envconfig:"STORAGE_PATH"`
	APIEnabled    *bool  `envconfig:"API_ENABLED"`
	APIAddr       string `envconfig:"API_ADDR"`
	WorkDir       string `envconfig:"WORK_DIR"`
}

// LoadDotEnv reads .env style files into the process environment. Missing
// files are ignored and existing variables are never overwritten.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overlays TICKRUN_* variables onto cfg.
func ApplyEnv(cfg *Config) error {
	var o envOverrides
	if err := envconfig.Process(EnvPrefix, &o); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&cfg.Logging.Level, o.LogLevel)
	if strings.TrimSpace(o.LogFile) != "" {
		cfg.Logging.File.Enabled = true
		cfg.Logging.File.Path = strings.TrimSpace(o.LogFile)
	}
	set(&cfg.Scheduler.Tick, o.Tick)
	set(&cfg.Storage.Driver, o.StorageDriver)
	set(&cfg.Storage.Path, o.StoragePath)
	if o.APIEnabled != nil {
		cfg.API.Enabled = *o.APIEnabled
	}
	set(&cfg.API.Addr, o.APIAddr)
	set(&cfg.Launch.WorkDir, o.WorkDir)
	return nil
}
