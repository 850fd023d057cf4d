package app

import (
	"fmt"
	"os"
	"strings"

	"tickrun/internal/config"
	"tickrun/internal/storage"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc, err := cfg.StorageSettings()
	if err != nil {
		return storage.Config{}, err
	}
	switch sc.Driver {
	case "", "json":
		sc.Driver = "file"
	case "sqlite3":
		sc.Driver = "sqlite"
	}
	if sc.Path == "" {
		return storage.Config{}, fmt.Errorf("storage.path is required")
	}
	return sc, nil
}

// checkWorkDir rejects a launch.work_dir that is not an existing directory.
func checkWorkDir(cfg *config.Config) error {
	dir := strings.TrimSpace(cfg.Launch.WorkDir)
	if dir == "" {
		return nil
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("launch.work_dir: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("launch.work_dir: %s is not a directory", dir)
	}
	return nil
}
