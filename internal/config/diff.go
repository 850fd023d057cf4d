package config

import (
	"strings"

	logx "tickrun/pkg/logx"
)

// SummarizeConfigChange returns (1) the sections that changed, (2) structured
// attrs for logging and (3) the changed sections that only take effect after
// a restart.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 12)
	var restart []string

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file.enabled", newCfg.Logging.File.Enabled),
			logx.String("logging.file.path", strings.TrimSpace(newCfg.Logging.File.Path)),
		)
	}

	if strings.TrimSpace(oldCfg.Scheduler.Tick) != strings.TrimSpace(newCfg.Scheduler.Tick) {
		changed = append(changed, "scheduler")
		attrs = append(attrs, logx.String("scheduler.tick", strings.TrimSpace(newCfg.Scheduler.Tick)))
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		restart = append(restart, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.String("storage.path", newCfg.Storage.Path),
		)
	}

	if oldCfg.API != newCfg.API {
		changed = append(changed, "api")
		restart = append(restart, "api")
		attrs = append(attrs,
			logx.Bool("api.enabled", newCfg.API.Enabled),
			logx.String("api.addr", newCfg.API.Addr),
		)
	}

	if oldCfg.Launch != newCfg.Launch {
		changed = append(changed, "launch")
		restart = append(restart, "launch")
		attrs = append(attrs, logx.String("launch.work_dir", newCfg.Launch.WorkDir))
	}

	return changed, attrs, restart
}
