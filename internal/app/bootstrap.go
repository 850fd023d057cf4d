package app

import (
	"tickrun/internal/api"
	"tickrun/internal/config"
	"tickrun/internal/eventbus"
	"tickrun/internal/launch"
	"tickrun/internal/storage"
	"tickrun/internal/task/scheduler"
	logx "tickrun/pkg/logx"
)

// activityFeedSize bounds the recent-events list of /api/v1/status.
const activityFeedSize = 100

// New loads the config and builds every component. Nothing runs until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := checkWorkDir(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(cfg.LogConfig())
	log = log.With(logx.String("comp", "app"))

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", sc.Driver), logx.String("path", sc.Path))

	schedCfg, err := cfg.SchedulerSettings()
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}

	bus := eventbus.New()
	events := eventbus.NewRecorder(activityFeedSize, "task.", EventConfigReloaded)
	launcher := launch.NewExec(cfg.Launch.WorkDir, log.With(logx.String("comp", "launch")))
	sched := scheduler.New(schedCfg, store, launcher, log.With(logx.String("comp", "scheduler")), bus)

	a := &App{
		cfgm:   cfgm,
		log:    log,
		logs:   logSvc,
		bus:    bus,
		events: events,
		store:  store,
		sched:  sched,
	}
	if cfg.API.Enabled {
		a.api = api.New(sched, events, log.With(logx.String("comp", "api")), api.WithProfiler(cfg.API.Pprof))
		a.apiAddr = cfg.API.Addr
	}
	return a, nil
}
