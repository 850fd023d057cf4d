package app

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"tickrun/internal/api"
	"tickrun/internal/config"
	"tickrun/internal/eventbus"
	"tickrun/internal/runtime/supervisor"
	"tickrun/internal/storage"
	"tickrun/internal/task/scheduler"
	logx "tickrun/pkg/logx"
	"tickrun/pkg/systemd"
)

// EventConfigReloaded is published after a config reload was applied.
const EventConfigReloaded = "config.reloaded"

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log    logx.Logger
	logs   *logx.Service
	bus    eventbus.Bus
	events *eventbus.Recorder
	store  storage.Store
	sched  *scheduler.Service

	api     *api.Server
	apiAddr string
	apiLn   net.Listener
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// APIAddr is the address the control API listens on, or "" when disabled.
func (a *App) APIAddr() string {
	if a.apiLn == nil {
		return ""
	}
	return a.apiLn.Addr().String()
}

func (a *App) Scheduler() *scheduler.Service { return a.sched }

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		if _, err := cfg.SchedulerSettings(); err != nil {
			return err
		}
		return checkWorkDir(cfg)
	})

	// Bind before starting anything so a busy port fails Start synchronously.
	if a.api != nil {
		ln, err := net.Listen("tcp", a.apiAddr)
		if err != nil {
			a.sup.Cancel()
			return fmt.Errorf("api listen %s: %w", a.apiAddr, err)
		}
		a.apiLn = ln
	}

	a.sup.Go("events.record", func(c context.Context) error { return a.events.Run(c, a.bus) })
	a.sup.Go0("eventbus.log", a.logEvents)

	if err := a.sched.Start(a.sup.Context()); err != nil {
		if a.apiLn != nil {
			_ = a.apiLn.Close()
		}
		a.sup.Cancel()
		return err
	}

	if a.api != nil {
		a.sup.Go("api.serve", func(c context.Context) error { return a.api.ServeListener(c, a.apiLn) })
	}

	a.sup.Go0("config.reload", a.reloadLoop)
	a.sup.Go("config.watch", a.cfgm.Watch)

	if wd, err := systemd.WatchdogInterval(); err != nil {
		a.log.Warn("systemd watchdog probe failed", logx.Err(err))
	} else if wd > 0 {
		a.sup.Go("systemd.watchdog", func(c context.Context) error {
			return systemd.RunWatchdog(c, wd, a.sched.Running)
		})
	}
	if ok, err := systemd.Ready(); err != nil {
		a.log.Warn("systemd notify failed", logx.Err(err))
	} else if ok {
		_, _ = systemd.Status("scheduling")
	}

	a.log.Info("app started", logx.String("api", a.APIAddr()))
	return nil
}

// logEvents mirrors bus traffic at debug level.
func (a *App) logEvents(c context.Context) {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-c.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
		}
	}
}

// reloadLoop applies hot-reloadable sections (logging, scheduler.tick) and
// warns about the ones that need a restart.
func (a *App) reloadLoop(c context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-c.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			a.applyConfig(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs, restart := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}

	a.logs.Apply(newCfg.LogConfig())
	if sc, err := newCfg.SchedulerSettings(); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	} else {
		a.sched.Apply(sc)
	}
	if len(restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect", logx.Strs("sections", restart))
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config applied", fields...)
	a.bus.Publish(eventbus.Event{Type: EventConfigReloaded, Time: time.Now(), Data: sections})
}

// Stop shuts everything down within ctx. The scheduler and the supervised
// goroutines stop concurrently; storage and logging close last.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	start := time.Now()
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = systemd.Stopping()

	a.sup.Cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.step(gctx, "scheduler", 3*time.Second, a.sched.Stop) })
	g.Go(func() error { return a.step(gctx, "supervisor", 6*time.Second, a.sup.Wait) })
	err := g.Wait()

	if cerr := a.store.Close(); cerr != nil {
		a.log.Warn("storage close failed", logx.Err(cerr))
		if err == nil {
			err = cerr
		}
	}

	a.log.Info("stopped", logx.Duration("took", time.Since(start)))
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return err
}

// step runs fn bounded by limit without extending ctx's deadline.
func (a *App) step(ctx context.Context, name string, limit time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	stepCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	err := fn(stepCtx)
	took := time.Since(start)
	if err != nil {
		a.log.Warn("stop step error", logx.String("name", name), logx.Err(err), logx.Duration("took", took))
		return fmt.Errorf("stop %s: %w", name, err)
	}
	if took >= 500*time.Millisecond {
		a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
	} else {
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
	}
	return nil
}
