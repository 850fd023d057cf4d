package scheduler

import (
	"context"
	"fmt"
	"time"

	"tickrun/internal/eventbus"
	"tickrun/internal/launch"
	"tickrun/internal/runtime/supervisor"
	"tickrun/internal/storage"
	"tickrun/internal/task"
	"tickrun/internal/task/recurrence"
	"tickrun/internal/task/registry"
	logx "tickrun/pkg/logx"
)

func New(cfg Config, store storage.Store, launcher launch.Launcher, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	return &Service{
		cfg:      cfg,
		log:      log,
		store:    store,
		reg:      registry.New(),
		launcher: launcher,
		bus:      bus,
		now:      time.Now,
		failures: newFailureReporter(),
		retick:   make(chan time.Duration, 1),
	}
}

// Apply swaps the dispatcher config at runtime. A tick change takes effect on
// the running loop without a restart.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	old := s.cfg.tick()
	s.cfg = cfg
	running := s.running
	s.mu.Unlock()

	if running && old != cfg.tick() {
		select {
		case s.retick <- cfg.tick():
		default:
		}
		s.log.Info("dispatcher tick changed", logx.Duration("from", old), logx.Duration("to", cfg.tick()))
	}
}

// Start loads every stored task, refreshes NextRun of enabled ones, registers
// their triggers and starts the dispatcher loop. Starting twice is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	tasks, err := s.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}

	now := s.now()
	s.reg.Clear()
	s.running = true
	active := 0
	for i := range tasks {
		trs, next := s.planLocked(tasks[i], now)
		tasks[i].NextRun = next
		if len(trs) > 0 {
			s.reg.Register(tasks[i].ID, trs...)
			active++
		}
	}
	if err := s.store.SaveAll(ctx, tasks); err != nil {
		s.running = false
		s.reg.Clear()
		return fmt.Errorf("persist next runs: %w", err)
	}

	tick := s.cfg.tick()
	// Drain a stale tick change from a previous run.
	select {
	case <-s.retick:
	default:
	}
	s.sup = supervisor.New(context.WithoutCancel(ctx), supervisor.WithLogger(s.log))
	s.sup.GoRestart("scheduler.dispatch", s.loop, supervisor.WithRestartBackoff(tick, 30*time.Second))

	s.log.Info("scheduler started", logx.Int("tasks", len(tasks)), logx.Int("active", active), logx.Duration("tick", tick))
	return nil
}

// Stop halts the dispatcher, waits for an in-flight tick and drops every
// trigger. Stored tasks are untouched.
func (s *Service) Stop(ctx context.Context) error {
	start := time.Now()

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	sup := s.sup
	s.sup = nil
	s.mu.Unlock()

	var err error
	if sup != nil {
		err = sup.Stop(ctx)
	}
	s.reg.Clear()

	s.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
	return err
}

// Running reports whether the dispatcher loop is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// planLocked resolves the triggers a task should own at now. Enabled tasks with
// no future instant are stalled: they keep their flag but never fire.
func (s *Service) planLocked(t task.Task, now time.Time) ([]registry.Trigger, *time.Time) {
	if !t.Enabled {
		return nil, nil
	}
	trs := recurrence.Triggers(t, now)
	if len(trs) == 0 {
		s.log.Warn("task has no next run", logx.String("id", t.ID), logx.String("name", t.Name), logx.String("rule", t.Describe()))
		t.NextRun = nil
		s.publish(EventStalled, t, nil)
		return nil, nil
	}
	next := trs[0].At
	for _, tr := range trs[1:] {
		if tr.At.Before(next) {
			next = tr.At
		}
	}
	if s.log.Enabled(logx.LevelDebug) {
		s.log.Debug("task planned", logx.String("id", t.ID), logx.String("rule", t.Describe()), logx.String("next", previewString(t, now)))
	}
	return trs, &next
}

// installLocked replaces the registry entries of id. Nothing is registered
// while the dispatcher is stopped; Start rebuilds the registry from storage.
func (s *Service) installLocked(id string, trs []registry.Trigger) {
	if !s.running || len(trs) == 0 {
		s.reg.Cancel(id)
		return
	}
	s.reg.Register(id, trs...)
}

func (s *Service) publish(typ string, t task.Task, err error) {
	ev := TaskEvent{ID: t.ID, Name: t.Name, Kind: t.Kind, Enabled: t.Enabled, NextRun: t.NextRun}
	if err != nil {
		ev.Err = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.now(), Data: ev})
}

func previewString(t task.Task, now time.Time) string {
	out := ""
	for i, at := range recurrence.Preview(t, now, 3) {
		if i > 0 {
			out += ", "
		}
		out += at.Format("2006-01-02 15:04:05")
	}
	return out
}
