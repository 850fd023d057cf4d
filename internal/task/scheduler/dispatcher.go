package scheduler

import (
	"context"
	"time"

	"tickrun/internal/task"
	logx "tickrun/pkg/logx"
)

// loop is the dispatcher: one ticker, one fireDue per tick. It runs under the
// supervisor, which restarts it after a panic.
func (s *Service) loop(ctx context.Context) error {
	s.mu.Lock()
	tick := s.cfg.tick()
	s.mu.Unlock()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d := <-s.retick:
			ticker.Reset(d)
		case <-ticker.C:
			s.fireDue(ctx, s.now())
		}
	}
}

// fireDue fires every task with a due trigger, at most once per task.
func (s *Service) fireDue(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.lastTick = now

	due := s.reg.Due(now)
	if len(due) == 0 {
		return
	}
	seen := make(map[string]struct{}, len(due))
	for _, tr := range due {
		id := tr.Key.TaskID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		s.fireLocked(ctx, id, now)
	}
}

func (s *Service) fireLocked(ctx context.Context, id string, now time.Time) {
	t, ok, err := s.store.Get(ctx, id)
	if err != nil {
		// Trigger stays due; the next tick retries.
		s.failures.report(s.log, "load:"+id, "task load failed", logx.String("id", id), logx.Err(err))
		return
	}
	if !ok || !t.Enabled {
		// Deleted or disabled behind our back: never resurrect it.
		s.reg.Cancel(id)
		s.log.Debug("dropping stale trigger", logx.String("id", id), logx.Bool("exists", ok))
		return
	}

	if err := s.launcher.Start(t.Target); err != nil {
		s.failed++
		s.failures.report(s.log, id, "task launch failed",
			logx.String("id", id), logx.String("name", t.Name), logx.String("target", t.Target), logx.Err(err))
		// Not marked as run: wait for the next computed occurrence instead of
		// retrying every tick.
		trs, _ := s.planLocked(t, now)
		s.installLocked(id, trs)
		s.publish(EventLaunchFailed, t, err)
		return
	}

	s.fired++
	ran := now
	t.LastRun = &ran
	if t.Kind == task.Once {
		t.Enabled = false
		t.NextRun = nil
		s.reg.Cancel(id)
	} else {
		trs, next := s.planLocked(t, now)
		t.NextRun = next
		s.installLocked(id, trs)
	}
	if _, err := s.store.Update(ctx, t); err != nil {
		s.log.Error("task state not persisted", logx.String("id", id), logx.Err(err))
	}

	fields := []logx.Field{logx.String("id", id), logx.String("name", t.Name), logx.String("target", t.Target)}
	if t.NextRun != nil {
		fields = append(fields, logx.Time("next_run", *t.NextRun))
	}
	s.log.Info("task fired", fields...)
	s.publish(EventFired, t, nil)
}
