package scheduler

import (
	"context"
	"fmt"

	"tickrun/internal/task"
	logx "tickrun/pkg/logx"
)

// Add validates t, assigns an ID when empty, persists it and, if enabled,
// registers its triggers. LastRun is cleared and NextRun recomputed; both are
// owned by the scheduler.
func (s *Service) Add(ctx context.Context, t task.Task) (task.Task, error) {
	t = t.Clone()
	if t.ID == "" {
		t.ID = task.NewID()
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return task.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t.LastRun = nil
	trs, next := s.planLocked(t, s.now())
	t.NextRun = next
	if err := s.store.Add(ctx, t); err != nil {
		return task.Task{}, fmt.Errorf("add task: %w", err)
	}
	s.installLocked(t.ID, trs)

	s.log.Info("task added", logx.String("id", t.ID), logx.String("name", t.Name), logx.String("rule", t.Describe()), logx.Bool("enabled", t.Enabled))
	s.publish(EventAdded, t, nil)
	return t.Clone(), nil
}

// Update replaces the definition of an existing task. An unknown ID returns
// ErrNotFound and leaves the registry untouched. LastRun is kept from the
// stored copy.
func (s *Service) Update(ctx context.Context, t task.Task) (task.Task, error) {
	t = t.Clone()
	t.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok, err := s.store.Get(ctx, t.ID)
	if err != nil {
		return task.Task{}, fmt.Errorf("load task: %w", err)
	}
	if !ok {
		return task.Task{}, fmt.Errorf("%w: %s", ErrNotFound, t.ID)
	}
	if err := t.Validate(); err != nil {
		return task.Task{}, err
	}

	now := s.now()
	t.LastRun = old.LastRun
	trs, next := s.planLocked(t, now)
	t.NextRun = next

	// No stale trigger may survive an update, whatever the old state was.
	s.reg.Cancel(t.ID)
	ok, err = s.store.Update(ctx, t)
	if err != nil || !ok {
		restore, _ := s.planLocked(old, now)
		s.installLocked(old.ID, restore)
		if err != nil {
			return task.Task{}, fmt.Errorf("update task: %w", err)
		}
		return task.Task{}, fmt.Errorf("%w: %s", ErrNotFound, t.ID)
	}
	s.installLocked(t.ID, trs)

	s.log.Info("task updated", logx.String("id", t.ID), logx.String("name", t.Name), logx.String("rule", t.Describe()), logx.Bool("enabled", t.Enabled))
	s.publish(EventUpdated, t, nil)
	return t.Clone(), nil
}

// Delete cancels the task's triggers and removes it from storage.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load task: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.reg.Cancel(id)
	ok, err = s.store.Delete(ctx, id)
	if err != nil {
		restore, _ := s.planLocked(t, s.now())
		s.installLocked(id, restore)
		return fmt.Errorf("delete task: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.log.Info("task deleted", logx.String("id", id), logx.String("name", t.Name))
	t.Enabled = false
	t.NextRun = nil
	s.publish(EventDeleted, t, nil)
	return nil
}

// Toggle enables or disables a task. Enabling recomputes NextRun from now;
// disabling clears it.
func (s *Service) Toggle(ctx context.Context, id string, enabled bool) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return task.Task{}, fmt.Errorf("load task: %w", err)
	}
	if !ok {
		return task.Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	t.Enabled = enabled
	trs, next := s.planLocked(t, s.now())
	t.NextRun = next
	ok, err = s.store.Update(ctx, t)
	if err != nil {
		return task.Task{}, fmt.Errorf("toggle task: %w", err)
	}
	if !ok {
		return task.Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.installLocked(id, trs)

	s.log.Info("task toggled", logx.String("id", id), logx.String("name", t.Name), logx.Bool("enabled", enabled))
	s.publish(EventToggled, t, nil)
	return t.Clone(), nil
}

// Get returns a copy of the stored task.
func (s *Service) Get(ctx context.Context, id string) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return task.Task{}, fmt.Errorf("load task: %w", err)
	}
	if !ok {
		return task.Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t, nil
}

// List returns copies of every stored task in storage order.
func (s *Service) List(ctx context.Context) ([]task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	return tasks, nil
}
