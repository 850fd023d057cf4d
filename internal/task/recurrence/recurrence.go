// Package recurrence turns a task definition into concrete trigger instants.
//
// Every kind is expressed as a cron.Schedule:
//   - once, daily: a cron spec firing every day at the task's time
//   - weekly: one cron spec per configured weekday (sub-triggers)
//   - monthly: calendar-aware schedules for a fixed day or the last day
//   - interval: a constant delay from the reference instant
//
// All functions are pure: no I/O, no clock reads, safe to call repeatedly.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"tickrun/internal/task"
	"tickrun/internal/task/registry"
)

// MonthlyWindow is how many months past the current one a fixed-day monthly
// schedule scans before giving up.
const MonthlyWindow = 12

var ErrNoSchedule = errors.New("no schedule")

// Seconds are enabled so task times keep their second component.
var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// cron counts weekdays from Sunday; tasks count from Monday.
var cronWeekday = [7]int{1, 2, 3, 4, 5, 6, 0}

// Occurrence is one trigger source of a task. Weekday is registry.NoWeekday for
// everything but weekly sub-triggers.
type Occurrence struct {
	Weekday  int
	Schedule cron.Schedule
}

// Occurrences builds the schedules for t regardless of its enabled flag.
func Occurrences(t task.Task) ([]Occurrence, error) {
	switch t.Kind {
	case task.Interval:
		if t.IntervalMinutes == nil || *t.IntervalMinutes <= 0 {
			return nil, fmt.Errorf("%w: interval_minutes must be > 0", ErrNoSchedule)
		}
		return []Occurrence{{Weekday: registry.NoWeekday, Schedule: cron.Every(time.Duration(*t.IntervalMinutes) * time.Minute)}}, nil
	case task.Once, task.Daily, task.Weekly, task.Monthly:
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrNoSchedule, t.Kind)
	}

	if t.Time == nil {
		return nil, fmt.Errorf("%w: %s task has no time", ErrNoSchedule, t.Kind)
	}
	at := *t.Time

	switch t.Kind {
	case task.Weekly:
		if len(t.Days) == 0 {
			return nil, fmt.Errorf("%w: weekly task has no days", ErrNoSchedule)
		}
		out := make([]Occurrence, 0, len(t.Days))
		seen := [7]bool{}
		for _, d := range t.Days {
			if d < 0 || d > 6 {
				return nil, fmt.Errorf("%w: weekday %d out of range", ErrNoSchedule, d)
			}
			if seen[d] {
				continue
			}
			seen[d] = true
			sched, err := parser.Parse(fmt.Sprintf("%d %d %d * * %d", at.Second, at.Minute, at.Hour, cronWeekday[d]))
			if err != nil {
				return nil, err
			}
			out = append(out, Occurrence{Weekday: d, Schedule: sched})
		}
		return out, nil
	case task.Monthly:
		if t.LastDayOfMonth {
			return []Occurrence{{Weekday: registry.NoWeekday, Schedule: lastDaySchedule{at: at}}}, nil
		}
		if t.Date == nil || *t.Date < 1 || *t.Date > 31 {
			return nil, fmt.Errorf("%w: monthly task needs a day between 1 and 31", ErrNoSchedule)
		}
		return []Occurrence{{Weekday: registry.NoWeekday, Schedule: monthDaySchedule{day: *t.Date, at: at, window: MonthlyWindow}}}, nil
	default:
		sched, err := parser.Parse(fmt.Sprintf("%d %d %d * * *", at.Second, at.Minute, at.Hour))
		if err != nil {
			return nil, err
		}
		return []Occurrence{{Weekday: registry.NoWeekday, Schedule: sched}}, nil
	}
}

// Triggers returns the registry entries t should own at now. Disabled or
// invalid tasks, and schedules with no future instant, yield none.
func Triggers(t task.Task, now time.Time) []registry.Trigger {
	if !t.Enabled {
		return nil
	}
	occs, err := Occurrences(t)
	if err != nil {
		return nil
	}
	out := make([]registry.Trigger, 0, len(occs))
	for _, o := range occs {
		at := o.Schedule.Next(now)
		if at.IsZero() {
			continue
		}
		out = append(out, registry.Trigger{Key: registry.Key{TaskID: t.ID, Weekday: o.Weekday}, At: at})
	}
	return out
}

// Resolve returns the next instant strictly after now at which t fires.
func Resolve(t task.Task, now time.Time) (time.Time, bool) {
	return earliest(Triggers(t, now))
}

// Preview lists up to n upcoming instants after now, as if t were enabled.
// A one-shot task previews at most one instant.
func Preview(t task.Task, now time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	t = t.Clone()
	t.Enabled = true
	if t.ID == "" {
		t.ID = "preview"
	}

	out := make([]time.Time, 0, n)
	cur := now
	for len(out) < n {
		at, ok := Resolve(t, cur)
		if !ok {
			break
		}
		out = append(out, at)
		if t.Kind == task.Once {
			break
		}
		cur = at
	}
	return out
}

func earliest(ts []registry.Trigger) (time.Time, bool) {
	var best time.Time
	for _, tr := range ts {
		if best.IsZero() || tr.At.Before(best) {
			best = tr.At
		}
	}
	return best, !best.IsZero()
}
