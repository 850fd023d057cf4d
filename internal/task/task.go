// Package task defines the scheduled unit and its persisted record format.
package task

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Kind is the recurrence rule of a task.
type Kind string

const (
	Once     Kind = "once"
	Daily    Kind = "daily"
	Weekly   Kind = "weekly"
	Monthly  Kind = "monthly"
	Interval Kind = "interval"
)

// Kinds lists every valid Kind in display order.
var Kinds = []Kind{Once, Daily, Weekly, Monthly, Interval}

func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range Kinds {
		if v == k {
			return k, true
		}
	}
	return "", false
}

var (
	ErrInvalid = errors.New("invalid task")
)

// Task is the scheduled unit.
//
// Days use 0 = Monday ... 6 = Sunday. NextRun is a cache of the resolver output;
// nil means the task will not fire again.
type Task struct {
	ID              string     `validate:"required"`
	Name            string     `validate:"required"`
	Target          string     `validate:"required"`
	Kind            Kind       `validate:"oneof=once daily weekly monthly interval"`
	Time            *TimeOfDay `validate:"-"`
	Days            []int      `validate:"omitempty,dive,min=0,max=6"`
	Date            *int       `validate:"omitempty,min=1,max=31"`
	LastDayOfMonth  bool
	IntervalMinutes *int `validate:"omitempty,gt=0"`
	Enabled         bool
	LastRun         *time.Time
	NextRun         *time.Time
}

// NewID returns a fresh task identifier.
func NewID() string { return uuid.NewString() }

// Clone returns a deep copy.
func (t Task) Clone() Task {
	cp := t
	if t.Time != nil {
		tod := *t.Time
		cp.Time = &tod
	}
	if t.Days != nil {
		cp.Days = append([]int(nil), t.Days...)
	}
	cp.Date = clonePtr(t.Date)
	cp.IntervalMinutes = clonePtr(t.IntervalMinutes)
	cp.LastRun = clonePtr(t.LastRun)
	cp.NextRun = clonePtr(t.NextRun)
	return cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Normalize trims text fields, sorts and dedupes weekdays, and drops anchors
// that the task's kind does not use.
func (t *Task) Normalize() {
	t.Name = strings.TrimSpace(t.Name)
	t.Target = strings.TrimSpace(t.Target)
	t.Kind = Kind(strings.ToLower(strings.TrimSpace(string(t.Kind))))

	if t.Kind != Weekly {
		t.Days = nil
	} else if len(t.Days) > 0 {
		days := append([]int(nil), t.Days...)
		sort.Ints(days)
		out := days[:0]
		for i, d := range days {
			if i > 0 && d == days[i-1] {
				continue
			}
			out = append(out, d)
		}
		t.Days = out
	}
	if t.Kind != Monthly {
		t.Date = nil
		t.LastDayOfMonth = false
	}
	if t.Kind != Interval {
		t.IntervalMinutes = nil
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and the per-kind anchor rules.
// Errors wrap ErrInvalid.
func (t Task) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	switch t.Kind {
	case Interval:
		if t.IntervalMinutes == nil {
			return fmt.Errorf("%w: interval task needs a positive interval_minutes", ErrInvalid)
		}
		return nil
	case Weekly:
		if len(t.Days) == 0 {
			return fmt.Errorf("%w: weekly task needs at least one day", ErrInvalid)
		}
	case Monthly:
		if t.Date == nil && !t.LastDayOfMonth {
			return fmt.Errorf("%w: monthly task needs a date or is_last_day_of_month", ErrInvalid)
		}
	}
	if t.Time == nil {
		return fmt.Errorf("%w: %s task needs a time", ErrInvalid, t.Kind)
	}
	return nil
}

// Describe renders the recurrence rule in a short human form.
func (t Task) Describe() string {
	at := ""
	if t.Time != nil {
		at = t.Time.String()
	}
	switch t.Kind {
	case Once:
		return "once at " + at
	case Daily:
		return "daily at " + at
	case Weekly:
		names := make([]string, 0, len(t.Days))
		for _, d := range t.Days {
			names = append(names, WeekdayName(d))
		}
		return "weekly on " + strings.Join(names, ",") + " at " + at
	case Monthly:
		if t.LastDayOfMonth {
			return "monthly on the last day at " + at
		}
		if t.Date != nil {
			return fmt.Sprintf("monthly on day %d at %s", *t.Date, at)
		}
	case Interval:
		if t.IntervalMinutes != nil {
			return fmt.Sprintf("every %d min", *t.IntervalMinutes)
		}
	}
	return string(t.Kind)
}

var weekdayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// WeekdayName maps 0 = Monday ... 6 = Sunday to a short name.
func WeekdayName(d int) string {
	if d < 0 || d > 6 {
		return fmt.Sprintf("day(%d)", d)
	}
	return weekdayNames[d]
}

// Weekday converts a time.Weekday to the 0 = Monday numbering.
func Weekday(w time.Weekday) int { return (int(w) + 6) % 7 }

// ParseWeekday accepts 0..6 (0 = Monday) or an English day name or prefix
// of at least three letters ("mon", "tues", "sunday").
func ParseWeekday(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("%w: weekday %d out of range 0..6", ErrInvalid, n)
		}
		return n, nil
	}
	if len(s) >= 3 {
		for i, name := range fullWeekdayNames {
			if strings.HasPrefix(name, s) {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalid, s)
}

var fullWeekdayNames = [7]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}
