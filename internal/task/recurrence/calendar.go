package recurrence

import (
	"time"

	"tickrun/internal/task"
)

// Date builds y-m-d at tod in loc. m may be out of range and is normalised
// first (month 13 is January of y+1); a day the month lacks reports false
// instead of rolling over into the next month.
func Date(y int, m time.Month, d int, tod task.TimeOfDay, loc *time.Location) (time.Time, bool) {
	if d < 1 || d > 31 {
		return time.Time{}, false
	}
	first := time.Date(y, m, 1, 0, 0, 0, 0, loc)
	t := time.Date(first.Year(), first.Month(), d, tod.Hour, tod.Minute, tod.Second, 0, loc)
	if t.Month() != first.Month() || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

// LastDay returns the last calendar day of y-m at tod in loc.
func LastDay(y int, m time.Month, tod task.TimeOfDay, loc *time.Location) time.Time {
	// Day 0 of the next month is the last day of this one.
	return time.Date(y, m+1, 0, tod.Hour, tod.Minute, tod.Second, 0, loc)
}

// monthDaySchedule fires on a fixed day of month, skipping months that lack it.
type monthDaySchedule struct {
	day    int
	at     task.TimeOfDay
	window int
}

func (s monthDaySchedule) Next(t time.Time) time.Time {
	y, m, _ := t.Date()
	for i := 0; i <= s.window; i++ {
		cand, ok := Date(y, m+time.Month(i), s.day, s.at, t.Location())
		if ok && cand.After(t) {
			return cand
		}
	}
	return time.Time{}
}

// lastDaySchedule fires on the last day of every month.
type lastDaySchedule struct {
	at task.TimeOfDay
}

func (s lastDaySchedule) Next(t time.Time) time.Time {
	y, m, _ := t.Date()
	cand := LastDay(y, m, s.at, t.Location())
	if !cand.After(t) {
		cand = LastDay(y, m+1, s.at, t.Location())
	}
	return cand
}
