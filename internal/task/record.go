package task

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// StampLayout is the persisted timestamp format (naive local time).
const StampLayout = "2006-01-02 15:04:05"

// Record is the persisted/wire shape of a Task. Key names match the tasks.json
// files written by earlier releases so they load unchanged.
type Record struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	FilePath         string  `json:"file_path"`
	ScheduleType     string  `json:"schedule_type"`
	Time             *string `json:"time"`
	Days             []int   `json:"days"`
	Date             *int    `json:"date"`
	IsLastDayOfMonth bool    `json:"is_last_day_of_month"`
	Enabled          *bool   `json:"enabled,omitempty"`
	LastRun          *string `json:"last_run"`
	NextRun          *string `json:"next_run"`
	IntervalMinutes  *int    `json:"interval_minutes"`
}

func FormatStamp(t time.Time) string { return t.Local().Format(StampLayout) }

func ParseStamp(s string) (time.Time, error) {
	return time.ParseInLocation(StampLayout, strings.TrimSpace(s), time.Local)
}

// ToRecord renders t in its persisted shape.
func (t Task) ToRecord() Record {
	enabled := t.Enabled
	r := Record{
		ID:               t.ID,
		Name:             t.Name,
		FilePath:         t.Target,
		ScheduleType:     string(t.Kind),
		Days:             t.Days,
		Date:             clonePtr(t.Date),
		IsLastDayOfMonth: t.LastDayOfMonth,
		Enabled:          &enabled,
		IntervalMinutes:  clonePtr(t.IntervalMinutes),
	}
	if r.Days == nil {
		r.Days = []int{}
	}
	if t.Time != nil {
		s := t.Time.String()
		r.Time = &s
	}
	if t.LastRun != nil {
		s := FormatStamp(*t.LastRun)
		r.LastRun = &s
	}
	if t.NextRun != nil {
		s := FormatStamp(*t.NextRun)
		r.NextRun = &s
	}
	return r
}

// Task converts a record. A missing "enabled" key means enabled.
// Malformed times and stamps are reported as ErrInvalid.
func (r Record) Task() (Task, error) {
	t := Task{
		ID:              r.ID,
		Name:            r.Name,
		Target:          r.FilePath,
		Kind:            Kind(strings.ToLower(strings.TrimSpace(r.ScheduleType))),
		Date:            clonePtr(r.Date),
		LastDayOfMonth:  r.IsLastDayOfMonth,
		IntervalMinutes: clonePtr(r.IntervalMinutes),
		Enabled:         r.Enabled == nil || *r.Enabled,
	}
	if len(r.Days) > 0 {
		t.Days = append([]int(nil), r.Days...)
	}
	if r.Time != nil && strings.TrimSpace(*r.Time) != "" {
		tod, err := ParseTimeOfDay(*r.Time)
		if err != nil {
			return Task{}, err
		}
		t.Time = &tod
	}
	var err error
	if t.LastRun, err = parseStampPtr("last_run", r.LastRun); err != nil {
		return Task{}, err
	}
	if t.NextRun, err = parseStampPtr("next_run", r.NextRun); err != nil {
		return Task{}, err
	}
	return t, nil
}

func parseStampPtr(field string, s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	v, err := ParseStamp(*s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q", ErrInvalid, field, *s)
	}
	return &v, nil
}

func (t Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.ToRecord())
}

func (t *Task) UnmarshalJSON(b []byte) error {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	v, err := r.Task()
	if err != nil {
		return err
	}
	*t = v
	return nil
}
