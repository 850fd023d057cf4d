package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tickrun/internal/task"
)

// ruleFlags are the task fields settable from the command line.
type ruleFlags struct {
	name     string
	target   string
	kind     string
	at       string
	days     string
	date     int
	lastDay  bool
	every    int
	disabled bool
}

func (f *ruleFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.name, "name", "", "display name")
	fl.StringVar(&f.target, "target", "", "program to launch")
	fl.StringVar(&f.kind, "kind", "", "once | daily | weekly | monthly | interval")
	fl.StringVar(&f.at, "time", "", "time of day, HH:MM or HH:MM:SS")
	fl.StringVar(&f.days, "days", "", "weekly: comma-separated days (mon,tue or 0..6 with 0 = Monday)")
	fl.IntVar(&f.date, "date", 0, "monthly: day of month 1..31")
	fl.BoolVar(&f.lastDay, "last-day", false, "monthly: run on the last day of the month")
	fl.IntVar(&f.every, "every", 0, "interval: minutes between runs")
	fl.BoolVar(&f.disabled, "disabled", false, "store the task disabled")
}

// apply copies flags onto rec. With onlyChanged, flags the user did not pass
// leave rec alone.
func (f *ruleFlags) apply(cmd *cobra.Command, rec *task.Record, onlyChanged bool) error {
	set := func(name string) bool { return !onlyChanged || cmd.Flags().Changed(name) }

	if set("name") {
		rec.Name = f.name
	}
	if set("target") {
		rec.FilePath = f.target
	}
	if set("kind") {
		if _, ok := task.ParseKind(f.kind); !ok {
			return fmt.Errorf("unknown kind %q (want one of %s)", f.kind, kindList())
		}
		rec.ScheduleType = strings.ToLower(strings.TrimSpace(f.kind))
	}
	if set("time") && strings.TrimSpace(f.at) != "" {
		tod, err := task.ParseTimeOfDay(f.at)
		if err != nil {
			return err
		}
		s := tod.String()
		rec.Time = &s
	}
	if set("days") && strings.TrimSpace(f.days) != "" {
		days, err := parseDays(f.days)
		if err != nil {
			return err
		}
		rec.Days = days
	}
	if set("date") && f.date != 0 {
		d := f.date
		rec.Date = &d
	}
	if set("last-day") {
		rec.IsLastDayOfMonth = f.lastDay
	}
	if set("every") && f.every != 0 {
		n := f.every
		rec.IntervalMinutes = &n
	}
	if set("disabled") {
		enabled := !f.disabled
		rec.Enabled = &enabled
	}
	return nil
}

func parseDays(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		d, err := task.ParseWeekday(part)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no days in %q", s)
	}
	return out, nil
}

func kindList() string {
	names := make([]string, 0, len(task.Kinds))
	for _, k := range task.Kinds {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}
