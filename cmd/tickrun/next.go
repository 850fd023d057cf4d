package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tickrun/internal/task"
	"tickrun/internal/task/recurrence"
)

var (
	offlineRule  ruleFlags
	offlineCount int
	offlineFrom  string
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Preview the run times of a rule without a daemon",
	Example: `  tickrun next --kind weekly --days mon,fri --time 09:00 -n 4
  tickrun next --kind monthly --date 31 --time 08:00 --from "2024-01-15 00:00:00"`,
	Args: cobra.NoArgs,
	RunE: runNext,
}

func init() {
	offlineRule.register(nextCmd)
	_ = nextCmd.MarkFlagRequired("kind")
	nextCmd.Flags().IntVarP(&offlineCount, "count", "n", 5, "number of runs to show")
	nextCmd.Flags().StringVar(&offlineFrom, "from", "", `reference time "YYYY-MM-DD HH:MM:SS" (default: now)`)
}

func runNext(cmd *cobra.Command, args []string) error {
	rec := task.Record{ID: "preview", Name: "preview", FilePath: "-"}
	if err := offlineRule.apply(cmd, &rec, true); err != nil {
		return err
	}
	t, err := rec.Task()
	if err != nil {
		return err
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return err
	}

	now := time.Now()
	if s := strings.TrimSpace(offlineFrom); s != "" {
		if now, err = task.ParseStamp(s); err != nil {
			return fmt.Errorf("--from: %w", err)
		}
	}
	if offlineCount < 1 {
		offlineCount = 1
	}

	runs := recurrence.Preview(t, now, offlineCount)
	fmt.Println(t.Describe())
	if len(runs) == 0 {
		fmt.Println("  (no upcoming run)")
		return nil
	}
	for _, at := range runs {
		fmt.Printf("  %s  %s\n", task.FormatStamp(at), at.Weekday().String()[:3])
	}
	return nil
}
