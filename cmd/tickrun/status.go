package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show dispatcher state and recent activity",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

type statusReply struct {
	Scheduler struct {
		Running  bool              `json:"running"`
		Tick     time.Duration     `json:"tick"`
		LastTick time.Time         `json:"last_tick"`
		Fired    uint64            `json:"fired"`
		Failed   uint64            `json:"failed"`
		Triggers []json.RawMessage `json:"triggers"`
	} `json:"scheduler"`
	Events []struct {
		Type string          `json:"type"`
		Time time.Time       `json:"time"`
		Data json.RawMessage `json:"data"`
	} `json:"events"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	var st statusReply
	if err := apiGet("/api/v1/status", &st); err != nil {
		return err
	}
	s := st.Scheduler
	fmt.Printf("Running:   %t\n", s.Running)
	fmt.Printf("Tick:      %s\n", s.Tick)
	if !s.LastTick.IsZero() {
		fmt.Printf("Last tick: %s\n", s.LastTick.Local().Format(time.DateTime))
	}
	fmt.Printf("Fired:     %d\n", s.Fired)
	fmt.Printf("Failed:    %d\n", s.Failed)
	fmt.Printf("Triggers:  %d\n", len(s.Triggers))

	if len(st.Events) == 0 {
		return nil
	}
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tEVENT\tTASK")
	for _, e := range st.Events {
		var ref struct {
			Name string `json:"name"`
		}
		// Non-task events carry other payloads; the name stays empty.
		_ = json.Unmarshal(e.Data, &ref)
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Time.Local().Format(time.DateTime), e.Type, ref.Name)
	}
	return w.Flush()
}
