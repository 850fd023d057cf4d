package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tickrun/internal/task"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage scheduled tasks through the running daemon",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Args:  cobra.NoArgs,
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show task details and upcoming runs",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a task",
	Example: `  tickrun task add --name backup --target /usr/local/bin/backup.sh --kind daily --time 02:30
  tickrun task add --name report --target ./report --kind weekly --days mon,thu --time 09:00
  tickrun task add --name rollup --target ./rollup --kind monthly --last-day --time 23:00
  tickrun task add --name poll --target ./poll --kind interval --every 15`,
	Args: cobra.NoArgs,
	RunE: runTaskAdd,
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update [task-id]",
	Short: "Change a task; only the flags given are modified",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskUpdate,
}

var taskDeleteCmd = &cobra.Command{
	Use:     "delete [task-id]",
	Aliases: []string{"rm"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE:    runTaskDelete,
}

var taskEnableCmd = &cobra.Command{
	Use:   "enable [task-id]",
	Short: "Enable a task",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runTaskToggle(args[0], true) },
}

var taskDisableCmd = &cobra.Command{
	Use:   "disable [task-id]",
	Short: "Disable a task",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runTaskToggle(args[0], false) },
}

var taskNextCmd = &cobra.Command{
	Use:   "next [task-id]",
	Short: "Show the next run times of a stored task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskNext,
}

var (
	rule      ruleFlags
	taskID    string
	nextCount int
)

func init() {
	taskCmd.AddCommand(taskListCmd, taskShowCmd, taskAddCmd, taskUpdateCmd, taskDeleteCmd, taskEnableCmd, taskDisableCmd, taskNextCmd)

	rule.register(taskAddCmd)
	taskAddCmd.Flags().StringVar(&taskID, "id", "", "explicit task id (default: generated)")
	_ = taskAddCmd.MarkFlagRequired("name")
	_ = taskAddCmd.MarkFlagRequired("target")
	_ = taskAddCmd.MarkFlagRequired("kind")

	rule.register(taskUpdateCmd)

	taskNextCmd.Flags().IntVarP(&nextCount, "count", "n", 5, "number of runs to show")
}

func runTaskList(cmd *cobra.Command, args []string) error {
	var tasks []task.Task
	if err := apiGet("/api/v1/tasks", &tasks); err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tRULE\tENABLED\tNEXT RUN\tLAST RUN")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n",
			truncateID(t.ID), truncate(t.Name, 30), t.Describe(), t.Enabled, stamp(t.NextRun), stamp(t.LastRun))
	}
	return w.Flush()
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	var t task.Task
	if err := apiGet("/api/v1/tasks/"+url.PathEscape(args[0]), &t); err != nil {
		return err
	}
	printTask(t)

	var p previewReply
	if err := apiGet("/api/v1/tasks/"+url.PathEscape(t.ID)+"/preview?n=5", &p); err != nil {
		return err
	}
	if len(p.Runs) > 0 {
		fmt.Println("Upcoming:")
		for _, r := range p.Runs {
			fmt.Printf("  %s\n", r)
		}
	}
	return nil
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	rec := task.Record{ID: strings.TrimSpace(taskID)}
	if err := rule.apply(cmd, &rec, false); err != nil {
		return err
	}
	var created task.Task
	if err := apiPost("/api/v1/tasks", rec, &created); err != nil {
		return err
	}
	fmt.Printf("Created task: %s\n", created.ID)
	fmt.Printf("Next run:     %s\n", stamp(created.NextRun))
	return nil
}

func runTaskUpdate(cmd *cobra.Command, args []string) error {
	path := "/api/v1/tasks/" + url.PathEscape(args[0])
	var cur task.Task
	if err := apiGet(path, &cur); err != nil {
		return err
	}
	rec := cur.ToRecord()
	rec.LastRun, rec.NextRun = nil, nil
	if err := rule.apply(cmd, &rec, true); err != nil {
		return err
	}

	var updated task.Task
	if err := apiPut(path, rec, &updated); err != nil {
		return err
	}
	fmt.Printf("Updated task: %s (%s)\n", updated.ID, updated.Describe())
	fmt.Printf("Next run:     %s\n", stamp(updated.NextRun))
	return nil
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	if err := apiDelete("/api/v1/tasks/" + url.PathEscape(args[0])); err != nil {
		return err
	}
	fmt.Printf("Deleted task %s\n", args[0])
	return nil
}

func runTaskToggle(id string, enabled bool) error {
	verb := "disable"
	if enabled {
		verb = "enable"
	}
	var t task.Task
	if err := apiPost("/api/v1/tasks/"+url.PathEscape(id)+"/"+verb, nil, &t); err != nil {
		return err
	}
	fmt.Printf("Task %s %sd; next run: %s\n", t.ID, verb, stamp(t.NextRun))
	return nil
}

type previewReply struct {
	ID   string   `json:"id"`
	Rule string   `json:"rule"`
	Runs []string `json:"runs"`
}

func runTaskNext(cmd *cobra.Command, args []string) error {
	var p previewReply
	q := fmt.Sprintf("/api/v1/tasks/%s/preview?n=%d", url.PathEscape(args[0]), nextCount)
	if err := apiGet(q, &p); err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", p.ID, p.Rule)
	for _, r := range p.Runs {
		fmt.Printf("  %s\n", r)
	}
	return nil
}

func printTask(t task.Task) {
	fmt.Printf("ID:        %s\n", t.ID)
	fmt.Printf("Name:      %s\n", t.Name)
	fmt.Printf("Target:    %s\n", t.Target)
	fmt.Printf("Rule:      %s\n", t.Describe())
	fmt.Printf("Enabled:   %t\n", t.Enabled)
	fmt.Printf("Next run:  %s\n", stamp(t.NextRun))
	fmt.Printf("Last run:  %s\n", stamp(t.LastRun))
}

func stamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return task.FormatStamp(*t)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
