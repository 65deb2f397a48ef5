package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskorch/internal/state"
	"github.com/ShayCichocki/taskorch/pkg/models"
)

var (
	statusLimit  int
	statusFilter string
	statusAgent  string
	statusPurge  time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status [task-id]",
	Short: "Show archived task history",
	Long: `Display tasks recorded in the archive.

Without arguments, shows totals by status and agent followed by the most
recently finished tasks. With a task ID, shows that task in full.

Requires archive.enabled in the config.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 20, "Number of recent tasks to show")
	statusCmd.Flags().StringVar(&statusFilter, "status", "", "Only show tasks with this status (completed, failed)")
	statusCmd.Flags().StringVar(&statusAgent, "agent", "", "Only show tasks for this agent")
	statusCmd.Flags().DurationVar(&statusPurge, "purge", 0, "Delete tasks that finished longer ago than this")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	out := cmd.OutOrStdout()
	if !cfg.Archive.Enabled {
		fmt.Fprintln(out, "Archive disabled. Set archive.enabled to true to record finished tasks.")
		return nil
	}
	if _, err := os.Stat(cfg.Archive.Path); os.IsNotExist(err) {
		fmt.Fprintln(out, "No archived tasks yet. Run 'taskorch run <tasks.yaml>' to start.")
		return nil
	}

	db, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()

	if statusPurge > 0 {
		n, err := db.PurgeOlderThan(ctx, time.Now().Add(-statusPurge))
		if err != nil {
			return err
		}
		printStatus(out, "✓", fmt.Sprintf("Purged %d tasks older than %s", n, statusPurge), color.FgGreen)
	}

	if len(args) == 1 {
		task, err := db.GetTask(ctx, args[0])
		if err != nil {
			return err
		}
		if task == nil {
			return fmt.Errorf("task %s not found in archive", args[0])
		}
		displayTask(out, *task)
		return nil
	}

	counts, err := db.CountByStatus(ctx)
	if err != nil {
		return err
	}
	byAgent, err := db.CountByAgent(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Archive: %s\n", db.Path())
	fmt.Fprintf(out, "  Tasks: %d (%s completed, %s failed)\n",
		counts.Total(),
		color.GreenString("%d", counts.Completed),
		color.RedString("%d", counts.Failed))
	for _, agent := range models.Agents {
		if n := byAgent[agent]; n > 0 {
			fmt.Fprintf(out, "  %-14s %d\n", agent, n)
		}
	}

	tasks, err := db.ListTasks(ctx, state.TaskFilter{
		Status: models.TaskStatus(statusFilter),
		Agent:  models.Agent(statusAgent),
		Limit:  statusLimit,
	})
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Recent Tasks:")
	for _, t := range tasks {
		printTask(out, t)
	}
	return nil
}

func displayTask(w io.Writer, t models.Task) {
	fmt.Fprintf(w, "Task: %s\n", t.ID)
	fmt.Fprintf(w, "  Type: %s (%s/%s)\n", t.Type, t.AssignedAgent, t.Payload.Action)
	fmt.Fprintf(w, "  Priority: %s\n", t.Priority)
	fmt.Fprintf(w, "  Status: %s\n", t.Status)
	fmt.Fprintf(w, "  Submitted: %s\n", t.CreatedAt.Local().Format(time.DateTime))
	if t.CompletedAt != nil {
		fmt.Fprintf(w, "  Latency: %s (queued %s)\n", formatDuration(t.ProcessingTime()), formatDuration(t.QueueWait()))
	}
	if t.ModelVersion != "" {
		fmt.Fprintf(w, "  Model version: %s\n", t.ModelVersion)
	}
	if len(t.Payload.Data) > 0 {
		fmt.Fprintf(w, "  Input: %s\n", t.Payload.Data)
	}
	if t.Result != nil {
		fmt.Fprintf(w, "  Result: %s\n", t.Result)
	}
	if t.Error != "" {
		fmt.Fprintf(w, "  Error: %s (%s)\n", t.Error, t.ErrorKind)
	}
}
