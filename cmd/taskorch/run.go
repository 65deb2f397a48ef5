package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskorch/internal/config"
	"github.com/ShayCichocki/taskorch/internal/orchestrator"
	"github.com/ShayCichocki/taskorch/internal/tui"
	"github.com/ShayCichocki/taskorch/pkg/models"
)

var (
	runTUI     bool
	runWatch   bool
	runTimeout time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run <tasks.yaml>",
	Short: "Run a batch of tasks",
	Long: `Submit every task in a YAML batch file and wait for all of them.

Each entry names a task type, an action, an optional priority (default
medium) and optional data passed to the handler:

  tasks:
    - type: fraud_check
      action: check_developer
      priority: urgent
      data:
        developerId: dev-42

With --tui a live monitor shows queue depth, latency and health.
With --watch edits to the config file are applied while the batch runs.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatchCmd,
}

func init() {
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show the live monitor")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Apply config file changes while running")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Wait budget per task (default: orchestrator.default_wait_timeout)")
}

func runBatchCmd(cmd *cobra.Command, args []string) error {
	subs, err := loadBatch(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var out io.Writer = &lockedWriter{w: cmd.OutOrStdout()}
	if runTUI {
		out = io.Discard
	}

	eng, err := newEngine(cfg, out)
	if err != nil {
		return err
	}
	defer eng.Close()

	if runWatch {
		stop, err := watchConfig(eng.orch, out)
		if err != nil {
			return err
		}
		defer stop()
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := eng.orch.Start(ctx); err != nil {
		return err
	}

	if !runTUI {
		eng.followEvents()
		err := runBatch(ctx, eng.orch, subs, runTimeout, out)
		fmt.Fprintln(out)
		printMetrics(out, eng.orch.GetSystemMetrics())
		return err
	}

	program, app := tui.NewMonitorProgram(eng.orch, eng.orch.Events(), cfg.TUI.RefreshRate)
	go func() {
		err := runBatch(ctx, eng.orch, subs, runTimeout, io.Discard)
		program.Send(tui.DoneMsg{Err: err})
	}()
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run monitor: %w", err)
	}
	cancel()
	return app.Err()
}

// errBatchFailed is returned when at least one task did not complete.
var errBatchFailed = errors.New("one or more tasks failed")

// runBatch submits every entry, then waits for all of them concurrently
// and prints each outcome as it arrives.
func runBatch(ctx context.Context, orch *orchestrator.Orchestrator, subs []submission, timeout time.Duration, w io.Writer) error {
	ids := make([]string, 0, len(subs))
	cfg := orch.Config()
	for _, s := range subs {
		if agent := s.taskType.Agent(); !cfg.AgentEnabled(agent) {
			printStatus(w, "⚠", fmt.Sprintf("%s is disabled in config; submitting %s anyway", agent, s.payload.Action), color.FgYellow)
		}
		id, err := orch.SubmitTask(s.taskType, s.payload, s.priority)
		if err != nil {
			return fmt.Errorf("submit %s/%s: %w", s.taskType, s.payload.Action, err)
		}
		ids = append(ids, id)
	}
	printStatus(w, "→", fmt.Sprintf("Submitted %d tasks", len(ids)), color.FgCyan)

	var (
		mu     sync.Mutex
		failed int
		wg     sync.WaitGroup
	)
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := orch.WaitForCompletion(ctx, id, timeout)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
			}
			if t, ok := orch.GetTaskStatus(id); ok {
				if errors.Is(err, orchestrator.ErrTimeout) && !t.Status.Terminal() {
					printStatus(w, "⏱", fmt.Sprintf("%s timed out while %s", shortID(id), t.Status), color.FgYellow)
					return
				}
				printTask(w, t)
			}
		}()
	}
	wg.Wait()

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errBatchFailed, failed, len(ids))
	}
	return nil
}

// watchConfig applies system config edits from the loaded config file.
func watchConfig(orch *orchestrator.Orchestrator, w io.Writer) (func(), error) {
	path := configPath
	if path == "" {
		path = config.GetProjectConfigPath()
	}
	if path == "" {
		path = config.GetUserConfigPath()
	}

	watcher, err := config.Watch(path,
		func(cfg *config.Config) {
			if err := orch.UpdateConfig(models.PatchFrom(cfg.SystemConfig())); err != nil {
				printStatus(w, "✗", fmt.Sprintf("Config update rejected: %v", err), color.FgRed)
				return
			}
			printStatus(w, "↻", fmt.Sprintf("Applied config from %s", path), color.FgCyan)
		},
		func(err error) {
			printStatus(w, "⚠", fmt.Sprintf("Config reload failed: %v", err), color.FgYellow)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("watch config %s: %w", path, err)
	}
	return func() { watcher.Close() }, nil
}
