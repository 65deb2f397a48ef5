package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskorch/internal/config"
)

var (
	configPath string
	debugMode  bool
)

var rootCmd = &cobra.Command{
	Use:   "taskorch",
	Short: "Priority task orchestrator for platform agents",
	Long: `taskorch routes platform work to six agents through a bounded,
priority-ordered dispatcher.

Tasks are queued by priority (urgent, high, medium, low) and admitted one
per tick while fewer than max_concurrent_tasks are processing. Each task is
handled by the function bound to its (agent, action) pair.

Core capabilities:
- Runs batches of tasks from a YAML file
- Chains tasks into development, code submission and complaint pipelines
- Archives finished tasks in SQLite
- Reports throughput, latency and health`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: user config merged with .taskorch.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Write a debug log (to debug.log_dir, or .taskorch/logs when unset)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(pipelineCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads --config when given, otherwise the merged user and
// project configuration.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}
