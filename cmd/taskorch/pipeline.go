package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/taskorch/internal/workflow"
)

var (
	pipelineInput       string
	pipelineStepTimeout = workflow.DefaultStepTimeout
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline <development|submission|complaint>",
	Short: "Run a multi-step pipeline",
	Long: `Run one of the built-in pipelines with input read from a YAML file.

  development  match a developer, schedule, fraud check, record assignment
  submission   review code, fraud check, score, update task progress
  complaint    resolve complaint, check user activity, record, escalate

Steps whose agent is disabled in the config are skipped. The combined
result of every step that ran is printed as JSON.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"development", "submission", "complaint"},
	RunE:      runPipelineCmd,
}

func init() {
	pipelineCmd.Flags().StringVarP(&pipelineInput, "input", "i", "", "YAML file with the pipeline input (required)")
	pipelineCmd.Flags().DurationVar(&pipelineStepTimeout, "step-timeout", workflow.DefaultStepTimeout, "Wait budget per step")
	pipelineCmd.MarkFlagRequired("input")
}

func runPipelineCmd(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(pipelineInput)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	out := cmd.OutOrStdout()
	eng, err := newEngine(cfg, out)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := eng.orch.Start(ctx); err != nil {
		return err
	}
	eng.followEvents()

	runner := workflow.NewRunner(eng.orch,
		workflow.WithStepTimeout(pipelineStepTimeout),
		workflow.WithLogger(eng.logger),
	)

	result, err := runPipeline(ctx, runner, args[0], raw)
	if err != nil {
		printStatus(out, "✗", err.Error(), color.FgRed)
		return err
	}
	printStatus(out, "✓", fmt.Sprintf("%s pipeline complete", args[0]), color.FgGreen)
	return writeJSON(out, result)
}

// runPipeline decodes raw as the input of the named pipeline and runs it.
func runPipeline(ctx context.Context, runner *workflow.Runner, name string, raw []byte) (any, error) {
	switch name {
	case "development":
		var in workflow.DevelopmentTask
		if err := yaml.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("parse development input: %w", err)
		}
		return runner.DevelopmentTask(ctx, in)
	case "submission":
		var in workflow.CodeSubmission
		if err := yaml.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("parse submission input: %w", err)
		}
		return runner.CodeSubmission(ctx, in)
	case "complaint":
		var in workflow.Complaint
		if err := yaml.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("parse complaint input: %w", err)
		}
		return runner.Complaint(ctx, in)
	default:
		return nil, fmt.Errorf("unknown pipeline %q (want development, submission or complaint)", name)
	}
}

func writeJSON(w io.Writer, v any) error {
	return json.MarshalWrite(w, v, jsontext.WithIndent("  "))
}
