// Package workflow chains orchestrator tasks into the platform's
// multi-step pipelines. Each step submits one task, waits for it and feeds
// its result to later steps. Steps whose agent is disabled in the runtime
// configuration are skipped.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/ShayCichocki/taskorch/internal/orchestrator"
	"github.com/ShayCichocki/taskorch/pkg/models"
)

// DefaultStepTimeout bounds the wait for each pipeline step.
const DefaultStepTimeout = 30 * time.Second

// Engine is the part of the orchestrator a pipeline needs.
type Engine interface {
	SubmitTask(taskType models.TaskType, payload models.Payload, priority models.Priority) (string, error)
	WaitForCompletion(ctx context.Context, id string, timeout time.Duration) (jsontext.Value, error)
	Config() models.SystemConfig
}

// StepError reports which pipeline step failed.
type StepError struct {
	Pipeline string
	Step     models.Action
	TaskID   string
	Err      error
}

func (e *StepError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("%s pipeline: %s: %v", e.Pipeline, e.Step, e.Err)
	}
	return fmt.Sprintf("%s pipeline: %s (task %s): %v", e.Pipeline, e.Step, e.TaskID, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Runner executes pipelines against an Engine.
type Runner struct {
	engine      Engine
	stepTimeout time.Duration
	logger      *orchestrator.DebugLogger
}

// Option configures a Runner.
type Option func(*Runner)

// WithStepTimeout sets the wait budget of each step.
func WithStepTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.stepTimeout = d
		}
	}
}

// WithLogger sets the debug logger.
func WithLogger(l *orchestrator.DebugLogger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner for engine.
func NewRunner(engine Engine, opts ...Option) *Runner {
	r := &Runner{
		engine:      engine,
		stepTimeout: DefaultStepTimeout,
		logger:      orchestrator.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// step submits one task and waits for its result.
func (r *Runner) step(ctx context.Context, pipeline string, taskType models.TaskType, action models.Action, data any, priority models.Priority) (jsontext.Value, error) {
	payload, err := models.NewPayload(action, data)
	if err != nil {
		return nil, &StepError{Pipeline: pipeline, Step: action, Err: err}
	}

	id, err := r.engine.SubmitTask(taskType, payload, priority)
	if err != nil {
		return nil, &StepError{Pipeline: pipeline, Step: action, Err: err}
	}
	r.logger.Log("[workflow] %s: submitted %s as %s", pipeline, action, id)

	result, err := r.engine.WaitForCompletion(ctx, id, r.stepTimeout)
	if err != nil {
		return nil, &StepError{Pipeline: pipeline, Step: action, TaskID: id, Err: err}
	}
	return result, nil
}

// decodeResult unmarshals a step result into out. An empty result leaves
// out untouched.
func decodeResult(result jsontext.Value, out any) error {
	if len(result) == 0 {
		return nil
	}
	if err := json.Unmarshal(result, out, json.MatchCaseInsensitiveNames(true)); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
