package workflow

import (
	"context"
	"time"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/ShayCichocki/taskorch/pkg/models"
)

// Requirements describes the work in a development task.
type Requirements struct {
	Description    string   `json:"description,omitempty"`
	Skills         []string `json:"skills,omitempty"`
	EstimatedHours float64  `json:"estimatedHours,omitempty"`
	Complexity     string   `json:"complexity,omitempty"`
}

// DevelopmentTask is the input of the development pipeline.
type DevelopmentTask struct {
	TaskID       string       `json:"taskId" yaml:"task_id"`
	Requirements Requirements `json:"requirements" yaml:"requirements"`
	DeveloperID  string       `json:"developerId" yaml:"developer_id"`
	Deadline     time.Time    `json:"deadline" yaml:"deadline"`
	Budget       float64      `json:"budget" yaml:"budget"`
}

// DevelopmentResult holds the result of each step that ran.
type DevelopmentResult struct {
	DevMatch    jsontext.Value `json:"devMatch,omitzero"`
	Scheduling  jsontext.Value `json:"scheduling,omitzero"`
	FraudCheck  jsontext.Value `json:"fraudCheck,omitzero"`
	ScoreUpdate jsontext.Value `json:"scoreUpdate,omitzero"`
}

// DevelopmentTask matches a developer, schedules the work, screens the
// developer for fraud and records the assignment against their score.
func (r *Runner) DevelopmentTask(ctx context.Context, in DevelopmentTask) (DevelopmentResult, error) {
	const pipeline = "development"
	cfg := r.engine.Config()
	var out DevelopmentResult
	var err error

	if cfg.EnableDevMatching {
		out.DevMatch, err = r.step(ctx, pipeline, models.TaskTypeDevelopment, models.ActionFindDeveloper, map[string]any{
			"requirements": in.Requirements,
			"budget":       in.Budget,
		}, models.PriorityHigh)
		if err != nil {
			return out, err
		}
	}

	if cfg.EnableScheduling {
		out.Scheduling, err = r.step(ctx, pipeline, models.TaskTypeScheduling, models.ActionCreateTask, map[string]any{
			"taskId":         in.TaskID,
			"developerId":    in.DeveloperID,
			"deadline":       in.Deadline,
			"estimatedHours": in.Requirements.EstimatedHours,
		}, models.PriorityHigh)
		if err != nil {
			return out, err
		}
	}

	if cfg.EnableFraudDetection {
		out.FraudCheck, err = r.step(ctx, pipeline, models.TaskTypeFraudCheck, models.ActionCheckDeveloper, map[string]any{
			"developerId": in.DeveloperID,
			"taskId":      in.TaskID,
		}, models.PriorityMedium)
		if err != nil {
			return out, err
		}
	}

	if cfg.EnableScoreUpdates {
		out.ScoreUpdate, err = r.step(ctx, pipeline, models.TaskTypeScoreUpdate, models.ActionAddTaskAssignment, map[string]any{
			"userId":     in.DeveloperID,
			"taskType":   string(models.TaskTypeDevelopment),
			"complexity": in.Requirements.Complexity,
		}, models.PriorityLow)
		if err != nil {
			return out, err
		}
	}

	r.logger.Log("[workflow] development task %s processed", in.TaskID)
	return out, nil
}
