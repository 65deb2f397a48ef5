package workflow

import (
	"context"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/ShayCichocki/taskorch/pkg/models"
)

// Review statuses that drive the follow-up steps.
const (
	ReviewApproved = "approved"

	ProgressReview         = "review"
	ProgressRevisionNeeded = "revision_needed"
)

// CodeFile is one file of a code submission.
type CodeFile struct {
	Path     string `json:"path" yaml:"path"`
	Language string `json:"language,omitempty" yaml:"language"`
	Content  string `json:"content" yaml:"content"`
}

// CodeSubmission is the input of the code submission pipeline.
type CodeSubmission struct {
	SubmissionID string     `json:"submissionId" yaml:"submission_id"`
	DeveloperID  string     `json:"developerId" yaml:"developer_id"`
	TaskID       string     `json:"taskId" yaml:"task_id"`
	CodeFiles    []CodeFile `json:"codeFiles" yaml:"code_files"`
}

// ReviewOutcome is the part of a review result the pipeline reads.
type ReviewOutcome struct {
	Status       string  `json:"status"`
	OverallScore float64 `json:"overallScore"`
}

// Approved reports whether the review passed.
func (r ReviewOutcome) Approved() bool {
	return r.Status == ReviewApproved
}

// SubmissionResult holds the result of each step that ran.
type SubmissionResult struct {
	CodeReview  jsontext.Value `json:"codeReview,omitzero"`
	FraudCheck  jsontext.Value `json:"fraudCheck,omitzero"`
	ScoreUpdate jsontext.Value `json:"scoreUpdate,omitzero"`
	Scheduling  jsontext.Value `json:"scheduling,omitzero"`
	// Review is CodeReview decoded; nil when review did not run.
	Review *ReviewOutcome `json:"-"`
}

// CodeSubmission reviews a submission, screens it for fraud, scores the
// developer on the review and moves the task to review or revision.
func (r *Runner) CodeSubmission(ctx context.Context, in CodeSubmission) (SubmissionResult, error) {
	const pipeline = "code submission"
	cfg := r.engine.Config()
	var out SubmissionResult
	var err error

	if cfg.EnableCodeReview {
		out.CodeReview, err = r.step(ctx, pipeline, models.TaskTypeReview, models.ActionReviewCode, map[string]any{
			"submission": in,
		}, models.PriorityHigh)
		if err != nil {
			return out, err
		}
		var review ReviewOutcome
		if err := decodeResult(out.CodeReview, &review); err != nil {
			return out, &StepError{Pipeline: pipeline, Step: models.ActionReviewCode, Err: err}
		}
		out.Review = &review
	}

	if cfg.EnableFraudDetection {
		out.FraudCheck, err = r.step(ctx, pipeline, models.TaskTypeFraudCheck, models.ActionCheckCode, map[string]any{
			"submission": in,
		}, models.PriorityHigh)
		if err != nil {
			return out, err
		}
	}

	if cfg.EnableScoreUpdates && out.Review != nil {
		out.ScoreUpdate, err = r.step(ctx, pipeline, models.TaskTypeScoreUpdate, models.ActionAddCodeSubmission, map[string]any{
			"userId":  in.DeveloperID,
			"quality": out.Review.OverallScore,
			"passed":  out.Review.Approved(),
		}, models.PriorityMedium)
		if err != nil {
			return out, err
		}
	}

	if cfg.EnableScheduling {
		status := ProgressRevisionNeeded
		if out.Review != nil && out.Review.Approved() {
			status = ProgressReview
		}
		out.Scheduling, err = r.step(ctx, pipeline, models.TaskTypeScheduling, models.ActionUpdateTaskProgress, map[string]any{
			"taskId": in.TaskID,
			"status": status,
		}, models.PriorityMedium)
		if err != nil {
			return out, err
		}
	}

	r.logger.Log("[workflow] code submission %s processed", in.SubmissionID)
	return out, nil
}
