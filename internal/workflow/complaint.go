package workflow

import (
	"context"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/ShayCichocki/taskorch/pkg/models"
)

// ResolutionSuccess marks a complaint the bot resolved.
const ResolutionSuccess = "success"

// Complaint is the input of the complaint pipeline.
type Complaint struct {
	UserID   string `json:"userId" yaml:"user_id"`
	Medium   string `json:"type" yaml:"medium"`
	Content  string `json:"content" yaml:"content"`
	Category string `json:"category" yaml:"category"`
}

// Escalation describes where a complaint goes when the bot cannot settle it.
type Escalation struct {
	Level                 string `json:"level"`
	Reason                string `json:"reason"`
	EstimatedResponseTime string `json:"estimatedResponseTime"`
}

// ComplaintOutcome is the part of a complaint result the pipeline reads.
type ComplaintOutcome struct {
	Resolution *struct {
		Result string `json:"result"`
	} `json:"resolution"`
	EscalationPath *Escalation `json:"escalationPath"`
}

// Resolved reports whether the complaint was resolved.
func (c ComplaintOutcome) Resolved() bool {
	return c.Resolution != nil && c.Resolution.Result == ResolutionSuccess
}

// ComplaintResult holds the result of each step that ran.
type ComplaintResult struct {
	Complaint   jsontext.Value `json:"complaint,omitzero"`
	FraudCheck  jsontext.Value `json:"fraudCheck,omitzero"`
	ScoreUpdate jsontext.Value `json:"scoreUpdate,omitzero"`
	Escalation  *Escalation    `json:"escalation,omitempty"`
}

// Complaint classifies and tries to resolve a complaint, checks the user's
// recent activity, records the complaint against their score and, when
// auto escalation is on, surfaces the escalation path.
func (r *Runner) Complaint(ctx context.Context, in Complaint) (ComplaintResult, error) {
	const pipeline = "complaint"
	cfg := r.engine.Config()
	var out ComplaintResult
	var outcome ComplaintOutcome
	var err error

	if cfg.EnableComplaintHandling {
		out.Complaint, err = r.step(ctx, pipeline, models.TaskTypeComplaint, models.ActionProcessComplaint, map[string]any{
			"complaint": in,
		}, models.PriorityHigh)
		if err != nil {
			return out, err
		}
		if err := decodeResult(out.Complaint, &outcome); err != nil {
			return out, &StepError{Pipeline: pipeline, Step: models.ActionProcessComplaint, Err: err}
		}
	}

	if cfg.EnableFraudDetection {
		out.FraudCheck, err = r.step(ctx, pipeline, models.TaskTypeFraudCheck, models.ActionCheckUserActivity, map[string]any{
			"userId":         in.UserID,
			"recentActivity": true,
		}, models.PriorityMedium)
		if err != nil {
			return out, err
		}
	}

	if cfg.EnableScoreUpdates {
		out.ScoreUpdate, err = r.step(ctx, pipeline, models.TaskTypeScoreUpdate, models.ActionAddComplaintRecord, map[string]any{
			"userId":        in.UserID,
			"complaintType": in.Category,
			"resolved":      outcome.Resolved(),
		}, models.PriorityLow)
		if err != nil {
			return out, err
		}
	}

	if outcome.EscalationPath != nil && cfg.AutoEscalationEnabled {
		esc := *outcome.EscalationPath
		out.Escalation = &esc
	}

	r.logger.Log("[workflow] complaint from %s processed", in.UserID)
	return out, nil
}
