package models

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when a configuration value is out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultMaxConcurrentTasks bounds admission when nothing else is configured.
const DefaultMaxConcurrentTasks = 50

// SystemConfig holds the runtime-tunable options of an orchestrator.
type SystemConfig struct {
	EnableDevMatching       bool `json:"enable_dev_matching"`
	EnableCodeReview        bool `json:"enable_code_review"`
	EnableScheduling        bool `json:"enable_scheduling"`
	EnableFraudDetection    bool `json:"enable_fraud_detection"`
	EnableComplaintHandling bool `json:"enable_complaint_handling"`
	EnableScoreUpdates      bool `json:"enable_score_updates"`

	// AutoEscalationEnabled lets workflows surface escalation paths.
	AutoEscalationEnabled bool `json:"auto_escalation_enabled"`
	// MaxConcurrentTasks bounds the number of processing tasks.
	MaxConcurrentTasks int `json:"max_concurrent_tasks"`
	// AIModelVersion is stamped on submitted tasks and otherwise unused.
	AIModelVersion string `json:"ai_model_version"`
}

// DefaultSystemConfig returns a SystemConfig with every agent enabled.
func DefaultSystemConfig() SystemConfig {
	return SystemConfig{
		EnableDevMatching:       true,
		EnableCodeReview:        true,
		EnableScheduling:        true,
		EnableFraudDetection:    true,
		EnableComplaintHandling: true,
		EnableScoreUpdates:      true,
		AutoEscalationEnabled:   true,
		MaxConcurrentTasks:      DefaultMaxConcurrentTasks,
		AIModelVersion:          "1.0.0",
	}
}

// Validate reports whether c can drive an orchestrator.
func (c SystemConfig) Validate() error {
	if c.MaxConcurrentTasks < 1 {
		return fmt.Errorf("%w: max_concurrent_tasks must be at least 1, got %d", ErrInvalidConfig, c.MaxConcurrentTasks)
	}
	return nil
}

// AgentEnabled reports whether the category served by a is switched on.
func (c SystemConfig) AgentEnabled(a Agent) bool {
	switch a {
	case AgentDevMatch:
		return c.EnableDevMatching
	case AgentCodeCheck:
		return c.EnableCodeReview
	case AgentScheduler:
		return c.EnableScheduling
	case AgentFraudWatch:
		return c.EnableFraudDetection
	case AgentComplaintBot:
		return c.EnableComplaintHandling
	case AgentScoreKeeper:
		return c.EnableScoreUpdates
	default:
		return false
	}
}

// ConfigPatch is a partial SystemConfig. Nil fields are left unchanged.
type ConfigPatch struct {
	EnableDevMatching       *bool
	EnableCodeReview        *bool
	EnableScheduling        *bool
	EnableFraudDetection    *bool
	EnableComplaintHandling *bool
	EnableScoreUpdates      *bool
	AutoEscalationEnabled   *bool
	MaxConcurrentTasks      *int
	AIModelVersion          *string
}

// Apply returns c with every non-nil field of p copied over.
func (p ConfigPatch) Apply(c SystemConfig) SystemConfig {
	setBool(&c.EnableDevMatching, p.EnableDevMatching)
	setBool(&c.EnableCodeReview, p.EnableCodeReview)
	setBool(&c.EnableScheduling, p.EnableScheduling)
	setBool(&c.EnableFraudDetection, p.EnableFraudDetection)
	setBool(&c.EnableComplaintHandling, p.EnableComplaintHandling)
	setBool(&c.EnableScoreUpdates, p.EnableScoreUpdates)
	setBool(&c.AutoEscalationEnabled, p.AutoEscalationEnabled)
	if p.MaxConcurrentTasks != nil {
		c.MaxConcurrentTasks = *p.MaxConcurrentTasks
	}
	if p.AIModelVersion != nil {
		c.AIModelVersion = *p.AIModelVersion
	}
	return c
}

// PatchFrom builds a patch that sets every field to the value in c.
func PatchFrom(c SystemConfig) ConfigPatch {
	return ConfigPatch{
		EnableDevMatching:       &c.EnableDevMatching,
		EnableCodeReview:        &c.EnableCodeReview,
		EnableScheduling:        &c.EnableScheduling,
		EnableFraudDetection:    &c.EnableFraudDetection,
		EnableComplaintHandling: &c.EnableComplaintHandling,
		EnableScoreUpdates:      &c.EnableScoreUpdates,
		AutoEscalationEnabled:   &c.AutoEscalationEnabled,
		MaxConcurrentTasks:      &c.MaxConcurrentTasks,
		AIModelVersion:          &c.AIModelVersion,
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
