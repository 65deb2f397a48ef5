package orchestrator

import (
	"time"

	"github.com/ShayCichocki/taskorch/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventTaskSubmitted indicates a task entered the pending queue.
	EventTaskSubmitted EventType = "task_submitted"
	// EventTaskStarted indicates the dispatcher admitted a task.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a handler returned a result.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task failed.
	EventTaskFailed EventType = "task_failed"
	// EventConfigUpdated indicates the runtime configuration changed.
	EventConfigUpdated EventType = "config_updated"
)

// OrchestratorEvent represents an event emitted by the orchestrator.
// Subscribers such as the monitor use them to follow progress.
type OrchestratorEvent struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// Agent is the agent the task is routed to.
	Agent models.Agent
	// Action is the requested action.
	Action models.Action
	// Priority is the task priority.
	Priority models.Priority
	// Message provides additional context about the event.
	Message string
	// Error contains the failure message for task_failed events.
	Error string
	// Duration is the submission-to-terminal latency for terminal events.
	Duration time.Duration
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// taskEvent builds an event describing t.
func taskEvent(typ EventType, t models.Task, at time.Time) OrchestratorEvent {
	return OrchestratorEvent{
		Type:      typ,
		TaskID:    t.ID,
		Agent:     t.AssignedAgent,
		Action:    t.Payload.Action,
		Priority:  t.Priority,
		Error:     t.Error,
		Duration:  t.ProcessingTime(),
		Timestamp: at,
	}
}
