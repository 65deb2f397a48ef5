package models

import (
	"fmt"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is queued and has not been admitted.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusProcessing indicates a handler is running for the task.
	TaskStatusProcessing TaskStatus = "processing"
	// TaskStatusCompleted indicates the handler returned a result.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the handler failed or no handler was found.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition can happen from s.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// TaskType is the domain a unit of work belongs to. Each type is served by
// exactly one agent.
type TaskType string

const (
	TaskTypeDevelopment TaskType = "development"
	TaskTypeReview      TaskType = "review"
	TaskTypeScheduling  TaskType = "scheduling"
	TaskTypeFraudCheck  TaskType = "fraud_check"
	TaskTypeComplaint   TaskType = "complaint"
	TaskTypeScoreUpdate TaskType = "score_update"
)

// Valid returns true if the type is a known value.
func (t TaskType) Valid() bool {
	return t.Agent() != ""
}

// Agent returns the agent responsible for tasks of this type, or the empty
// Agent for unknown types.
func (t TaskType) Agent() Agent {
	switch t {
	case TaskTypeDevelopment:
		return AgentDevMatch
	case TaskTypeReview:
		return AgentCodeCheck
	case TaskTypeScheduling:
		return AgentScheduler
	case TaskTypeFraudCheck:
		return AgentFraudWatch
	case TaskTypeComplaint:
		return AgentComplaintBot
	case TaskTypeScoreUpdate:
		return AgentScoreKeeper
	default:
		return ""
	}
}

// ErrorKind classifies why a task failed.
type ErrorKind string

const (
	// ErrorKindUnknownHandler means no handler was registered for the
	// task's (agent, action) pair.
	ErrorKindUnknownHandler ErrorKind = "unknown_handler"
	// ErrorKindHandler means the handler returned an error or panicked.
	ErrorKindHandler ErrorKind = "handler_error"
)

// Action names the operation a handler performs for an agent.
type Action string

// Payload is the caller-owned input of a task. Data holds the action's
// arguments as raw JSON so the handler always receives its own copy.
type Payload struct {
	Action Action         `json:"action"`
	Data   jsontext.Value `json:"data,omitzero"`
}

// NewPayload encodes data as the arguments of action.
func NewPayload(action Action, data any) (Payload, error) {
	p := Payload{Action: action}
	if data == nil {
		return p, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Payload{}, fmt.Errorf("encode payload for %s: %w", action, err)
	}
	p.Data = raw
	return p, nil
}

// Clone returns a copy of the payload that shares no memory with p.
func (p Payload) Clone() Payload {
	if p.Data != nil {
		p.Data = p.Data.Clone()
	}
	return p
}

// Decode unmarshals the payload arguments into out. An empty payload
// leaves out untouched.
func (p Payload) Decode(out any) error {
	if len(p.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(p.Data, out); err != nil {
		return fmt.Errorf("decode payload for %s: %w", p.Action, err)
	}
	return nil
}

// Task represents a unit of work tracked by the orchestrator.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Type is the domain of the task.
	Type TaskType `json:"type"`
	// Priority orders the task in the pending queue.
	Priority Priority `json:"priority"`
	// Payload is the action and its arguments.
	Payload Payload `json:"payload"`
	// AssignedAgent is derived from Type at submission.
	AssignedAgent Agent `json:"assigned_agent"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Seq is the arrival sequence number used for FIFO tie-breaks.
	Seq uint64 `json:"seq"`
	// ModelVersion is the AI model version configured at submission.
	ModelVersion string `json:"model_version,omitempty"`
	// CreatedAt is when the task was submitted.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when the dispatcher admitted the task, if it has.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is set only on the terminal transition.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Result is the handler's return value encoded as JSON; set only when
	// completed.
	Result jsontext.Value `json:"result,omitzero"`
	// Error is the failure message; set only when failed.
	Error string `json:"error,omitempty"`
	// ErrorKind classifies Error.
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
}

// Clone returns a copy of t that shares no memory with it.
func (t *Task) Clone() Task {
	c := *t
	c.Payload = t.Payload.Clone()
	if t.Result != nil {
		c.Result = t.Result.Clone()
	}
	if t.StartedAt != nil {
		started := *t.StartedAt
		c.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		c.CompletedAt = &completed
	}
	return c
}

// EncodeResult converts a handler's return value into the form stored on a
// completed task. A nil value encodes to nil.
func EncodeResult(v any) (jsontext.Value, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return raw, nil
}

// DecodeResult unmarshals the task result into out. A task without a
// result leaves out untouched.
func (t *Task) DecodeResult(out any) error {
	if len(t.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.Result, out); err != nil {
		return fmt.Errorf("decode result of task %s: %w", t.ID, err)
	}
	return nil
}

// ProcessingTime is the time from submission to the terminal transition.
// It is zero for tasks that have not finished.
func (t *Task) ProcessingTime() time.Duration {
	if t.CompletedAt == nil {
		return 0
	}
	return t.CompletedAt.Sub(t.CreatedAt)
}

// QueueWait is the time the task spent pending before admission.
func (t *Task) QueueWait() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return t.StartedAt.Sub(t.CreatedAt)
}
