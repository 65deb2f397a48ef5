package orchestrator

import (
	"errors"
	"fmt"

	"github.com/ShayCichocki/taskorch/pkg/models"
)

var (
	// ErrUnknownHandler is the failure cause when no handler is bound for a
	// task's (agent, action) pair.
	ErrUnknownHandler = errors.New("no handler registered")
	// ErrTimeout is returned by WaitForCompletion when the budget elapses
	// before the task reaches a terminal status.
	ErrTimeout = errors.New("timed out waiting for task")
	// ErrTaskFailed matches every *TaskFailedError.
	ErrTaskFailed = errors.New("task failed")
	// ErrInvalidTransition is returned when a status change skips or
	// reverses the lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrTaskNotFound is returned by the tracker for ids it does not hold.
	ErrTaskNotFound = errors.New("task not found")
	// ErrDuplicateTask is returned when a task id is submitted twice.
	ErrDuplicateTask = errors.New("duplicate task id")
	// ErrDuplicateBinding is returned when two bindings share a pair.
	ErrDuplicateBinding = errors.New("duplicate handler binding")
	// ErrInvalidBinding is returned for bindings with an unknown agent, an
	// empty action or a nil function.
	ErrInvalidBinding = errors.New("invalid handler binding")
	// ErrUnknownTaskType is returned by SubmitTask for unrecognised types.
	ErrUnknownTaskType = errors.New("unknown task type")
	// ErrInvalidPriority is returned by SubmitTask for unrecognised priorities.
	ErrInvalidPriority = errors.New("invalid priority")
	// ErrAlreadyStarted is returned when Start is called more than once.
	ErrAlreadyStarted = errors.New("orchestrator already started")
	// ErrStopped is returned by SubmitTask after Stop.
	ErrStopped = errors.New("orchestrator stopped")
)

// HandlerError wraps an error returned by a handler with its route.
type HandlerError struct {
	Agent  models.Agent
	Action models.Action
	Err    error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s/%s: %v", e.Agent, e.Action, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// TaskFailedError is returned by WaitForCompletion when the awaited task
// ended in the failed status. Message is the task's recorded error.
type TaskFailedError struct {
	TaskID  string
	Kind    models.ErrorKind
	Message string
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("task %s failed: %s", e.TaskID, e.Message)
}

// Is matches ErrTaskFailed, and ErrUnknownHandler when no handler was found.
func (e *TaskFailedError) Is(target error) bool {
	switch target {
	case ErrTaskFailed:
		return true
	case ErrUnknownHandler:
		return e.Kind == models.ErrorKindUnknownHandler
	default:
		return false
	}
}
