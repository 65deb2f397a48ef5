package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/ShayCichocki/taskorch/pkg/models"
)

// WaitForCompletion blocks until the task reaches a terminal status and
// returns a copy of its encoded result. It returns an error matching ErrTimeout when timeout
// elapses first (the task keeps running), a *TaskFailedError when the task
// failed, or ctx.Err() if ctx is done. A non-positive timeout uses the
// default wait timeout.
//
// Ids the orchestrator has never seen are polled like any other until the
// timeout; they are not rejected up front.
func (o *Orchestrator) WaitForCompletion(ctx context.Context, id string, timeout time.Duration) (jsontext.Value, error) {
	if timeout <= 0 {
		timeout = o.opts.defaultWaitTimeout
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(o.opts.waitPollInterval)
	defer poll.Stop()

	for {
		// Take the signal before reading so a transition in between is not missed.
		changed := o.tracker.Changed()
		if t, ok := o.tracker.Get(id); ok && t.Status.Terminal() {
			return outcome(t)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("%w %s after %s", ErrTimeout, id, timeout)
		case <-changed:
		case <-poll.C:
		}
	}
}

// outcome converts a terminal task into WaitForCompletion's return values.
func outcome(t models.Task) (jsontext.Value, error) {
	if t.Status == models.TaskStatusFailed {
		return nil, &TaskFailedError{TaskID: t.ID, Kind: t.ErrorKind, Message: t.Error}
	}
	return t.Result, nil
}
