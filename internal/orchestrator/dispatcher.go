package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/ShayCichocki/taskorch/pkg/models"
)

// Start launches the dispatcher. It returns immediately; the dispatcher
// runs until ctx is cancelled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.lifeMu.Lock()
	defer o.lifeMu.Unlock()

	if o.stopped.Load() {
		return ErrStopped
	}
	if o.started {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.loopDone = make(chan struct{})
	o.started = true

	go o.run(runCtx)
	o.logger.Log("[dispatch] started: tick=%s max_concurrent=%d", o.opts.tickInterval, o.Config().MaxConcurrentTasks)
	return nil
}

// Stop halts admission, cancels the context handed to running handlers and
// waits for them to return. Pending tasks stay pending. Safe to call more
// than once.
func (o *Orchestrator) Stop() {
	o.lifeMu.Lock()
	defer o.lifeMu.Unlock()

	if o.stopped.Swap(true) {
		return
	}
	if o.started {
		o.cancel()
		<-o.loopDone
		o.handlers.Wait()
	}
	o.emitter.Close()
	o.logger.Log("[dispatch] stopped with %d queued", o.queue.Len())
}

// run admits at most one task per tick.
func (o *Orchestrator) run(ctx context.Context) {
	defer close(o.loopDone)

	ticker := time.NewTicker(o.opts.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.admitOne(ctx)
		}
	}
}

// admitOne moves the head of the queue to processing if a slot is free and
// starts its handler without waiting for it. Only the dispatcher goroutine
// adds to the active set, so the slot check cannot race another admission.
func (o *Orchestrator) admitOne(ctx context.Context) bool {
	if o.tracker.ActiveCount() >= o.Config().MaxConcurrentTasks {
		return false
	}
	next, ok := o.queue.Pop()
	if !ok {
		return false
	}

	handler, ok := o.registry.Lookup(next.AssignedAgent, next.Payload.Action)
	if !ok {
		err := fmt.Errorf("%w for %s/%s", ErrUnknownHandler, next.AssignedAgent, next.Payload.Action)
		final, terr := o.tracker.Reject(next.ID, models.ErrorKindUnknownHandler, err.Error())
		if terr != nil {
			o.logger.Log("[dispatch] reject %s: %v", next.ID, terr)
			return false
		}
		// Archive writes block; keep them off the tick.
		o.handlers.Add(1)
		go func() {
			defer o.handlers.Done()
			o.finish(final)
		}()
		return true
	}

	task, err := o.tracker.Activate(next.ID)
	if err != nil {
		o.logger.Log("[dispatch] activate %s: %v", next.ID, err)
		return false
	}
	o.emitter.Emit(taskEvent(EventTaskStarted, task, o.now()))

	o.handlers.Add(1)
	go o.execute(ctx, task, handler)
	return true
}

// execute runs the handler once and records its outcome.
func (o *Orchestrator) execute(ctx context.Context, task models.Task, handler HandlerFunc) {
	defer o.handlers.Done()

	result, err := invoke(ctx, handler, task.Payload)

	var raw jsontext.Value
	if err == nil {
		raw, err = models.EncodeResult(result)
	}

	var (
		final models.Task
		terr  error
	)
	if err != nil {
		o.logger.Log("[dispatch] %s: %v", task.ID, &HandlerError{Agent: task.AssignedAgent, Action: task.Payload.Action, Err: err})
		final, terr = o.tracker.Fail(task.ID, models.ErrorKindHandler, err.Error())
	} else {
		final, terr = o.tracker.Complete(task.ID, raw)
	}
	if terr != nil {
		o.logger.Log("[dispatch] record outcome of %s: %v", task.ID, terr)
		return
	}
	o.finish(final)
}

// invoke calls handler and converts a panic into an error.
func invoke(ctx context.Context, handler HandlerFunc, payload models.Payload) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, payload)
}
