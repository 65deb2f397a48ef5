package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ShayCichocki/taskorch/pkg/models"
)

// Orchestrator queues tasks, dispatches them to registered handlers under a
// concurrency bound and tracks them until they finish. Each instance owns
// its state; several can run side by side.
type Orchestrator struct {
	opts     orchestratorOptions
	registry *Registry
	queue    *Queue
	tracker  *Tracker
	emitter  *EventEmitter
	logger   *DebugLogger

	cfgMu  sync.RWMutex
	config models.SystemConfig

	lifeMu   sync.Mutex
	started  bool
	stopped  atomic.Bool
	cancel   context.CancelFunc
	loopDone chan struct{}
	handlers sync.WaitGroup
}

// New creates an Orchestrator dispatching to the handlers in registry.
// A nil registry is treated as empty. The dispatcher does not run until
// Start is called; tasks submitted before that wait in the queue.
func New(registry *Registry, opts ...Option) (*Orchestrator, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.config.Validate(); err != nil {
		return nil, err
	}
	if o.logger == nil {
		o.logger = NopLogger()
	}
	if registry == nil {
		registry = &Registry{}
	}

	return &Orchestrator{
		opts:     o,
		registry: registry,
		queue:    NewQueue(),
		tracker:  NewTracker(o.historyLimit, o.now, o.logger),
		emitter:  NewEventEmitter(o.eventBuffer),
		logger:   o.logger,
		config:   o.config,
	}, nil
}

// SubmitTask queues a task and returns its id. An empty priority means
// medium. The payload is copied, so the caller may reuse it.
func (o *Orchestrator) SubmitTask(taskType models.TaskType, payload models.Payload, priority models.Priority) (string, error) {
	if o.stopped.Load() {
		return "", ErrStopped
	}
	if !taskType.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTaskType, taskType)
	}
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}

	cfg := o.Config()
	task := &models.Task{
		ID:            o.opts.newID(),
		Type:          taskType,
		Priority:      priority,
		Payload:       payload.Clone(),
		AssignedAgent: taskType.Agent(),
		ModelVersion:  cfg.AIModelVersion,
		CreatedAt:     o.opts.now(),
	}
	if err := o.tracker.Submit(task); err != nil {
		return "", err
	}
	o.queue.Push(task)

	o.logger.Log("[submit] task %s type=%s action=%s priority=%s", task.ID, task.Type, task.Payload.Action, task.Priority)
	o.emitter.Emit(OrchestratorEvent{
		Type:      EventTaskSubmitted,
		TaskID:    task.ID,
		Agent:     task.AssignedAgent,
		Action:    task.Payload.Action,
		Priority:  task.Priority,
		Timestamp: task.CreatedAt,
	})
	return task.ID, nil
}

// GetTaskStatus returns a copy of the task with the given id. Pending,
// processing and retained terminal tasks are all visible.
func (o *Orchestrator) GetTaskStatus(id string) (models.Task, bool) {
	return o.tracker.Get(id)
}

// ActiveTasks returns copies of the tasks currently processing.
func (o *Orchestrator) ActiveTasks() []models.Task {
	return o.tracker.Active()
}

// Config returns the current runtime configuration.
func (o *Orchestrator) Config() models.SystemConfig {
	o.cfgMu.RLock()
	defer o.cfgMu.RUnlock()
	return o.config
}

// UpdateConfig merges patch into the runtime configuration. Lowering
// MaxConcurrentTasks never preempts running tasks; admission honors the new
// bound from the next tick.
func (o *Orchestrator) UpdateConfig(patch models.ConfigPatch) error {
	o.cfgMu.Lock()
	next := patch.Apply(o.config)
	if err := next.Validate(); err != nil {
		o.cfgMu.Unlock()
		return err
	}
	o.config = next
	o.cfgMu.Unlock()

	o.logger.Log("[config] updated: max_concurrent=%d model=%s", next.MaxConcurrentTasks, next.AIModelVersion)
	o.emitter.Emit(OrchestratorEvent{
		Type:      EventConfigUpdated,
		Message:   fmt.Sprintf("max_concurrent_tasks=%d", next.MaxConcurrentTasks),
		Timestamp: o.opts.now(),
	})
	return nil
}

// Routes lists the handler routes this orchestrator can dispatch to.
func (o *Orchestrator) Routes() []Route {
	return o.registry.Routes()
}

// Events returns a read-only channel of events. It is closed by Stop.
func (o *Orchestrator) Events() <-chan OrchestratorEvent {
	return o.emitter.Events()
}

// DroppedEvents returns how many events were discarded on a full buffer.
func (o *Orchestrator) DroppedEvents() uint64 {
	return o.emitter.DroppedCount()
}

// finish publishes a terminal task to subscribers and the archive.
func (o *Orchestrator) finish(t models.Task) {
	typ := EventTaskCompleted
	if t.Status == models.TaskStatusFailed {
		typ = EventTaskFailed
		o.logger.Log("[dispatch] task %s failed (%s): %s", t.ID, t.ErrorKind, t.Error)
	} else {
		o.logger.Log("[dispatch] task %s completed in %s", t.ID, t.ProcessingTime())
	}
	o.emitter.Emit(taskEvent(typ, t, o.opts.now()))

	if o.opts.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultArchiveWriteBudget)
	defer cancel()
	if err := o.opts.archive.RecordTask(ctx, t); err != nil {
		o.logger.Log("[archive] record task %s: %v", t.ID, err)
	}
}

// now is the orchestrator clock.
func (o *Orchestrator) now() time.Time {
	return o.opts.now()
}
