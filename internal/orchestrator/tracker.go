package orchestrator

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/ShayCichocki/taskorch/pkg/models"
)

// DefaultHistoryLimit is the number of terminal tasks kept in memory.
const DefaultHistoryLimit = 10000

// transitions lists the statuses reachable from each status.
var transitions = map[models.TaskStatus][]models.TaskStatus{
	models.TaskStatusPending:    {models.TaskStatusProcessing},
	models.TaskStatusProcessing: {models.TaskStatusCompleted, models.TaskStatusFailed},
}

// canTransition reports whether a task may move from one status to another.
func canTransition(from, to models.TaskStatus) bool {
	return slices.Contains(transitions[from], to)
}

// Tracker is the lifecycle tracker. It holds every pending and processing
// task plus a bounded history of terminal tasks, and is the only place a
// task's status changes.
//
// Terminal tasks are retained first-in first-out up to the history limit.
// Counters cover every task ever submitted, including evicted ones.
type Tracker struct {
	mu sync.RWMutex

	tasks   map[string]*models.Task
	active  map[string]struct{}
	pending int

	// history holds terminal task ids in completion order.
	history      []string
	historyLimit int

	seq       uint64
	completed uint64
	failed    uint64
	perAgent  map[models.Agent]uint64

	// changed is closed and replaced on every terminal transition.
	changed chan struct{}

	now    func() time.Time
	logger *DebugLogger
}

// NewTracker creates a Tracker that keeps at most historyLimit terminal
// tasks. A non-positive limit uses DefaultHistoryLimit.
func NewTracker(historyLimit int, now func() time.Time, logger *DebugLogger) *Tracker {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		tasks:        make(map[string]*models.Task),
		active:       make(map[string]struct{}),
		historyLimit: historyLimit,
		perAgent:     make(map[models.Agent]uint64),
		changed:      make(chan struct{}),
		now:          now,
		logger:       logger,
	}
}

// Submit records t as pending and stamps its sequence number.
// The tracker takes ownership of t.
func (tr *Tracker) Submit(t *models.Task) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if _, exists := tr.tasks[t.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, t.ID)
	}

	tr.seq++
	t.Seq = tr.seq
	t.Status = models.TaskStatusPending
	tr.tasks[t.ID] = t
	tr.pending++
	return nil
}

// Activate moves a pending task to processing and returns a copy of it.
func (tr *Tracker) Activate(id string) (models.Task, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	t, err := tr.transitionLocked(id, models.TaskStatusProcessing, tr.now())
	if err != nil {
		return models.Task{}, err
	}
	return t.Clone(), nil
}

// Reject fails a pending task in a single step, so it is never observed in
// processing. The dispatcher uses it when no handler can run the task.
func (tr *Tracker) Reject(id string, kind models.ErrorKind, msg string) (models.Task, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	now := tr.now()
	if _, err := tr.transitionLocked(id, models.TaskStatusProcessing, now); err != nil {
		return models.Task{}, err
	}
	return tr.failLocked(id, kind, msg, now)
}

// Complete moves a processing task to completed with the given encoded
// result. The tracker keeps its own copy of result.
func (tr *Tracker) Complete(id string, result jsontext.Value) (models.Task, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	t, err := tr.transitionLocked(id, models.TaskStatusCompleted, tr.now())
	if err != nil {
		return models.Task{}, err
	}
	if result != nil {
		t.Result = result.Clone()
	}
	tr.completed++
	tr.retireLocked(t)
	return t.Clone(), nil
}

// Fail moves a processing task to failed with the given cause.
func (tr *Tracker) Fail(id string, kind models.ErrorKind, msg string) (models.Task, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.failLocked(id, kind, msg, tr.now())
}

func (tr *Tracker) failLocked(id string, kind models.ErrorKind, msg string, now time.Time) (models.Task, error) {
	t, err := tr.transitionLocked(id, models.TaskStatusFailed, now)
	if err != nil {
		return models.Task{}, err
	}
	t.Error = msg
	t.ErrorKind = kind
	tr.failed++
	tr.retireLocked(t)
	return t.Clone(), nil
}

// transitionLocked validates and applies a status change, keeping the
// pending count and active set in step. Caller must hold tr.mu.
func (tr *Tracker) transitionLocked(id string, to models.TaskStatus, now time.Time) (*models.Task, error) {
	t, ok := tr.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if !canTransition(t.Status, to) {
		return nil, fmt.Errorf("%w: task %s %s -> %s", ErrInvalidTransition, id, t.Status, to)
	}

	switch to {
	case models.TaskStatusProcessing:
		tr.pending--
		tr.active[id] = struct{}{}
		t.StartedAt = &now
	case models.TaskStatusCompleted, models.TaskStatusFailed:
		delete(tr.active, id)
		t.CompletedAt = &now
	}
	t.Status = to
	return t, nil
}

// retireLocked appends a terminal task to history, evicts the oldest entry
// past the limit and wakes waiters. Caller must hold tr.mu.
func (tr *Tracker) retireLocked(t *models.Task) {
	tr.perAgent[t.AssignedAgent]++
	tr.history = append(tr.history, t.ID)
	if len(tr.history) > tr.historyLimit {
		evicted := tr.history[0]
		tr.history[0] = ""
		tr.history = tr.history[1:]
		delete(tr.tasks, evicted)
		tr.logger.Log("[tracker] evicted task %s from history", evicted)
	}

	close(tr.changed)
	tr.changed = make(chan struct{})
}

// Get returns a copy of the task with the given id from any set.
func (tr *Tracker) Get(id string) (models.Task, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	t, ok := tr.tasks[id]
	if !ok {
		return models.Task{}, false
	}
	return t.Clone(), true
}

// Changed returns a channel that is closed on the next terminal transition.
func (tr *Tracker) Changed() <-chan struct{} {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return tr.changed
}

// ActiveCount returns the number of processing tasks.
func (tr *Tracker) ActiveCount() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return len(tr.active)
}

// Active returns copies of the processing tasks.
func (tr *Tracker) Active() []models.Task {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	out := make([]models.Task, 0, len(tr.active))
	for id := range tr.active {
		out = append(out, tr.tasks[id].Clone())
	}
	return out
}
