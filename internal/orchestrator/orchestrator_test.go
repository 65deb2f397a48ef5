package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"

	"github.com/ShayCichocki/taskorch/pkg/models"
)

// newTestOrchestrator builds an orchestrator with fast ticks and stops it
// when the test ends.
func newTestOrchestrator(t *testing.T, bindings []Binding, opts ...Option) *Orchestrator {
	t.Helper()

	reg, err := NewRegistry(bindings...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	base := []Option{
		WithTickInterval(time.Millisecond),
		WithWaitPollInterval(time.Millisecond),
	}
	o, err := New(reg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(o.Stop)
	return o
}

func mustPayload(t *testing.T, action models.Action, data any) models.Payload {
	t.Helper()
	p, err := models.NewPayload(action, data)
	if err != nil {
		t.Fatalf("NewPayload: %v", err)
	}
	return p
}

func mustSubmit(t *testing.T, o *Orchestrator, typ models.TaskType, payload models.Payload, prio models.Priority) string {
	t.Helper()
	id, err := o.SubmitTask(typ, payload, prio)
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}
	return id
}

func mustStart(t *testing.T, o *Orchestrator) {
	t.Helper()
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

type label struct {
	Name string `json:"name"`
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(nil, WithMaxConcurrentTasks(0))
	if !errors.Is(err, models.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

// Submitting low, urgent, medium with one slot admits urgent, medium, low.
func TestDispatch_PriorityOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	record := func(_ context.Context, in label) (string, error) {
		mu.Lock()
		order = append(order, in.Name)
		mu.Unlock()
		return in.Name, nil
	}

	o := newTestOrchestrator(t,
		[]Binding{Bind(models.AgentScheduler, models.ActionCreateTask, record)},
		WithMaxConcurrentTasks(1),
	)

	var ids []string
	for _, p := range []models.Priority{models.PriorityLow, models.PriorityUrgent, models.PriorityMedium} {
		ids = append(ids, mustSubmit(t, o, models.TaskTypeScheduling,
			mustPayload(t, models.ActionCreateTask, label{Name: string(p)}), p))
	}
	mustStart(t, o)

	for _, id := range ids {
		if _, err := o.WaitForCompletion(context.Background(), id, 2*time.Second); err != nil {
			t.Fatalf("wait %s: %v", id, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"urgent", "medium", "low"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("admission order mismatch (-want +got):\n%s", diff)
	}
}

// A handler error fails the task with the handler's own message.
func TestDispatch_HandlerError(t *testing.T) {
	o := newTestOrchestrator(t, []Binding{
		BindFunc(models.AgentFraudWatch, models.ActionCheckCode, func(context.Context, models.Payload) (any, error) {
			return nil, errors.New("boom")
		}),
	})
	mustStart(t, o)

	id := mustSubmit(t, o, models.TaskTypeFraudCheck, models.Payload{Action: models.ActionCheckCode}, "")

	_, err := o.WaitForCompletion(context.Background(), id, 2*time.Second)
	if !errors.Is(err, ErrTaskFailed) {
		t.Fatalf("err = %v, want ErrTaskFailed", err)
	}
	var failed *TaskFailedError
	if !errors.As(err, &failed) || failed.Message != "boom" || failed.Kind != models.ErrorKindHandler {
		t.Errorf("failure = %+v, want handler_error boom", failed)
	}

	task, ok := o.GetTaskStatus(id)
	if !ok {
		t.Fatal("task not found")
	}
	if task.Status != models.TaskStatusFailed || task.Error != "boom" {
		t.Errorf("task status=%s error=%q, want failed boom", task.Status, task.Error)
	}
	if task.Result != nil {
		t.Errorf("failed task has result %v", task.Result)
	}
}

// A missing handler fails the task at admission without a processing phase.
func TestDispatch_UnknownHandler(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	mustStart(t, o)

	id := mustSubmit(t, o, models.TaskTypeComplaint, models.Payload{Action: "teleport"}, models.PriorityHigh)

	_, err := o.WaitForCompletion(context.Background(), id, 2*time.Second)
	if !errors.Is(err, ErrUnknownHandler) {
		t.Fatalf("err = %v, want ErrUnknownHandler", err)
	}

	task, _ := o.GetTaskStatus(id)
	if task.ErrorKind != models.ErrorKindUnknownHandler {
		t.Errorf("ErrorKind = %q, want unknown_handler", task.ErrorKind)
	}
	if task.StartedAt == nil || task.CompletedAt == nil || !task.StartedAt.Equal(*task.CompletedAt) {
		t.Errorf("task dwelt in processing: started=%v completed=%v", task.StartedAt, task.CompletedAt)
	}

	for {
		select {
		case ev := <-o.Events():
			if ev.Type == EventTaskStarted && ev.TaskID == id {
				t.Fatal("unknown-handler task emitted task_started")
			}
			if ev.Type == EventTaskFailed && ev.TaskID == id {
				return
			}
		case <-time.After(time.Second):
			t.Fatal("no task_failed event")
		}
	}
}

// A short wait times out while the task carries on and completes.
func TestWait_TimeoutLeavesTaskRunning(t *testing.T) {
	o := newTestOrchestrator(t, []Binding{
		BindFunc(models.AgentCodeCheck, models.ActionReviewCode, func(ctx context.Context, _ models.Payload) (any, error) {
			select {
			case <-time.After(500 * time.Millisecond):
				return "reviewed", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}),
	})
	mustStart(t, o)

	id := mustSubmit(t, o, models.TaskTypeReview, models.Payload{Action: models.ActionReviewCode}, models.PriorityHigh)

	start := time.Now()
	_, err := o.WaitForCompletion(context.Background(), id, 50*time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed < 50*time.Millisecond || elapsed > 400*time.Millisecond {
		t.Errorf("timed out after %v, want about 50ms", elapsed)
	}

	result, err := o.WaitForCompletion(context.Background(), id, 3*time.Second)
	if err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if string(result) != `"reviewed"` {
		t.Errorf("result = %s, want reviewed", result)
	}
	task, _ := o.GetTaskStatus(id)
	if task.Status != models.TaskStatusCompleted {
		t.Errorf("status = %s, want completed", task.Status)
	}
}

// With ten slots, a hundred tasks never exceed ten in processing.
func TestDispatch_ConcurrencyBound(t *testing.T) {
	const (
		limit = 10
		total = 100
	)

	var running, peak atomic.Int64
	work := func(context.Context, models.Payload) (any, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return nil, nil
	}

	o := newTestOrchestrator(t,
		[]Binding{BindFunc(models.AgentScoreKeeper, models.ActionAddTaskAssignment, work)},
		WithMaxConcurrentTasks(limit),
	)

	ids := make([]string, 0, total)
	for range total {
		ids = append(ids, mustSubmit(t, o, models.TaskTypeScoreUpdate, models.Payload{Action: models.ActionAddTaskAssignment}, ""))
	}

	stop := make(chan struct{})
	var violations atomic.Int64
	var pollers sync.WaitGroup
	pollers.Add(1)
	go func() {
		defer pollers.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if o.GetSystemMetrics().ActiveTasks > limit {
				violations.Add(1)
			}
			time.Sleep(100 * time.Microsecond)
		}
	}()

	mustStart(t, o)
	for _, id := range ids {
		if _, err := o.WaitForCompletion(context.Background(), id, 10*time.Second); err != nil {
			t.Fatalf("wait %s: %v", id, err)
		}
	}
	close(stop)
	pollers.Wait()

	if v := violations.Load(); v > 0 {
		t.Errorf("observed more than %d processing tasks %d times", limit, v)
	}
	if p := peak.Load(); p > limit {
		t.Errorf("peak concurrent handlers = %d, want <= %d", p, limit)
	}

	m := o.GetSystemMetrics()
	if m.CompletedTasks != total || m.ActiveTasks != 0 || m.QueuedTasks != 0 {
		t.Errorf("metrics = %+v, want %d completed and nothing in flight", m, total)
	}
}

func TestDispatch_HandlerPanicBecomesFailure(t *testing.T) {
	o := newTestOrchestrator(t, []Binding{
		BindFunc(models.AgentComplaintBot, models.ActionProcessComplaint, func(context.Context, models.Payload) (any, error) {
			panic("nil map")
		}),
		BindFunc(models.AgentDevMatch, models.ActionFindDeveloper, func(context.Context, models.Payload) (any, error) {
			return "dev-1", nil
		}),
	})
	mustStart(t, o)

	bad := mustSubmit(t, o, models.TaskTypeComplaint, models.Payload{Action: models.ActionProcessComplaint}, models.PriorityUrgent)
	good := mustSubmit(t, o, models.TaskTypeDevelopment, models.Payload{Action: models.ActionFindDeveloper}, models.PriorityLow)

	if _, err := o.WaitForCompletion(context.Background(), bad, 2*time.Second); !errors.Is(err, ErrTaskFailed) {
		t.Errorf("panicking handler: err = %v, want ErrTaskFailed", err)
	}
	if result, err := o.WaitForCompletion(context.Background(), good, 2*time.Second); err != nil || string(result) != `"dev-1"` {
		t.Errorf("later task: result=%v err=%v, want dev-1", result, err)
	}
}

func TestDispatch_HandlerGetsOwnPayloadCopy(t *testing.T) {
	seen := make(chan string, 1)
	o := newTestOrchestrator(t, []Binding{
		Bind(models.AgentScheduler, models.ActionCreateTask, func(_ context.Context, in label) (any, error) {
			seen <- in.Name
			return nil, nil
		}),
	})

	payload := mustPayload(t, models.ActionCreateTask, label{Name: "original"})
	id := mustSubmit(t, o, models.TaskTypeScheduling, payload, "")
	copy(payload.Data, []byte(`{"name":"mutated!"}`))

	mustStart(t, o)
	if _, err := o.WaitForCompletion(context.Background(), id, 2*time.Second); err != nil {
		t.Fatal(err)
	}
	if got := <-seen; got != "original" {
		t.Errorf("handler saw %q, want original", got)
	}
}

func TestSubmitTask_Validation(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	if _, err := o.SubmitTask("payments", models.Payload{Action: "x"}, ""); !errors.Is(err, ErrUnknownTaskType) {
		t.Errorf("unknown type: err = %v, want ErrUnknownTaskType", err)
	}
	if _, err := o.SubmitTask(models.TaskTypeReview, models.Payload{Action: "x"}, "critical"); !errors.Is(err, ErrInvalidPriority) {
		t.Errorf("bad priority: err = %v, want ErrInvalidPriority", err)
	}
}

func TestSubmitTask_PendingIsVisible(t *testing.T) {
	n := 0
	o := newTestOrchestrator(t, nil,
		WithIDGenerator(func() string { n++; return fmt.Sprintf("task-%d", n) }),
		WithConfig(models.SystemConfig{MaxConcurrentTasks: 2, AIModelVersion: "2.0.0"}),
	)

	id := mustSubmit(t, o, models.TaskTypeDevelopment, models.Payload{Action: models.ActionFindDeveloper}, "")
	if id != "task-1" {
		t.Errorf("id = %q, want task-1", id)
	}

	task, ok := o.GetTaskStatus(id)
	if !ok {
		t.Fatal("pending task not visible")
	}
	if task.Status != models.TaskStatusPending || task.Priority != models.PriorityMedium {
		t.Errorf("task = %+v, want pending medium", task)
	}
	if task.AssignedAgent != models.AgentDevMatch || task.ModelVersion != "2.0.0" {
		t.Errorf("agent=%s model=%s, want dev_match 2.0.0", task.AssignedAgent, task.ModelVersion)
	}
	if task.Seq != 1 {
		t.Errorf("Seq = %d, want 1", task.Seq)
	}

	if _, ok := o.GetTaskStatus("nope"); ok {
		t.Error("unknown id should not be found")
	}
}

func TestUpdateConfig(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	limit := 3
	off := false
	if err := o.UpdateConfig(models.ConfigPatch{MaxConcurrentTasks: &limit, EnableFraudDetection: &off}); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	cfg := o.Config()
	if cfg.MaxConcurrentTasks != 3 || cfg.EnableFraudDetection || !cfg.EnableCodeReview {
		t.Errorf("config = %+v", cfg)
	}

	zero := 0
	if err := o.UpdateConfig(models.ConfigPatch{MaxConcurrentTasks: &zero}); !errors.Is(err, models.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
	if o.Config().MaxConcurrentTasks != 3 {
		t.Error("rejected patch must not change config")
	}

	select {
	case ev := <-o.Events():
		if ev.Type != EventConfigUpdated {
			t.Errorf("event = %s, want config_updated", ev.Type)
		}
	case <-time.After(time.Second):
		t.Error("no config_updated event")
	}
}

func TestUpdateConfig_LoweringLimitDoesNotPreempt(t *testing.T) {
	release := make(chan struct{})
	o := newTestOrchestrator(t, []Binding{
		BindFunc(models.AgentScheduler, models.ActionCreateTask, func(context.Context, models.Payload) (any, error) {
			<-release
			return nil, nil
		}),
	}, WithMaxConcurrentTasks(3))

	var ids []string
	for range 4 {
		ids = append(ids, mustSubmit(t, o, models.TaskTypeScheduling, models.Payload{Action: models.ActionCreateTask}, ""))
	}
	mustStart(t, o)

	deadline := time.After(2 * time.Second)
	for o.GetSystemMetrics().ActiveTasks < 3 {
		select {
		case <-deadline:
			t.Fatal("three tasks never became active")
		case <-time.After(time.Millisecond):
		}
	}

	one := 1
	if err := o.UpdateConfig(models.ConfigPatch{MaxConcurrentTasks: &one}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)

	m := o.GetSystemMetrics()
	if m.ActiveTasks != 3 || m.QueuedTasks != 1 {
		t.Errorf("active=%d queued=%d, want running tasks kept and the fourth held back", m.ActiveTasks, m.QueuedTasks)
	}

	close(release)
	for _, id := range ids {
		if _, err := o.WaitForCompletion(context.Background(), id, 2*time.Second); err != nil {
			t.Fatalf("wait %s: %v", id, err)
		}
	}
}

func TestStartStop(t *testing.T) {
	started := make(chan struct{})
	o := newTestOrchestrator(t, []Binding{
		BindFunc(models.AgentScheduler, models.ActionCreateTask, func(ctx context.Context, _ models.Payload) (any, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	})

	mustStart(t, o)
	if err := o.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start: err = %v, want ErrAlreadyStarted", err)
	}

	id := mustSubmit(t, o, models.TaskTypeScheduling, models.Payload{Action: models.ActionCreateTask}, "")
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never started")
	}

	o.Stop()
	o.Stop()

	task, _ := o.GetTaskStatus(id)
	if task.Status != models.TaskStatusFailed {
		t.Errorf("status after Stop = %s, want failed from cancelled context", task.Status)
	}
	if _, err := o.SubmitTask(models.TaskTypeScheduling, models.Payload{Action: models.ActionCreateTask}, ""); !errors.Is(err, ErrStopped) {
		t.Errorf("submit after Stop: err = %v, want ErrStopped", err)
	}
	if err := o.Start(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Start after Stop: err = %v, want ErrStopped", err)
	}
}

type recordingArchive struct {
	mu    sync.Mutex
	tasks []models.Task
}

func (a *recordingArchive) RecordTask(_ context.Context, task models.Task) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tasks = append(a.tasks, task)
	return nil
}

func TestArchiveReceivesTerminalTasks(t *testing.T) {
	archive := &recordingArchive{}
	o := newTestOrchestrator(t, []Binding{
		BindFunc(models.AgentDevMatch, models.ActionFindDeveloper, func(context.Context, models.Payload) (any, error) {
			return "dev-9", nil
		}),
	}, WithArchive(archive))
	mustStart(t, o)

	ok := mustSubmit(t, o, models.TaskTypeDevelopment, models.Payload{Action: models.ActionFindDeveloper}, "")
	bad := mustSubmit(t, o, models.TaskTypeDevelopment, models.Payload{Action: "unbound"}, "")
	for _, id := range []string{ok, bad} {
		o.WaitForCompletion(context.Background(), id, 2*time.Second)
	}
	o.Stop()

	archive.mu.Lock()
	defer archive.mu.Unlock()
	if len(archive.tasks) != 2 {
		t.Fatalf("archived %d tasks, want 2", len(archive.tasks))
	}
	for _, task := range archive.tasks {
		if !task.Status.Terminal() {
			t.Errorf("archived non-terminal task %s (%s)", task.ID, task.Status)
		}
	}
}

func TestDispatch_ResultCopiedForEveryReader(t *testing.T) {
	o := newTestOrchestrator(t, []Binding{
		BindFunc(models.AgentDevMatch, models.ActionFindDeveloper, func(context.Context, models.Payload) (any, error) {
			return map[string]any{"developer": "dev-1"}, nil
		}),
	})
	mustStart(t, o)

	id := mustSubmit(t, o, models.TaskTypeDevelopment, models.Payload{Action: models.ActionFindDeveloper}, "")
	result, err := o.WaitForCompletion(context.Background(), id, 2*time.Second)
	if err != nil {
		t.Fatalf("WaitForCompletion: %v", err)
	}

	var res map[string]any
	if err := json.Unmarshal(result, &res); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	res["developer"] = "hijacked"
	copy(result, `{"developer":"dev-X"}`)

	task, _ := o.GetTaskStatus(id)
	var stored map[string]any
	if err := task.DecodeResult(&stored); err != nil {
		t.Fatalf("DecodeResult: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"developer": "dev-1"}, stored); diff != "" {
		t.Errorf("terminal result changed (-want +got):\n%s", diff)
	}
}

func TestDispatch_UnencodableResultFails(t *testing.T) {
	o := newTestOrchestrator(t, []Binding{
		BindFunc(models.AgentScheduler, models.ActionCreateTask, func(context.Context, models.Payload) (any, error) {
			return make(chan int), nil
		}),
	})
	mustStart(t, o)

	id := mustSubmit(t, o, models.TaskTypeScheduling, models.Payload{Action: models.ActionCreateTask}, "")
	if _, err := o.WaitForCompletion(context.Background(), id, 2*time.Second); !errors.Is(err, ErrTaskFailed) {
		t.Fatalf("err = %v, want ErrTaskFailed", err)
	}
	task, _ := o.GetTaskStatus(id)
	if task.ErrorKind != models.ErrorKindHandler || task.Result != nil {
		t.Errorf("task = %+v, want handler_error without result", task)
	}
}

// blockingArchive holds every write until released or the write budget ends.
type blockingArchive struct {
	release chan struct{}
}

func (a *blockingArchive) RecordTask(ctx context.Context, _ models.Task) error {
	select {
	case <-a.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestDispatch_SlowArchiveDoesNotStallTick(t *testing.T) {
	archive := &blockingArchive{release: make(chan struct{})}
	o := newTestOrchestrator(t, []Binding{
		BindFunc(models.AgentDevMatch, models.ActionFindDeveloper, func(context.Context, models.Payload) (any, error) {
			return "dev-1", nil
		}),
	}, WithArchive(archive))
	t.Cleanup(func() { close(archive.release) })

	mustSubmit(t, o, models.TaskTypeDevelopment, models.Payload{Action: "unbound"}, models.PriorityUrgent)
	next := mustSubmit(t, o, models.TaskTypeDevelopment, models.Payload{Action: models.ActionFindDeveloper}, models.PriorityLow)
	mustStart(t, o)

	if _, err := o.WaitForCompletion(context.Background(), next, time.Second); err != nil {
		t.Fatalf("task behind a rejected one: %v", err)
	}
}
