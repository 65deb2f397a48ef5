package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/taskorch/pkg/models"
)

// Defaults for the timing options.
const (
	DefaultTickInterval       = 100 * time.Millisecond
	DefaultWaitPollInterval   = 10 * time.Millisecond
	DefaultWaitTimeout        = 30 * time.Second
	DefaultMetricsWindow      = 24 * time.Hour
	defaultArchiveWriteBudget = 5 * time.Second
)

// Archive receives a copy of every task that reaches a terminal status.
type Archive interface {
	RecordTask(ctx context.Context, task models.Task) error
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	config             models.SystemConfig
	tickInterval       time.Duration
	waitPollInterval   time.Duration
	defaultWaitTimeout time.Duration
	metricsWindow      time.Duration
	historyLimit       int
	eventBuffer        int
	logger             *DebugLogger
	archive            Archive
	now                func() time.Time
	newID              func() string
}

func defaultOptions() orchestratorOptions {
	return orchestratorOptions{
		config:             models.DefaultSystemConfig(),
		tickInterval:       DefaultTickInterval,
		waitPollInterval:   DefaultWaitPollInterval,
		defaultWaitTimeout: DefaultWaitTimeout,
		metricsWindow:      DefaultMetricsWindow,
		historyLimit:       DefaultHistoryLimit,
		eventBuffer:        DefaultEventBuffer,
		logger:             NopLogger(),
		now:                time.Now,
		newID:              uuid.NewString,
	}
}

// WithConfig sets the initial runtime configuration.
func WithConfig(cfg models.SystemConfig) Option {
	return func(o *orchestratorOptions) { o.config = cfg }
}

// WithMaxConcurrentTasks overrides the initial concurrency bound.
func WithMaxConcurrentTasks(n int) Option {
	return func(o *orchestratorOptions) { o.config.MaxConcurrentTasks = n }
}

// WithTickInterval sets how often the dispatcher tries to admit a task.
func WithTickInterval(d time.Duration) Option {
	return func(o *orchestratorOptions) {
		if d > 0 {
			o.tickInterval = d
		}
	}
}

// WithWaitPollInterval sets the fallback poll interval of WaitForCompletion.
func WithWaitPollInterval(d time.Duration) Option {
	return func(o *orchestratorOptions) {
		if d > 0 {
			o.waitPollInterval = d
		}
	}
}

// WithDefaultWaitTimeout sets the budget used when WaitForCompletion is
// called with a non-positive timeout.
func WithDefaultWaitTimeout(d time.Duration) Option {
	return func(o *orchestratorOptions) {
		if d > 0 {
			o.defaultWaitTimeout = d
		}
	}
}

// WithMetricsWindow sets how far back latency averages look.
func WithMetricsWindow(d time.Duration) Option {
	return func(o *orchestratorOptions) {
		if d > 0 {
			o.metricsWindow = d
		}
	}
}

// WithHistoryLimit sets how many terminal tasks stay queryable in memory.
func WithHistoryLimit(n int) Option {
	return func(o *orchestratorOptions) { o.historyLimit = n }
}

// WithEventBuffer sets the capacity of the events channel.
func WithEventBuffer(n int) Option {
	return func(o *orchestratorOptions) { o.eventBuffer = n }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithArchive sets where terminal tasks are recorded.
func WithArchive(a Archive) Option {
	return func(o *orchestratorOptions) { o.archive = a }
}

// WithClock replaces time.Now (mainly for testing).
func WithClock(now func() time.Time) Option {
	return func(o *orchestratorOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator replaces the uuid task id generator (mainly for testing).
func WithIDGenerator(gen func() string) Option {
	return func(o *orchestratorOptions) {
		if gen != nil {
			o.newID = gen
		}
	}
}
