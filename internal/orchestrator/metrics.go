package orchestrator

import (
	"maps"
	"time"

	"github.com/ShayCichocki/taskorch/pkg/models"
)

// trackerTotals is a consistent read of the tracker taken under one lock.
type trackerTotals struct {
	submitted  uint64
	completed  uint64
	failed     uint64
	pending    int
	active     int
	retained   int
	perAgent   map[models.Agent]uint64
	windowN    int
	processing time.Duration
	queueWait  time.Duration
}

// totals reads counters and sums latencies of retained terminal tasks that
// finished at or after since.
func (tr *Tracker) totals(since time.Time) trackerTotals {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	tt := trackerTotals{
		submitted: tr.seq,
		completed: tr.completed,
		failed:    tr.failed,
		pending:   tr.pending,
		active:    len(tr.active),
		retained:  len(tr.history),
		perAgent:  maps.Clone(tr.perAgent),
	}
	for _, id := range tr.history {
		t := tr.tasks[id]
		if t == nil || t.CompletedAt == nil || t.CompletedAt.Before(since) {
			continue
		}
		tt.windowN++
		tt.processing += t.ProcessingTime()
		tt.queueWait += t.QueueWait()
	}
	return tt
}

// GetSystemMetrics summarises orchestrator activity. Averages cover
// retained tasks that finished inside the metrics window; counts, failure
// rate and utilization cover every task since the orchestrator was built.
func (o *Orchestrator) GetSystemMetrics() models.SystemMetrics {
	now := o.now()
	tt := o.tracker.totals(now.Add(-o.opts.metricsWindow))

	m := models.SystemMetrics{
		TotalTasks:       tt.submitted,
		CompletedTasks:   tt.completed,
		FailedTasks:      tt.failed,
		QueuedTasks:      tt.pending,
		ActiveTasks:      tt.active,
		RetainedTasks:    tt.retained,
		AgentUtilization: make(map[models.Agent]float64, len(models.Agents)),
		LastUpdated:      now,
	}
	if tt.windowN > 0 {
		m.AverageProcessingTime = tt.processing / time.Duration(tt.windowN)
		m.AverageQueueWait = tt.queueWait / time.Duration(tt.windowN)
	}

	terminal := m.TerminalTasks()
	for _, a := range models.Agents {
		m.AgentUtilization[a] = 0
		if terminal > 0 {
			m.AgentUtilization[a] = float64(tt.perAgent[a]) / float64(terminal)
		}
	}
	if terminal > 0 {
		m.FailureRate = float64(tt.failed) / float64(terminal)
	}
	m.Health = models.ClassifyHealth(m.FailureRate)
	return m
}
