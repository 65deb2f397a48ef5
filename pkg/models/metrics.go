package models

import "time"

// Health is a coarse classification of the failure rate.
type Health string

const (
	HealthExcellent Health = "excellent"
	HealthGood      Health = "good"
	HealthFair      Health = "fair"
	HealthPoor      Health = "poor"
)

// ClassifyHealth maps a failure rate in [0, 1] to a Health:
// below 1% is excellent, below 5% good, below 10% fair, otherwise poor.
func ClassifyHealth(failureRate float64) Health {
	switch {
	case failureRate < 0.01:
		return HealthExcellent
	case failureRate < 0.05:
		return HealthGood
	case failureRate < 0.10:
		return HealthFair
	default:
		return HealthPoor
	}
}

// SystemMetrics summarises orchestrator activity.
type SystemMetrics struct {
	// TotalTasks counts every submitted task.
	TotalTasks uint64
	// CompletedTasks counts tasks that reached completed.
	CompletedTasks uint64
	// FailedTasks counts tasks that reached failed.
	FailedTasks uint64
	// QueuedTasks is the current pending queue depth.
	QueuedTasks int
	// ActiveTasks is the current number of processing tasks.
	ActiveTasks int
	// RetainedTasks is the number of terminal tasks still held in memory.
	RetainedTasks int
	// AverageProcessingTime is the mean submission-to-terminal latency
	// of tasks that finished inside the metrics window.
	AverageProcessingTime time.Duration
	// AverageQueueWait is the mean submission-to-admission latency of the
	// same tasks.
	AverageQueueWait time.Duration
	// AgentUtilization is each agent's share of terminal tasks, in [0, 1].
	AgentUtilization map[Agent]float64
	// FailureRate is FailedTasks over all terminal tasks.
	FailureRate float64
	// Health classifies FailureRate.
	Health Health
	// LastUpdated is when the metrics were computed.
	LastUpdated time.Time
}

// TerminalTasks returns the number of tasks that have finished.
func (m SystemMetrics) TerminalTasks() uint64 {
	return m.CompletedTasks + m.FailedTasks
}
