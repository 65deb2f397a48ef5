package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/ShayCichocki/taskorch/pkg/models"
)

// lockedWriter serializes writes so lines printed from several goroutines
// do not interleave.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// printStatus prints a status line with color
func printStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}

// printTask prints one task outcome line.
func printTask(w io.Writer, t models.Task) {
	switch t.Status {
	case models.TaskStatusCompleted:
		printStatus(w, "✓", fmt.Sprintf("%s %s/%s %s (%s)", shortID(t.ID), t.AssignedAgent, t.Payload.Action, t.Priority, formatDuration(t.ProcessingTime())), color.FgGreen)
	case models.TaskStatusFailed:
		printStatus(w, "✗", fmt.Sprintf("%s %s/%s %s: %s", shortID(t.ID), t.AssignedAgent, t.Payload.Action, t.Priority, t.Error), color.FgRed)
	default:
		printStatus(w, "…", fmt.Sprintf("%s %s/%s %s %s", shortID(t.ID), t.AssignedAgent, t.Payload.Action, t.Priority, t.Status), color.FgYellow)
	}
}

// printMetrics prints a metrics summary.
func printMetrics(w io.Writer, m models.SystemMetrics) {
	fmt.Fprintf(w, "Tasks: %d submitted, %d completed, %d failed, %d queued, %d active (%d retained)\n",
		m.TotalTasks, m.CompletedTasks, m.FailedTasks, m.QueuedTasks, m.ActiveTasks, m.RetainedTasks)
	fmt.Fprintf(w, "Latency: avg %s (queue wait %s)\n",
		formatDuration(m.AverageProcessingTime), formatDuration(m.AverageQueueWait))
	fmt.Fprintf(w, "Health: %s (%.1f%% failed)\n", healthColor(m.Health).Sprint(m.Health), m.FailureRate*100)
	for _, agent := range models.Agents {
		if share, ok := m.AgentUtilization[agent]; ok && share > 0 {
			fmt.Fprintf(w, "  %-14s %5.1f%%\n", agent, share*100)
		}
	}
}

func healthColor(h models.Health) *color.Color {
	switch h {
	case models.HealthExcellent, models.HealthGood:
		return color.New(color.FgGreen)
	case models.HealthFair:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
