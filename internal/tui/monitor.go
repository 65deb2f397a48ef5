package tui

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/taskorch/internal/orchestrator"
	"github.com/ShayCichocki/taskorch/pkg/models"
)

// DefaultRefreshRate is how often the monitor polls metrics.
const DefaultRefreshRate = 250 * time.Millisecond

// maxLogEntries bounds the activity log.
const maxLogEntries = 12

// MetricsSource is what the monitor reads on every refresh.
type MetricsSource interface {
	GetSystemMetrics() models.SystemMetrics
	ActiveTasks() []models.Task
}

// MetricsMsg carries a fresh metrics snapshot.
type MetricsMsg struct {
	Metrics models.SystemMetrics
	Active  []models.Task
}

// EventMsg carries one orchestrator event.
type EventMsg struct {
	Event orchestrator.OrchestratorEvent
}

// DoneMsg signals that the run finished. The monitor keeps showing the
// final state until the user quits.
type DoneMsg struct {
	Err error
}

type tickMsg time.Time

type eventsClosedMsg struct{}

// MonitorApp is the bubbletea model for the run monitor.
type MonitorApp struct {
	source  MetricsSource
	events  <-chan orchestrator.OrchestratorEvent
	refresh time.Duration

	spinner spinner.Model
	metrics models.SystemMetrics
	active  []models.Task
	logs    []orchestrator.OrchestratorEvent

	width    int
	quitting bool
	done     bool
	err      error

	headerStyle   lipgloss.Style
	labelStyle    lipgloss.Style
	valueStyle    lipgloss.Style
	progressFull  lipgloss.Style
	progressEmpty lipgloss.Style
	logTimeStyle  lipgloss.Style
	errorStyle    lipgloss.Style
	doneStyle     lipgloss.Style
	healthStyles  map[models.Health]lipgloss.Style
}

// NewMonitorApp creates a monitor polling source every refresh. events may
// be nil.
func NewMonitorApp(source MetricsSource, events <-chan orchestrator.OrchestratorEvent, refresh time.Duration) *MonitorApp {
	if refresh <= 0 {
		refresh = DefaultRefreshRate
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &MonitorApp{
		source:  source,
		events:  events,
		refresh: refresh,
		spinner: s,

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")).
			MarginBottom(1),

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(16),

		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true),

		progressFull: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		progressEmpty: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		logTimeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),

		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")).
			Bold(true),

		healthStyles: map[models.Health]lipgloss.Style{
			models.HealthExcellent: lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Bold(true),
			models.HealthGood:      lipgloss.NewStyle().Foreground(lipgloss.Color("76")).Bold(true),
			models.HealthFair:      lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
			models.HealthPoor:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		},
	}
}

// NewMonitorProgram creates a tea.Program running a MonitorApp.
func NewMonitorProgram(source MetricsSource, events <-chan orchestrator.OrchestratorEvent, refresh time.Duration) (*tea.Program, *MonitorApp) {
	app := NewMonitorApp(source, events, refresh)
	return tea.NewProgram(app), app
}

// Init implements tea.Model.
func (a *MonitorApp) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.poll(), a.tick(), a.waitForEvent())
}

func (a *MonitorApp) tick() tea.Cmd {
	return tea.Tick(a.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *MonitorApp) poll() tea.Cmd {
	if a.source == nil {
		return nil
	}
	return func() tea.Msg {
		return MetricsMsg{Metrics: a.source.GetSystemMetrics(), Active: a.source.ActiveTasks()}
	}
}

func (a *MonitorApp) waitForEvent() tea.Cmd {
	if a.events == nil {
		return nil
	}
	events := a.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return EventMsg{Event: ev}
	}
}

// Update implements tea.Model.
func (a *MonitorApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = true
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width

	case tickMsg:
		if a.done {
			return a, nil
		}
		return a, tea.Batch(a.poll(), a.tick())

	case MetricsMsg:
		a.metrics = msg.Metrics
		a.active = msg.Active

	case EventMsg:
		a.logs = append(a.logs, msg.Event)
		if len(a.logs) > maxLogEntries {
			a.logs = a.logs[len(a.logs)-maxLogEntries:]
		}
		return a, a.waitForEvent()

	case eventsClosedMsg:
		a.events = nil

	case DoneMsg:
		a.done = true
		a.err = msg.Err
		return a, a.poll()

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

// View implements tea.Model.
func (a *MonitorApp) View() string {
	if a.quitting {
		return "Monitor closed.\n"
	}

	m := a.metrics
	var b strings.Builder

	title := "Task Orchestrator"
	if !a.done {
		title = a.spinner.View() + " " + title
	}
	b.WriteString(a.headerStyle.Render(title))
	b.WriteString("\n")

	a.row(&b, "Submitted:", fmt.Sprintf("%d", m.TotalTasks))
	a.row(&b, "Queued:", fmt.Sprintf("%d", m.QueuedTasks))
	a.row(&b, "Active:", fmt.Sprintf("%d", m.ActiveTasks))
	a.row(&b, "Completed:", fmt.Sprintf("%d", m.CompletedTasks))
	a.row(&b, "Failed:", fmt.Sprintf("%d", m.FailedTasks))

	pct := 0.0
	if m.TotalTasks > 0 {
		pct = float64(m.TerminalTasks()) / float64(m.TotalTasks) * 100
	}
	b.WriteString(a.renderProgressBar(pct, 30))
	b.WriteString("\n\n")

	a.row(&b, "Avg latency:", m.AverageProcessingTime.Round(time.Millisecond).String())
	a.row(&b, "Avg queue wait:", m.AverageQueueWait.Round(time.Millisecond).String())

	health := m.Health
	if health == "" {
		health = models.HealthExcellent
	}
	b.WriteString(a.labelStyle.Render("Health:"))
	b.WriteString(a.healthStyles[health].Render(string(health)))
	b.WriteString(fmt.Sprintf(" (%.1f%% failed)\n", m.FailureRate*100))

	if len(m.AgentUtilization) > 0 {
		b.WriteString("\n")
		b.WriteString(a.labelStyle.Render("Utilization:"))
		b.WriteString("\n")
		for _, agent := range models.Agents {
			share, ok := m.AgentUtilization[agent]
			if !ok {
				continue
			}
			b.WriteString(fmt.Sprintf("  %-14s", agent))
			b.WriteString(a.renderProgressBar(share*100, 20))
			b.WriteString("\n")
		}
	}

	if len(a.active) > 0 {
		b.WriteString("\n")
		b.WriteString(a.labelStyle.Render("Processing:"))
		b.WriteString("\n")
		active := slices.Clone(a.active)
		slices.SortFunc(active, func(x, y models.Task) int {
			return cmp.Compare(x.Seq, y.Seq)
		})
		for _, t := range active {
			b.WriteString(fmt.Sprintf("  %s  %s/%s  %s\n", shortID(t.ID), t.AssignedAgent, t.Payload.Action, t.Priority))
		}
	}

	b.WriteString(a.renderLogs())

	b.WriteString("\n")
	switch {
	case a.done && a.err != nil:
		b.WriteString(a.errorStyle.Render(fmt.Sprintf("Error: %v", a.err)))
	case a.done:
		b.WriteString(a.doneStyle.Render("Run complete! Press q to exit."))
	default:
		b.WriteString(lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Render("Press q to quit"))
	}
	b.WriteString("\n")

	return b.String()
}

func (a *MonitorApp) row(b *strings.Builder, label, value string) {
	b.WriteString(a.labelStyle.Render(label))
	b.WriteString(a.valueStyle.Render(value))
	b.WriteString("\n")
}

func (a *MonitorApp) renderLogs() string {
	if len(a.logs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(a.labelStyle.Render("Activity:"))
	b.WriteString("\n")
	for _, ev := range a.logs {
		b.WriteString("  ")
		b.WriteString(a.logTimeStyle.Render(ev.Timestamp.Format("15:04:05")))
		b.WriteString(" ")
		b.WriteString(describeEvent(ev))
		b.WriteString("\n")
	}
	return b.String()
}

func describeEvent(ev orchestrator.OrchestratorEvent) string {
	switch ev.Type {
	case orchestrator.EventTaskFailed:
		return fmt.Sprintf("%s %s %s/%s: %s", ev.Type, shortID(ev.TaskID), ev.Agent, ev.Action, ev.Error)
	case orchestrator.EventTaskCompleted:
		return fmt.Sprintf("%s %s %s/%s in %s", ev.Type, shortID(ev.TaskID), ev.Agent, ev.Action, ev.Duration.Round(time.Millisecond))
	case orchestrator.EventConfigUpdated:
		return fmt.Sprintf("%s %s", ev.Type, ev.Message)
	default:
		return fmt.Sprintf("%s %s %s/%s", ev.Type, shortID(ev.TaskID), ev.Agent, ev.Action)
	}
}

// renderProgressBar renders a progress bar.
func (a *MonitorApp) renderProgressBar(pct float64, width int) string {
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}

	filled := int(pct / 100 * float64(width))
	empty := width - filled

	bar := a.progressFull.Render(strings.Repeat("█", filled)) +
		a.progressEmpty.Render(strings.Repeat("░", empty))

	return fmt.Sprintf("  %s %.0f%%", bar, pct)
}

// Done reports whether a DoneMsg has been received.
func (a *MonitorApp) Done() bool {
	return a.done
}

// Err returns the error carried by the DoneMsg, if any.
func (a *MonitorApp) Err() error {
	return a.err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
