// Package tui provides the terminal monitor for taskorch runs.
//
// The monitor is read-only. It polls orchestrator metrics on a fixed
// refresh interval, follows the event stream, and shows:
//   - Submitted, queued, active, completed and failed counts
//   - Average latency and queue wait over the metrics window
//   - Health derived from the failure rate
//   - Per-agent utilization and currently processing tasks
//   - Recent activity
//
// Users can only quit with 'q' or Ctrl+C.
//
// Usage:
//
//	program, app := tui.NewMonitorProgram(orch, orch.Events(), 250*time.Millisecond)
//	go func() {
//	    err := runBatch()
//	    program.Send(tui.DoneMsg{Err: err})
//	}()
//	_, err := program.Run()
package tui
