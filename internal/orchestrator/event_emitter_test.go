package orchestrator

import "testing"

func TestEventEmitter_DropsWhenFull(t *testing.T) {
	e := NewEventEmitter(2)
	for range 5 {
		e.Emit(OrchestratorEvent{Type: EventTaskSubmitted})
	}

	if got := e.DroppedCount(); got != 3 {
		t.Errorf("DroppedCount = %d, want 3", got)
	}
	if got := len(e.Events()); got != 2 {
		t.Errorf("buffered = %d, want 2", got)
	}
}

func TestEventEmitter_EmitAfterClose(t *testing.T) {
	e := NewEventEmitter(1)
	e.Close()
	e.Close()

	e.Emit(OrchestratorEvent{Type: EventTaskCompleted})

	if _, ok := <-e.Events(); ok {
		t.Error("closed emitter delivered an event")
	}
}
