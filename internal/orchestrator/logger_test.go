package orchestrator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDebugLogger_WritesFile(t *testing.T) {
	dir := t.TempDir()
	l := NewDebugLoggerForDir(dir)
	l.Log("admitted %s", "task-1")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ".taskorch", "logs", "orchestrator-debug.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "admitted task-1") {
		t.Errorf("log missing entry:\n%s", data)
	}
}

func TestDebugLogger_NopIsSafe(t *testing.T) {
	var nilLogger *DebugLogger
	nilLogger.Log("ignored")
	if err := nilLogger.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}

	NopLogger().Log("ignored %d", 1)
}
