package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("orchestrator:\n  max_concurrent_tasks: 5\n"), 0644); err != nil {
		t.Fatal(err)
	}

	changes := make(chan *Config, 16)
	w, err := Watch(path, func(cfg *Config) { changes <- cfg }, func(error) {})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("orchestrator:\n  max_concurrent_tasks: 9\n"), 0644); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.Orchestrator.MaxConcurrentTasks == 9 {
				return
			}
		case <-timeout:
			t.Fatal("no reload with the new value")
		}
	}
}

func TestWatch_InvalidFileReportsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("orchestrator:\n  max_concurrent_tasks: 5\n"), 0644); err != nil {
		t.Fatal(err)
	}

	errs := make(chan error, 16)
	w, err := Watch(path, func(*Config) {}, func(err error) { errs <- err })
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("orchestrator:\n  max_concurrent_tasks: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-errs:
	case <-time.After(5 * time.Second):
		t.Fatal("invalid config was not reported")
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	changes := make(chan *Config, 16)
	w, err := Watch(path, func(cfg *Config) { changes <- cfg }, func(error) {})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changes:
		t.Error("change in an unrelated file triggered a reload")
	case <-time.After(200 * time.Millisecond):
	}
}
