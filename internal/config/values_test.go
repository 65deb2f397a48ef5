package config

import (
	"errors"
	"testing"
	"time"

	"github.com/ShayCichocki/taskorch/pkg/models"
)

func TestValue(t *testing.T) {
	cfg := Default()

	v, ok := Value(cfg, "Orchestrator.Max_Concurrent_Tasks")
	if !ok {
		t.Fatal("Value should find keys case-insensitively")
	}
	if v != models.DefaultMaxConcurrentTasks {
		t.Errorf("Value = %v, want %d", v, models.DefaultMaxConcurrentTasks)
	}

	if _, ok := Value(cfg, "nope.nothing"); ok {
		t.Error("unknown key should not be found")
	}
}

func TestSet(t *testing.T) {
	cfg := Default()

	tests := []struct {
		key   string
		value string
		check func(*Config) bool
	}{
		{"orchestrator.max_concurrent_tasks", "7", func(c *Config) bool { return c.Orchestrator.MaxConcurrentTasks == 7 }},
		{"agents.code_review", "false", func(c *Config) bool { return !c.Agents.CodeReview }},
		{"tui.refresh_rate", "1s", func(c *Config) bool { return c.TUI.RefreshRate == time.Second }},
		{"archive.driver", "sqlite3", func(c *Config) bool { return c.Archive.Driver == DriverCgo }},
		{"ai_model_version", "2.1.0", func(c *Config) bool { return c.AIModelVersion == "2.1.0" }},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := Set(cfg, tt.key, tt.value)
			if err != nil {
				t.Fatalf("Set(%s, %s): %v", tt.key, tt.value, err)
			}
			if !tt.check(got) {
				t.Errorf("Set(%s, %s) did not apply: %+v", tt.key, tt.value, got)
			}
		})
	}

	if !cfg.Agents.CodeReview || cfg.Orchestrator.MaxConcurrentTasks != models.DefaultMaxConcurrentTasks {
		t.Error("Set must not modify its input")
	}
}

func TestSet_Errors(t *testing.T) {
	cfg := Default()

	if _, err := Set(cfg, "no.such.key", "1"); err == nil {
		t.Error("unknown key should fail")
	}
	if _, err := Set(cfg, "orchestrator.max_concurrent_tasks", "lots"); err == nil {
		t.Error("non-numeric value should fail")
	}
	if _, err := Set(cfg, "orchestrator.max_concurrent_tasks", "0"); !errors.Is(err, models.ErrInvalidConfig) {
		t.Errorf("zero limit err = %v, want ErrInvalidConfig", err)
	}
	if _, err := Set(cfg, "archive.driver", "postgres"); !errors.Is(err, models.ErrInvalidConfig) {
		t.Errorf("bad driver err = %v, want ErrInvalidConfig", err)
	}
}
