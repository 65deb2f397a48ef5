package models

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultSystemConfig(t *testing.T) {
	cfg := DefaultSystemConfig()

	if cfg.MaxConcurrentTasks != 50 {
		t.Errorf("MaxConcurrentTasks = %d, want 50", cfg.MaxConcurrentTasks)
	}
	if cfg.AIModelVersion != "1.0.0" {
		t.Errorf("AIModelVersion = %q, want 1.0.0", cfg.AIModelVersion)
	}
	for _, a := range Agents {
		if !cfg.AgentEnabled(a) {
			t.Errorf("agent %s should be enabled by default", a)
		}
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigPatch_Apply(t *testing.T) {
	off := false
	limit := 3
	version := "2.1.0"

	got := ConfigPatch{
		EnableFraudDetection: &off,
		MaxConcurrentTasks:   &limit,
		AIModelVersion:       &version,
	}.Apply(DefaultSystemConfig())

	want := DefaultSystemConfig()
	want.EnableFraudDetection = false
	want.MaxConcurrentTasks = 3
	want.AIModelVersion = "2.1.0"

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Apply mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigPatch_EmptyIsIdentity(t *testing.T) {
	cfg := DefaultSystemConfig()
	if diff := cmp.Diff(cfg, ConfigPatch{}.Apply(cfg)); diff != "" {
		t.Errorf("empty patch changed config (-want +got):\n%s", diff)
	}
}

func TestPatchFrom(t *testing.T) {
	src := DefaultSystemConfig()
	src.EnableScheduling = false
	src.MaxConcurrentTasks = 7

	got := PatchFrom(src).Apply(SystemConfig{})
	if diff := cmp.Diff(src, got); diff != "" {
		t.Errorf("PatchFrom round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSystemConfig_Validate(t *testing.T) {
	cfg := DefaultSystemConfig()
	cfg.MaxConcurrentTasks = 0

	err := cfg.Validate()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
	}
}
