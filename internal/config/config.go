// Package config loads and saves taskorch configuration.
// It supports XDG config paths, project-level overrides and environment
// variables, and can watch a config file for changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/taskorch/pkg/models"
)

// ProjectConfigName is the file searched for in the working directory and
// its parents.
const ProjectConfigName = ".taskorch.yaml"

// Archive drivers.
const (
	DriverModernc = "sqlite"
	DriverCgo     = "sqlite3"
)

// Config holds all configuration for taskorch.
type Config struct {
	Orchestrator   OrchestratorConfig `mapstructure:"orchestrator"`
	Agents         AgentsConfig       `mapstructure:"agents"`
	AIModelVersion string             `mapstructure:"ai_model_version"`
	Archive        ArchiveConfig      `mapstructure:"archive"`
	Anthropic      AnthropicConfig    `mapstructure:"anthropic"`
	TUI            TUIConfig          `mapstructure:"tui"`
	Debug          DebugConfig        `mapstructure:"debug"`
}

// OrchestratorConfig holds dispatcher and retention settings.
type OrchestratorConfig struct {
	MaxConcurrentTasks int           `mapstructure:"max_concurrent_tasks"`
	TickInterval       time.Duration `mapstructure:"tick_interval"`
	WaitPollInterval   time.Duration `mapstructure:"wait_poll_interval"`
	DefaultWaitTimeout time.Duration `mapstructure:"default_wait_timeout"`
	HistoryLimit       int           `mapstructure:"history_limit"`
	MetricsWindow      time.Duration `mapstructure:"metrics_window"`
	EventBuffer        int           `mapstructure:"event_buffer"`
}

// AgentsConfig holds the per-agent switches.
type AgentsConfig struct {
	DevMatching       bool `mapstructure:"dev_matching"`
	CodeReview        bool `mapstructure:"code_review"`
	Scheduling        bool `mapstructure:"scheduling"`
	FraudDetection    bool `mapstructure:"fraud_detection"`
	ComplaintHandling bool `mapstructure:"complaint_handling"`
	ScoreUpdates      bool `mapstructure:"score_updates"`
	AutoEscalation    bool `mapstructure:"auto_escalation"`
}

// ArchiveConfig holds the SQLite archive of finished tasks.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver"`
	Path    string `mapstructure:"path"`
}

// AnthropicConfig holds Anthropic API settings for LLM-backed handlers.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	MaxTokens  int    `mapstructure:"max_tokens"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// TUIConfig holds monitor display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// DebugConfig holds debug log settings. An empty LogDir disables the log.
type DebugConfig struct {
	LogDir string `mapstructure:"log_dir"`
}

// SystemConfig returns the runtime configuration described by c.
func (c *Config) SystemConfig() models.SystemConfig {
	return models.SystemConfig{
		EnableDevMatching:       c.Agents.DevMatching,
		EnableCodeReview:        c.Agents.CodeReview,
		EnableScheduling:        c.Agents.Scheduling,
		EnableFraudDetection:    c.Agents.FraudDetection,
		EnableComplaintHandling: c.Agents.ComplaintHandling,
		EnableScoreUpdates:      c.Agents.ScoreUpdates,
		AutoEscalationEnabled:   c.Agents.AutoEscalation,
		MaxConcurrentTasks:      c.Orchestrator.MaxConcurrentTasks,
		AIModelVersion:          c.AIModelVersion,
	}
}

// Validate checks values the orchestrator cannot run with.
func (c *Config) Validate() error {
	if err := c.SystemConfig().Validate(); err != nil {
		return err
	}
	switch c.Archive.Driver {
	case DriverModernc, DriverCgo:
	default:
		return fmt.Errorf("%w: archive.driver must be %q or %q, got %q", models.ErrInvalidConfig, DriverModernc, DriverCgo, c.Archive.Driver)
	}
	if c.Archive.Enabled && c.Archive.Path == "" {
		return fmt.Errorf("%w: archive.path is required when the archive is enabled", models.ErrInvalidConfig)
	}
	return nil
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (TASKORCH_<SECTION>_<KEY>, ANTHROPIC_API_KEY)
// 2. Project config (.taskorch.yaml in current directory or parent)
// 3. User config (~/.config/taskorch/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	return decode(v)
}

// LoadFromPath loads configuration from a single file over the defaults.
// Environment overrides still apply.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return decode(v)
}

// newViper returns a viper instance with defaults and env bindings.
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TASKORCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "TASKORCH_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Archive.Path = expandEnv(cfg.Archive.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return SaveTo(filepath.Join(userConfigDir, "config.yaml"), cfg)
}

// SaveTo writes cfg to path as YAML.
func SaveTo(path string, cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	for key, value := range settings(cfg) {
		v.Set(key, value)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// settings flattens cfg into viper keys. Durations are written as strings
// so they read back through the same decode hook.
func settings(cfg *Config) map[string]any {
	return map[string]any{
		"orchestrator.max_concurrent_tasks": cfg.Orchestrator.MaxConcurrentTasks,
		"orchestrator.tick_interval":        cfg.Orchestrator.TickInterval.String(),
		"orchestrator.wait_poll_interval":   cfg.Orchestrator.WaitPollInterval.String(),
		"orchestrator.default_wait_timeout": cfg.Orchestrator.DefaultWaitTimeout.String(),
		"orchestrator.history_limit":        cfg.Orchestrator.HistoryLimit,
		"orchestrator.metrics_window":       cfg.Orchestrator.MetricsWindow.String(),
		"orchestrator.event_buffer":         cfg.Orchestrator.EventBuffer,
		"agents.dev_matching":               cfg.Agents.DevMatching,
		"agents.code_review":                cfg.Agents.CodeReview,
		"agents.scheduling":                 cfg.Agents.Scheduling,
		"agents.fraud_detection":            cfg.Agents.FraudDetection,
		"agents.complaint_handling":         cfg.Agents.ComplaintHandling,
		"agents.score_updates":              cfg.Agents.ScoreUpdates,
		"agents.auto_escalation":            cfg.Agents.AutoEscalation,
		"ai_model_version":                  cfg.AIModelVersion,
		"archive.enabled":                   cfg.Archive.Enabled,
		"archive.driver":                    cfg.Archive.Driver,
		"archive.path":                      cfg.Archive.Path,
		"anthropic.api_key":                 cfg.Anthropic.APIKey,
		"anthropic.model":                   cfg.Anthropic.Model,
		"anthropic.max_tokens":              cfg.Anthropic.MaxTokens,
		"anthropic.use_bedrock":             cfg.Anthropic.UseBedrock,
		"anthropic.aws_region":              cfg.Anthropic.AWSRegion,
		"anthropic.aws_profile":             cfg.Anthropic.AWSProfile,
		"tui.refresh_rate":                  cfg.TUI.RefreshRate.String(),
		"debug.log_dir":                     cfg.Debug.LogDir,
	}
}

// Keys returns every configuration key in sorted order.
func Keys() []string {
	keys := make([]string, 0, 32)
	for k := range settings(Default()) {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()
	for key, value := range settings(d) {
		v.SetDefault(key, value)
	}
}

// getUserConfigDir returns the XDG config directory for taskorch.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "taskorch")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "taskorch")
	}
	return filepath.Join(home, ".config", "taskorch")
}

// findProjectConfig searches for .taskorch.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			return ""
		}
		cwd = parent
	}
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	sys := models.DefaultSystemConfig()
	return &Config{
		Orchestrator: OrchestratorConfig{
			MaxConcurrentTasks: sys.MaxConcurrentTasks,
			TickInterval:       100 * time.Millisecond,
			WaitPollInterval:   10 * time.Millisecond,
			DefaultWaitTimeout: 30 * time.Second,
			HistoryLimit:       10000,
			MetricsWindow:      24 * time.Hour,
			EventBuffer:        256,
		},
		Agents: AgentsConfig{
			DevMatching:       sys.EnableDevMatching,
			CodeReview:        sys.EnableCodeReview,
			Scheduling:        sys.EnableScheduling,
			FraudDetection:    sys.EnableFraudDetection,
			ComplaintHandling: sys.EnableComplaintHandling,
			ScoreUpdates:      sys.EnableScoreUpdates,
			AutoEscalation:    sys.AutoEscalationEnabled,
		},
		AIModelVersion: sys.AIModelVersion,
		Archive: ArchiveConfig{
			Enabled: false,
			Driver:  DriverModernc,
			Path:    filepath.Join(".taskorch", "archive.db"),
		},
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-5-20250929",
			MaxTokens: 1024,
		},
		TUI: TUIConfig{
			RefreshRate: 250 * time.Millisecond,
		},
	}
}
