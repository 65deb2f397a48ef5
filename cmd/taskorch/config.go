package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskorch/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify taskorch configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/taskorch/config.yaml
Project-specific overrides can be placed in .taskorch.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		out := cmd.OutOrStdout()
		switch len(args) {
		case 0:
			displayAllConfig(out, cfg)
			return nil
		case 1:
			return displayConfigKey(out, cfg, args[0])
		default:
			return setConfigKey(out, cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(w io.Writer, cfg *config.Config) {
	for _, key := range config.Keys() {
		value, _ := configValue(cfg, key)
		fmt.Fprintf(w, "%s: %s\n", key, value)
	}
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(w io.Writer, cfg *config.Config, key string) error {
	value, err := configValue(cfg, key)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, value)
	return nil
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(w io.Writer, cfg *config.Config, key, value string) error {
	key = strings.ToLower(key)
	updated, err := config.Set(cfg, key, value)
	if err != nil {
		return err
	}
	// Keys picked up from the environment stay out of the file.
	if key != "anthropic.api_key" && updated.Anthropic.APIKey == os.Getenv("ANTHROPIC_API_KEY") {
		updated.Anthropic.APIKey = ""
	}

	if configPath != "" {
		err = config.SaveTo(configPath, updated)
	} else {
		err = config.Save(updated)
	}
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	if key == "anthropic.api_key" {
		value = config.MaskAPIKey(value)
	}
	fmt.Fprintf(w, "Set %s = %s\n", key, value)
	return nil
}

// configValue formats a configuration value, masking the API key.
func configValue(cfg *config.Config, key string) (string, error) {
	key = strings.ToLower(key)
	value, ok := config.Value(cfg, key)
	if !ok {
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
	if key == "anthropic.api_key" {
		s, _ := value.(string)
		return config.MaskAPIKey(s), nil
	}
	return fmt.Sprint(value), nil
}
