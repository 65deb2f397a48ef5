package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Value returns the setting stored under a dot-notation key.
func Value(cfg *Config, key string) (any, bool) {
	v, ok := settings(cfg)[strings.ToLower(key)]
	return v, ok
}

// Set returns a copy of cfg with key set to value. The value is parsed
// with the same rules as the config file, so "true", "42" and "1m30s"
// are accepted where a bool, int or duration is expected.
func Set(cfg *Config, key, value string) (*Config, error) {
	key = strings.ToLower(key)
	current := settings(cfg)
	if _, ok := current[key]; !ok {
		return nil, fmt.Errorf("unknown configuration key: %s", key)
	}

	v := viper.New()
	for k, val := range current {
		v.Set(k, val)
	}
	v.Set(key, value)

	out := &Config{}
	if err := v.Unmarshal(out); err != nil {
		return nil, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
