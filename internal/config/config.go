// Package config loads the optional YAML run configuration.
//
// Everything in the file can also be expressed as CLI flags; the file
// exists so that operators can check the tracked-table set into the
// application's repository and re-run `retrofeed track` after each
// migration. Flags take precedence over the file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the YAML run configuration.
type Config struct {
	// Tables restricts tracking to an explicit table set. Empty means
	// every user table.
	Tables []string `yaml:"tables,omitempty"`

	// Autoindex controls creation of the changefeed query indices.
	// Unset means enabled.
	Autoindex *bool `yaml:"autoindex,omitempty"`
}

// Load reads and parses a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// AutoindexEnabled resolves the Autoindex default.
func (c *Config) AutoindexEnabled() bool {
	if c == nil || c.Autoindex == nil {
		return true
	}
	return *c.Autoindex
}
