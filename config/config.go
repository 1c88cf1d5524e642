// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package config loads and validates the relay proxy's configuration: the
// origin it forwards to, its long-lived identity, the relays it speaks to,
// and the ambient logging/metrics settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the proxy's full runtime configuration.
type Config struct {
	Environment string `yaml:"environment" json:"environment"`

	// Destination is the origin URL prefix every reassembled request is
	// dispatched against. Must start with "http://" or "https://".
	Destination string `yaml:"destination" json:"destination"`
	// SecretKey is the proxy's long-lived secp256k1 secret, hex-encoded.
	SecretKey string `yaml:"secret_key" json:"secret_key"`
	// Relays is the list of relay URLs the pool connects to.
	Relays []string `yaml:"relays" json:"relays"`
	// AllowedRoutes is a list of glob patterns; a "!" prefix negates a
	// pattern, and the order of the list does not matter. See routegate.
	AllowedRoutes []string `yaml:"allowed_routes" json:"allowed_routes"`
	// Timeout bounds a single origin dispatch.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// NprofileMaxRelays caps how many connected, safe relays are embedded
	// in the logged nprofile identity hint.
	NprofileMaxRelays int `yaml:"nprofile_max_relays" json:"nprofile_max_relays"`

	Logging *LoggingConfig `yaml:"logging" json:"logging"`
	Metrics *MetricsConfig `yaml:"metrics" json:"metrics"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// MetricsConfig controls the Prometheus exposition server.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// LoadFromFile reads a config file, trying YAML then JSON.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile writes cfg back out, format chosen by path's extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.NprofileMaxRelays == 0 {
		cfg.NprofileMaxRelays = 8
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// ValidationIssue is one problem found by Validate. Level "error" means
// Load refuses to return the config; Load ignores "warn" issues.
type ValidationIssue struct {
	Field   string
	Message string
	Level   string
}

// Validate checks cfg for the invariants the pipeline depends on.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Destination == "" {
		issues = append(issues, ValidationIssue{"destination", "must be set", "error"})
	} else if !strings.HasPrefix(cfg.Destination, "http://") && !strings.HasPrefix(cfg.Destination, "https://") {
		issues = append(issues, ValidationIssue{"destination", "must start with http:// or https://", "error"})
	}

	if cfg.SecretKey == "" {
		issues = append(issues, ValidationIssue{"secret_key", "must be set", "error"})
	}

	if len(cfg.Relays) == 0 {
		issues = append(issues, ValidationIssue{"relays", "at least one relay is required", "error"})
	}

	if cfg.Timeout <= 0 {
		issues = append(issues, ValidationIssue{"timeout", "must be positive", "warn"})
	}
	if cfg.NprofileMaxRelays < 0 {
		issues = append(issues, ValidationIssue{"nprofile_max_relays", "must not be negative", "warn"})
	}

	return issues
}
