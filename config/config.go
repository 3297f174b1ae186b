// Copyright (C) 2025 walletmesh
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

// Package config provides layered configuration for a wc-core process:
// YAML/JSON file, environment-variable substitution, then explicit
// environment-variable overrides, in that order of increasing priority.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure for a dApp or wallet process
// built on wc-core.
type Config struct {
	Environment string          `yaml:"environment" json:"environment"`
	Relay       *RelayConfig    `yaml:"relay" json:"relay"`
	Project     *ProjectConfig  `yaml:"project" json:"project"`
	KeyStore    *KeyStoreConfig `yaml:"keystore" json:"keystore"`
	Logging     *LoggingConfig  `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig  `yaml:"metrics" json:"metrics"`
	Health      *HealthConfig   `yaml:"health" json:"health"`
}

// RelayConfig configures the relay transport (spec.md §4.3/§6).
type RelayConfig struct {
	Address        string        `yaml:"address" json:"address"`
	ProjectID      string        `yaml:"project_id" json:"project_id"`
	Protocol       string        `yaml:"protocol" json:"protocol"` // always "irn" in this version
	DialTimeout    time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	AuthTokenTTL   time.Duration `yaml:"auth_token_ttl" json:"auth_token_ttl"`
}

// ProjectConfig identifies the application to the relay's auth JWT (§6).
type ProjectConfig struct {
	Name       string `yaml:"name" json:"name"`
	SigningKeyEnv string `yaml:"signing_key_env" json:"signing_key_env"`
}

// KeyStoreConfig configures where pairing/session key material persists
// (spec.md §4.1/§4.2).
type KeyStoreConfig struct {
	Backend   string `yaml:"backend" json:"backend"` // memory, file, postgres
	Directory string `yaml:"directory" json:"directory"`
	DSN       string `yaml:"dsn" json:"dsn"` // postgres connection string, when backend=postgres
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// HealthConfig configures the health-check HTTP endpoint.
type HealthConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// LoadFromFile loads configuration from a YAML or JSON file, trying YAML
// first.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("config: parse file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile writes cfg to path, choosing JSON or YAML by extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error
	if len(path) > 5 && path[len(path)-5:] == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write file: %w", err)
	}
	return nil
}

// setDefaults fills in the values a wc-core process needs even when a
// loaded config file is empty or partial. Every section pointer is
// allocated here if absent, so callers and env-var overrides never have
// to nil-check cfg.Relay/.Project/etc.
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Relay == nil {
		cfg.Relay = &RelayConfig{}
	}
	if cfg.Project == nil {
		cfg.Project = &ProjectConfig{}
	}
	if cfg.KeyStore == nil {
		cfg.KeyStore = &KeyStoreConfig{}
	}
	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Health == nil {
		cfg.Health = &HealthConfig{}
	}

	if cfg.Relay.Address == "" {
		cfg.Relay.Address = "wss://relay.walletconnect.org"
	}
	if cfg.Relay.Protocol == "" {
		cfg.Relay.Protocol = "irn"
	}
	if cfg.Relay.DialTimeout == 0 {
		cfg.Relay.DialTimeout = 10 * time.Second
	}
	if cfg.Relay.AuthTokenTTL == 0 {
		cfg.Relay.AuthTokenTTL = time.Hour
	}

	if cfg.KeyStore.Backend == "" {
		cfg.KeyStore.Backend = "memory"
	}
	if cfg.KeyStore.Directory == "" {
		cfg.KeyStore.Directory = ".wc-core/keys"
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

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Health.Port == 0 {
		cfg.Health.Port = 8090
	}
	if cfg.Health.Path == "" {
		cfg.Health.Path = "/healthz"
	}
}
