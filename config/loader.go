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

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// LoaderOptions configures the configuration loader.
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default: ./config).
	ConfigDir string
	// Environment overrides automatic environment detection.
	Environment string
	// SkipEnvSubstitution disables ${VAR} substitution in string fields.
	SkipEnvSubstitution bool
}

// DefaultLoaderOptions returns default loader options.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{ConfigDir: "config"}
}

// Load loads configuration with automatic environment detection: it tries
// <dir>/<env>.yaml, then <dir>/default.yaml, then <dir>/config.yaml,
// falling back to an empty defaulted Config if none exist.
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	candidates := []string{
		filepath.Join(options.ConfigDir, fmt.Sprintf("%s.yaml", env)),
		filepath.Join(options.ConfigDir, "default.yaml"),
		filepath.Join(options.ConfigDir, "config.yaml"),
	}

	var cfg *Config
	var err error
	for _, path := range candidates {
		cfg, err = loadConfigFile(path)
		if err == nil {
			break
		}
	}
	if cfg == nil {
		cfg = &Config{}
		setDefaults(cfg)
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}

	if !options.SkipEnvSubstitution {
		SubstituteEnvVarsInConfig(cfg)
	}
	applyEnvironmentOverrides(cfg)

	return cfg, nil
}

func loadConfigFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config: file not found: %s", path)
	}
	return LoadFromFile(path)
}

// applyEnvironmentOverrides overrides the loaded config with process
// environment variables, the highest-priority layer. Callers always pass
// a cfg that has already been through setDefaults, so every section
// pointer below is non-nil.
func applyEnvironmentOverrides(cfg *Config) {
	if addr := os.Getenv("WC_RELAY_ADDRESS"); addr != "" {
		cfg.Relay.Address = addr
	}
	if pid := os.Getenv("WC_PROJECT_ID"); pid != "" {
		cfg.Relay.ProjectID = pid
	}
	if dir := os.Getenv("WC_KEYSTORE_DIR"); dir != "" {
		cfg.KeyStore.Directory = dir
	}
	if dsn := os.Getenv("WC_KEYSTORE_DSN"); dsn != "" {
		cfg.KeyStore.DSN = dsn
	}
	if level := os.Getenv("WC_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("WC_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
	switch os.Getenv("WC_METRICS_ENABLED") {
	case "true":
		cfg.Metrics.Enabled = true
	case "false":
		cfg.Metrics.Enabled = false
	}
}

// LoadForEnvironment loads configuration for a specific environment.
func LoadForEnvironment(environment string) (*Config, error) {
	return Load(LoaderOptions{ConfigDir: "config", Environment: environment})
}

// MustLoad loads configuration or panics on error.
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("config: failed to load: %v", err))
	}
	return cfg
}
