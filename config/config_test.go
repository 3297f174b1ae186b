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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFromFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: staging
relay:
  address: wss://relay.example.com
  project_id: abc123
keystore:
  backend: file
  directory: /tmp/wc-keys
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "staging", cfg.Environment)
	require.Equal(t, "wss://relay.example.com", cfg.Relay.Address)
	require.Equal(t, "abc123", cfg.Relay.ProjectID)
	require.Equal(t, "irn", cfg.Relay.Protocol) // default applied
	require.Equal(t, "file", cfg.KeyStore.Backend)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := &Config{
		Environment: "production",
		Relay:       &RelayConfig{Address: "wss://relay.walletconnect.org", ProjectID: "xyz"},
		Metrics:     &MetricsConfig{Enabled: true, Port: 9999},
	}
	require.NoError(t, SaveToFile(cfg, path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "production", loaded.Environment)
	require.Equal(t, "xyz", loaded.Relay.ProjectID)
	require.True(t, loaded.Metrics.Enabled)
	require.Equal(t, 9999, loaded.Metrics.Port)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("WC_TEST_RELAY_ADDR", "wss://from-env.example.com")

	cfg := &Config{Relay: &RelayConfig{Address: "${WC_TEST_RELAY_ADDR}"}}
	SubstituteEnvVarsInConfig(cfg)
	require.Equal(t, "wss://from-env.example.com", cfg.Relay.Address)

	cfg2 := &Config{Relay: &RelayConfig{Address: "${WC_UNSET_VAR:wss://fallback.example.com}"}}
	SubstituteEnvVarsInConfig(cfg2)
	require.Equal(t, "wss://fallback.example.com", cfg2.Relay.Address)
}

func TestApplyEnvironmentOverrides(t *testing.T) {
	t.Setenv("WC_RELAY_ADDRESS", "wss://override.example.com")
	t.Setenv("WC_METRICS_ENABLED", "false")

	cfg := &Config{
		Relay:   &RelayConfig{Address: "wss://original.example.com"},
		Metrics: &MetricsConfig{Enabled: true},
	}
	applyEnvironmentOverrides(cfg)
	require.Equal(t, "wss://override.example.com", cfg.Relay.Address)
	require.False(t, cfg.Metrics.Enabled)
}

func TestGetEnvironmentDefaultsToDevelopment(t *testing.T) {
	t.Setenv("WC_ENV", "")
	t.Setenv("ENVIRONMENT", "")
	require.Equal(t, "development", GetEnvironment())
	require.True(t, IsDevelopment())
	require.False(t, IsProduction())
}

func TestLoadFallsBackToDefaultedConfig(t *testing.T) {
	cfg, err := Load(LoaderOptions{ConfigDir: t.TempDir()})
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Environment)
}
