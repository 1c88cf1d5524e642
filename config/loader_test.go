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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFallsBackToDefaultsWhenNoFileMatches(t *testing.T) {
	cfg, err := Load(LoaderOptions{
		ConfigDir:      t.TempDir(),
		Environment:    "development",
		SkipValidation: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.NotNil(t, cfg.Logging)
}

func TestLoadSetsEnvironmentField(t *testing.T) {
	for _, env := range []string{"development", "staging", "production", "local"} {
		t.Run(env, func(t *testing.T) {
			cfg, err := Load(LoaderOptions{
				ConfigDir:      t.TempDir(),
				Environment:    env,
				SkipValidation: true,
			})
			require.NoError(t, err)
			assert.Equal(t, env, cfg.Environment)
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	os.Setenv("RELAYPROXY_DESTINATION", "https://override.example.com")
	os.Setenv("RELAYPROXY_LOG_LEVEL", "debug")
	defer os.Unsetenv("RELAYPROXY_DESTINATION")
	defer os.Unsetenv("RELAYPROXY_LOG_LEVEL")

	cfg, err := Load(LoaderOptions{
		ConfigDir:      t.TempDir(),
		Environment:    "development",
		SkipValidation: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "https://override.example.com", cfg.Destination)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadWithCustomConfigDirFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.yaml")

	testConfig := `
environment: test
destination: "https://origin.example.com"
secret_key: "deadbeef"
relays:
  - "wss://relay.one/"
logging:
  level: info
  format: json
`
	require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0o644))

	cfg, err := Load(LoaderOptions{
		ConfigDir:   tmpDir,
		Environment: "test",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://origin.example.com", cfg.Destination)
	assert.Equal(t, []string{"wss://relay.one/"}, cfg.Relays)
}

func TestLoadFailsValidationOnMissingDestination(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("environment: test\n"), 0o644))

	_, err := Load(LoaderOptions{ConfigDir: tmpDir, Environment: "test"})
	assert.Error(t, err)
}

func TestDefaultLoaderOptions(t *testing.T) {
	opts := DefaultLoaderOptions()
	assert.Equal(t, "config", opts.ConfigDir)
	assert.False(t, opts.SkipEnvSubstitution)
	assert.False(t, opts.SkipValidation)
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8, cfg.NprofileMaxRelays)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"wss://a/", "wss://b/"}, splitAndTrim("wss://a/, wss://b/"))
	assert.Nil(t, splitAndTrim(""))
}

func TestMustLoadPanicsOnValidationFailure(t *testing.T) {
	tmpDir := t.TempDir()
	assert.Panics(t, func() {
		MustLoad(LoaderOptions{ConfigDir: tmpDir, Environment: "test"})
	})
}
