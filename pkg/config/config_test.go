// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 BarCoin Systems

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barcoin/sentimo/pkg/coinwire"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sentimo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModeMock, cfg.Mode)
	assert.Equal(t, "sentimo.db", cfg.DatabasePath)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
mode: real
port: /dev/ttyACM0
baud: 115200
read_timeout: 250ms
backoff_max: 10s
db: /var/lib/sentimo/sessions.db
mock_weights:
  100: 5
  2000: 1
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeReal, cfg.Mode)
	assert.Equal(t, "/dev/ttyACM0", cfg.Port)
	assert.Equal(t, 115200, cfg.BaudRate)
	assert.Equal(t, 250*time.Millisecond, cfg.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.BackoffMax)
	assert.Equal(t, "/var/lib/sentimo/sessions.db", cfg.DatabasePath)
	assert.Equal(t, 5, cfg.MockWeights[coinwire.OnePiso])
	assert.Equal(t, 1, cfg.MockWeights[coinwire.TwentyPiso])

	// Settings the file does not mention keep their defaults.
	assert.Equal(t, 10, cfg.MaxAttempts)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "mode: real\nport: /dev/ttyACM0\nbaud: 9600\n")
	t.Setenv("SENTIMO_BAUD", "115200")
	t.Setenv("SENTIMO_DB", "env.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", cfg.Port)
	assert.Equal(t, 115200, cfg.BaudRate)
	assert.Equal(t, "env.db", cfg.DatabasePath)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Mode = "serial" }},
		{"real mode without endpoint", func(c *Config) { c.Mode = ModeReal }},
		{"zero read timeout", func(c *Config) { c.ReadTimeout = 0 }},
		{"zero baud", func(c *Config) { c.BaudRate = 0 }},
		{"negative error rate", func(c *Config) { c.MockErrorRate = -0.1 }},
		{"rates above one", func(c *Config) { c.MockErrorRate = 0.7; c.MockJamRate = 0.7 }},
		{"bad weight key", func(c *Config) { c.MockWeights = map[coinwire.Denomination]int{33: 1} }},
		{"negative weight", func(c *Config) { c.MockWeights = map[coinwire.Denomination]int{coinwire.OnePiso: -1} }},
		{"all-zero weights", func(c *Config) { c.MockWeights = map[coinwire.Denomination]int{coinwire.OnePiso: 0, coinwire.TenPiso: 0} }},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }},
		{"backoff max below initial", func(c *Config) { c.BackoffInitial = time.Second; c.BackoffMax = time.Millisecond }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRealModeAcceptsURLOnly(t *testing.T) {
	cfg := Default()
	cfg.Mode = ModeReal
	cfg.URL = "ws://bridge.local/coins"
	assert.NoError(t, cfg.Validate())
}
