// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 BarCoin Systems

// Package config loads the tool's settings. Precedence, lowest to
// highest: built-in defaults, an optional YAML file, environment
// variables. Configuration is read once at startup; nothing hot-reloads.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/barcoin/sentimo/pkg/coinwire"
)

// Mode selects the link variant.
type Mode string

const (
	ModeReal Mode = "real"
	ModeMock Mode = "mock"
)

// Config is every tunable the pipeline reads at startup.
type Config struct {
	Mode Mode `env:"SENTIMO_MODE" yaml:"mode"`

	// Serial link.
	Port        string        `env:"SENTIMO_PORT" yaml:"port"`
	BaudRate    int           `env:"SENTIMO_BAUD" yaml:"baud"`
	ReadTimeout time.Duration `env:"SENTIMO_READ_TIMEOUT" yaml:"read_timeout"`

	// WebSocket bridge. A non-empty URL takes precedence over Port.
	URL                string `env:"SENTIMO_URL" yaml:"url"`
	Username           string `env:"SENTIMO_USERNAME" yaml:"username"`
	InsecureSkipVerify bool   `env:"SENTIMO_NO_SSL_VERIFY" yaml:"no_ssl_verify"`

	// Mock sensor.
	MockMeanInterval time.Duration                 `env:"SENTIMO_MOCK_INTERVAL" yaml:"mock_interval"`
	MockErrorRate    float64                       `env:"SENTIMO_MOCK_ERROR_RATE" yaml:"mock_error_rate"`
	MockJamRate      float64                       `env:"SENTIMO_MOCK_JAM_RATE" yaml:"mock_jam_rate"`
	MockSeed         int64                         `env:"SENTIMO_MOCK_SEED" yaml:"mock_seed"`
	MockWeights      map[coinwire.Denomination]int `env:"-" yaml:"mock_weights"`

	// Reconnection policy.
	BackoffInitial time.Duration `env:"SENTIMO_BACKOFF_INITIAL" yaml:"backoff_initial"`
	BackoffMax     time.Duration `env:"SENTIMO_BACKOFF_MAX" yaml:"backoff_max"`
	MaxAttempts    int           `env:"SENTIMO_MAX_ATTEMPTS" yaml:"max_attempts"`

	// Session store.
	DatabasePath string `env:"SENTIMO_DB" yaml:"db"`
}

// Default returns the built-in settings, matching the shipped firmware
// and a hardware-free first run.
func Default() Config {
	return Config{
		Mode:             ModeMock,
		BaudRate:         9600,
		ReadTimeout:      time.Second,
		MockMeanInterval: 500 * time.Millisecond,
		MockErrorRate:    0.01,
		MockJamRate:      0.005,
		BackoffInitial:   500 * time.Millisecond,
		BackoffMax:       30 * time.Second,
		MaxAttempts:      10,
		DatabasePath:     "sentimo.db",
	}
}

// Load builds the effective configuration. path may be empty; a missing
// explicit file is an error, unlike a missing environment variable.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeReal, ModeMock:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModeReal, ModeMock, c.Mode)
	}
	if c.Mode == ModeReal && c.Port == "" && c.URL == "" {
		return fmt.Errorf("real mode needs a serial port or a websocket url")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("baud rate must be positive")
	}
	if c.MockErrorRate < 0 || c.MockErrorRate > 1 {
		return fmt.Errorf("mock error rate must be within [0, 1]")
	}
	if c.MockJamRate < 0 || c.MockJamRate > 1 {
		return fmt.Errorf("mock jam rate must be within [0, 1]")
	}
	if c.MockErrorRate+c.MockJamRate > 1 {
		return fmt.Errorf("mock error and jam rates must sum to at most 1")
	}
	if len(c.MockWeights) > 0 {
		positive := false
		for denom, weight := range c.MockWeights {
			if !denom.Valid() {
				return fmt.Errorf("mock weight for unrecognized denomination %d", int64(denom))
			}
			if weight < 0 {
				return fmt.Errorf("mock weight for %s must not be negative", denom)
			}
			if weight > 0 {
				positive = true
			}
		}
		if !positive {
			return fmt.Errorf("mock weights must include at least one positive value")
		}
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	if c.BackoffInitial <= 0 || c.BackoffMax < c.BackoffInitial {
		return fmt.Errorf("backoff delays must be positive and max >= initial")
	}
	return nil
}
