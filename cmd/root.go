// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 BarCoin Systems

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/barcoin/sentimo/pkg/config"
	"github.com/barcoin/sentimo/pkg/counter"
	"github.com/barcoin/sentimo/pkg/link"
	"github.com/barcoin/sentimo/pkg/session"
	"github.com/barcoin/sentimo/pkg/store"
)

var (
	cfgPath string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket bridge flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Source selection
	mockMode   bool
	replayPath string
	replaySpd  float64
	replayLoop bool

	dbPath string
)

var rootCmd = &cobra.Command{
	Use:   "sentimo",
	Short: "BAR-COIN session counter",
	Long: `Sentimo - coin counting pipeline for the BAR-COIN sensor head.

Reads coin-detection frames from the sensor, classifies them by
denomination and keeps live per-session tallies. Finalized sessions are
stored in a local SQLite database.

Connection modes:
  Serial:    --port /dev/ttyACM0 [--baud 9600]
  WebSocket: --url ws://host/path [--username user]
  Simulator: --mock
  Replay:    --replay capture.coins [--replay-speed 2] [--replay-loop]

For WebSocket authentication, the password is read from the
SENTIMO_PASSWORD environment variable, or prompted interactively if not
set. The --password flag is intentionally not provided to avoid leaking
credentials in shell history.`,
	Version: "1.2.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "YAML config file")

	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 0, "Baud rate (serial only)")

	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket bridge URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().BoolVar(&mockMode, "mock", false, "Use the simulated sensor")
	rootCmd.PersistentFlags().StringVar(&replayPath, "replay", "", "Replay a frame capture instead of a live link")
	rootCmd.PersistentFlags().Float64Var(&replaySpd, "replay-speed", 1.0, "Replay speed multiplier (0 = as fast as possible)")
	rootCmd.PersistentFlags().BoolVar(&replayLoop, "replay-loop", false, "Loop replay at end of capture")

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Session database path")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig builds the effective configuration: file and environment
// first, command-line flags on top.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = portName
		cfg.Mode = config.ModeReal
	}
	if flags.Changed("baud") {
		cfg.BaudRate = baudRate
	}
	if flags.Changed("url") {
		cfg.URL = wsURL
		cfg.Mode = config.ModeReal
	}
	if flags.Changed("username") {
		cfg.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.InsecureSkipVerify = wsNoSSLVerify
	}
	if flags.Changed("mock") && mockMode {
		cfg.Mode = config.ModeMock
	}
	if flags.Changed("db") {
		cfg.DatabasePath = dbPath
	}

	return cfg, cfg.Validate()
}

// newDriver picks the link variant: replay wins, then websocket, then
// mock, then serial.
func newDriver(cfg config.Config) (link.Driver, string, error) {
	if replayPath != "" {
		drv := link.NewReplayDriver(link.ReplayConfig{
			Path:        replayPath,
			Speed:       replaySpd,
			Loop:        replayLoop,
			ReadTimeout: cfg.ReadTimeout,
		})
		return drv, fmt.Sprintf("Replay: %s (x%g)", replayPath, replaySpd), nil
	}

	if cfg.Mode == config.ModeMock {
		drv := link.NewMockDriver(link.MockConfig{
			MeanInterval: cfg.MockMeanInterval,
			ReadTimeout:  cfg.ReadTimeout,
			Weights:      cfg.MockWeights,
			ErrorRate:    cfg.MockErrorRate,
			JamRate:      cfg.MockJamRate,
			Seed:         cfg.MockSeed,
		})
		return drv, "Mock sensor", nil
	}

	if cfg.URL != "" {
		password := ""
		if cfg.Username != "" {
			var err error
			password, err = getPassword()
			if err != nil {
				return nil, "", err
			}
		}
		drv := link.NewWSDriver(link.WSConfig{
			URL:                cfg.URL,
			Username:           cfg.Username,
			Password:           password,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			ReadTimeout:        cfg.ReadTimeout,
		})
		return drv, fmt.Sprintf("WebSocket: %s", cfg.URL), nil
	}

	drv := link.NewSerialDriver(link.SerialConfig{
		Port:        cfg.Port,
		BaudRate:    cfg.BaudRate,
		ReadTimeout: cfg.ReadTimeout,
	})
	return drv, fmt.Sprintf("Serial: %s @ %d baud", cfg.Port, cfg.BaudRate), nil
}

// newCounter wires the full pipeline with the session store attached.
// The returned store must be closed by the caller.
func newCounter(cfg config.Config) (*counter.Counter, *store.SQLite, string, error) {
	drv, connInfo, err := newDriver(cfg)
	if err != nil {
		return nil, nil, "", err
	}

	db, err := store.Open(cfg.DatabasePath, nil)
	if err != nil {
		return nil, nil, "", err
	}

	ctr := counter.New(counter.Config{
		Driver: drv,
		Saver:  db,
		Backoff: link.BackoffConfig{
			Initial:     cfg.BackoffInitial,
			Max:         cfg.BackoffMax,
			MaxAttempts: cfg.MaxAttempts,
		},
	})
	return ctr, db, connInfo, nil
}

// getPassword retrieves the bridge password from the environment or
// prompts the user without echo.
func getPassword() (string, error) {
	if pw := os.Getenv("SENTIMO_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// describeSession renders a closed session for terminal output.
func describeSession(sess session.Session) string {
	if sess.ID == "" {
		return "no session"
	}
	return fmt.Sprintf("session %s [%s] coins=%d value=%s duration=%s",
		sess.ID, sess.Status, sess.Tally.Coins, sess.Tally.Pesos(),
		sess.EndTime.Sub(sess.StartTime).Round(time.Millisecond))
}
