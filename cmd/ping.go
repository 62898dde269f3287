// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 BarCoin Systems

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/barcoin/sentimo/pkg/link"
)

var pingTimeout time.Duration

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test the sensor link",
	Long: `Open the configured link and wait for one frame of any type. Reports
how long the first frame took, or fails if none arrived in time.`,
	RunE: runPing,
}

func init() {
	pingCmd.Flags().DurationVar(&pingTimeout, "timeout", 10*time.Second, "How long to wait for a frame")
	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	drv, connInfo, err := newDriver(cfg)
	if err != nil {
		return err
	}
	defer drv.Close()

	started := time.Now()
	if err := drv.Open(); err != nil {
		return err
	}
	opened := time.Since(started)

	deadline := time.Now().Add(pingTimeout)
	for {
		frame, err := drv.ReadFrame()
		if errors.Is(err, link.ErrTimeout) {
			if time.Now().After(deadline) {
				return fmt.Errorf("no frame from %s within %s", connInfo, pingTimeout)
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("stream ended before any frame arrived")
		}
		if err != nil {
			return err
		}

		fmt.Printf("%s: link up (open %s, first frame after %s, %d bytes)\n",
			connInfo, opened.Round(time.Millisecond),
			time.Since(started).Round(time.Millisecond), len(frame))
		return nil
	}
}
