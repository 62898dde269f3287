// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 BarCoin Systems

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/barcoin/sentimo/pkg/link"
)

var recordOut string

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Capture raw frames to a file for later replay",
	Long: `Read frames from the configured link and append them, with arrival
timestamps, to a capture file. Captures play back through --replay with
their original timing.`,
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().StringVarP(&recordOut, "out", "o", "capture.coins", "Capture file path")
	rootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	drv, connInfo, err := newDriver(cfg)
	if err != nil {
		return err
	}

	rec, err := link.NewRecorder(drv, recordOut, nil)
	if err != nil {
		_ = drv.Close()
		return err
	}
	defer rec.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rec.Open(); err != nil {
		return err
	}

	fmt.Printf("Sentimo - Frame Capture\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Writing to: %s\n", recordOut)
	fmt.Printf("Press Ctrl+C to finish\n\n")

	for {
		_, err := rec.ReadFrame()
		if errors.Is(err, link.ErrTimeout) {
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			break
		}
	}

	fmt.Printf("captured %d frames to %s\n", rec.Frames(), recordOut)
	return nil
}
