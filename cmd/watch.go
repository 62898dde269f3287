// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 BarCoin Systems

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/barcoin/sentimo/pkg/coinwire"
	"github.com/barcoin/sentimo/pkg/link"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Display decoded coin events in human-readable format",
	Long: `Continuously decode and display sensor frames as they arrive.

Each coin detection is shown with its timestamp, denomination and sensor;
rejected frames are shown with their failure class. No session is opened
and nothing is counted or stored.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	drv, connInfo, err := newDriver(cfg)
	if err != nil {
		return err
	}
	defer drv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := drv.Open(); err != nil {
		return err
	}

	fmt.Printf("Sentimo - Event Watch\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	for {
		frame, err := drv.ReadFrame()
		if errors.Is(err, link.ErrTimeout) {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			log.Printf("end of stream")
			return nil
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		ev, err := coinwire.DecodeFrame(frame)
		switch {
		case err != nil:
			fmt.Printf("[REJECT] %v\n", err)
		case ev == nil:
			// non-coin frame
		default:
			fmt.Printf("[%s] %s (%s) sensor=%d\n",
				ev.Timestamp.Format("15:04:05.000"),
				ev.Denomination, ev.Denomination.Name(), ev.SensorID)
		}
	}
}
