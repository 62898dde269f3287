// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 BarCoin Systems

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/barcoin/sentimo/pkg/counter"
)

var countInterval time.Duration

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Run a counting session headless",
	Long: `Run the full pipeline: open the link, start a session immediately and
print the running tally at a fixed interval. Ctrl+C stops the session,
saves it to the database and prints the final record.`,
	RunE: runCount,
}

func init() {
	countCmd.Flags().DurationVar(&countInterval, "interval", time.Second, "Snapshot print interval")
	rootCmd.AddCommand(countCmd)
}

func runCount(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctr, db, connInfo, err := newCounter(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runDone := make(chan error, 1)
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { runDone <- ctr.Run(runCtx) }()

	sess, err := ctr.Issue(ctx, counter.CmdStart)
	if err != nil {
		cancel()
		<-runDone
		return err
	}

	fmt.Printf("Sentimo - Session Counter\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Session: %s\n", sess.ID)
	fmt.Printf("Press Ctrl+C to stop and save\n\n")

	ticker := time.NewTicker(countInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			snap := ctr.Snapshot()
			fmt.Printf("[%s] coins=%d value=%s rate=%.1f/min dropped=%d errors=%d\n",
				snap.ConnectionName,
				snap.Session.Tally.Coins,
				snap.Session.Tally.Pesos(),
				snap.CoinsPerMinute,
				snap.Metrics.DroppedInactive,
				snap.Metrics.SyntaxErrors+snap.Metrics.SemanticErrors)

		case <-ctx.Done():
			// The signal context is spent; give the stop command its own
			// deadline so a slow save cannot hang shutdown.
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			final, err := ctr.Issue(stopCtx, counter.CmdStop)
			stopCancel()
			if err != nil {
				log.Printf("stop: %v", err)
			}
			fmt.Printf("\n%s\n", describeSession(final))

			cancel()
			if err := <-runDone; err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		}
	}
}
