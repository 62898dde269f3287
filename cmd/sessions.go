// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 BarCoin Systems

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/barcoin/sentimo/pkg/store"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List saved counting sessions",
	RunE:  runSessions,
}

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "Maximum sessions to list")
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	db, err := store.Open(cfg.DatabasePath, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	sessions, err := db.ListSessions(context.Background(), sessionsLimit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("no sessions recorded")
		return nil
	}

	for _, sess := range sessions {
		fmt.Printf("%s  %s  %-9s coins=%-6d %s\n",
			sess.ID,
			sess.EndTime.Local().Format("2006-01-02 15:04:05"),
			sess.Status,
			sess.Tally.Coins,
			sess.Tally.Pesos())
	}
	return nil
}
