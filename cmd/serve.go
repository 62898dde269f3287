// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 BarCoin Systems

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/barcoin/sentimo/pkg/counter"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the pipeline over WebSocket",
	Long: `Run the pipeline and serve it to dashboard clients.

GET /snapshot returns the current state as JSON. GET /ws upgrades to a
WebSocket that streams a snapshot on every change; text messages sent by
the client ("start", "pause", "resume", "reset", "stop",
"emergency_stop") are issued as commands.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "HTTP listen address")
	rootCmd.AddCommand(serveCmd)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboards are served from anywhere on the bar's LAN.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func runServe(cmd *cobra.Command, args []string) error {
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
	go func() { runDone <- ctr.Run(ctx) }()

	mux := http.NewServeMux()
	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, ctr.Snapshot())
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWS(ctx, ctr, w, r)
	})

	server := &http.Server{Addr: serveAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Sentimo - Pipeline Server\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Listening on %s\n", serveAddr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-runDone; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write snapshot: %v", err)
	}
}

// serveWS streams snapshots to one dashboard client and relays its
// commands. Each client gets its own subscription; closing the socket
// cancels it without touching other clients.
func serveWS(ctx context.Context, ctr *counter.Counter, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade: %v", err)
		return
	}
	defer conn.Close()

	snaps, cancel := ctr.Subscribe()
	defer cancel()

	// Writer: push snapshots until the subscription or context ends.
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for {
			select {
			case snap, ok := <-snaps:
				if !ok {
					return
				}
				if err := conn.WriteJSON(snap); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Reader: treat text messages as commands.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		cmd, err := counter.ParseCommand(string(data))
		if err != nil {
			_ = conn.WriteJSON(map[string]string{"error": err.Error()})
			continue
		}
		if _, err := ctr.Issue(r.Context(), cmd); err != nil {
			_ = conn.WriteJSON(map[string]string{"error": err.Error()})
		}
	}
	<-writeDone
}
