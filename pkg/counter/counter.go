// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 BarCoin Systems

// Package counter is the boundary consumers call: it wires the link
// supervisor, the frame codec and the session aggregator into one
// pipeline, serializes commands against event application, and serves
// consistent snapshots and a push feed.
package counter

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/barcoin/sentimo/pkg/coinwire"
	"github.com/barcoin/sentimo/pkg/link"
	"github.com/barcoin/sentimo/pkg/session"
)

// Snapshot is the full consumer-facing state: link, session and metrics in
// one consistent read.
type Snapshot struct {
	Connection link.ConnectionState `json:"-"`

	// ConnectionName is Connection rendered for JSON boundaries.
	ConnectionName string `json:"connection"`

	// LinkError carries the terminal link condition, if any, e.g. an
	// exhausted retry budget waiting for operator intervention.
	LinkError string `json:"link_error,omitempty"`

	session.Snapshot
}

// Counter runs the device-ingestion and session-aggregation pipeline.
// One arbiter goroutine (Run) owns frame application, connection-state
// bookkeeping and command execution, so commands and events are applied
// in a single serialized order.
type Counter struct {
	sup    *link.Supervisor
	agg    *session.Aggregator
	logger *slog.Logger

	cmds chan cmdRequest
	done chan struct{}
	hub  *hub

	mu      sync.Mutex
	linkErr error
}

type cmdRequest struct {
	cmd   Command
	ctx   context.Context
	reply chan cmdResult
}

type cmdResult struct {
	session session.Session
	err     error
}

// Config assembles a Counter's collaborators.
type Config struct {
	Driver  link.Driver
	Saver   session.Saver // nil disables persistence
	Backoff link.BackoffConfig
	Logger  *slog.Logger
}

// New builds the pipeline. Nothing runs until Run is called.
func New(cfg Config) *Counter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Counter{
		sup:    link.NewSupervisor(cfg.Driver, cfg.Backoff, logger),
		agg:    session.NewAggregator(cfg.Saver, logger),
		logger: logger,
		cmds:   make(chan cmdRequest),
		done:   make(chan struct{}),
		hub:    newHub(),
	}
}

// ErrStopped is returned by Issue when the pipeline is no longer running.
var ErrStopped = errors.New("counter: pipeline stopped")

// Run drives the pipeline until ctx is cancelled. Frames, link state
// changes and commands are all handled here, one at a time, in arrival
// order; that single ordering is what resolves the pause race (an event
// arriving the instant pause is requested lands strictly before or after
// the pause, never interleaved).
//
// When the link gives up (ErrLinkExhausted) the pipeline keeps serving
// commands and snapshots so the open session can still be stopped and
// saved; only ctx cancellation ends Run.
func (c *Counter) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.hub.closeAll()
	defer close(c.done)

	supDone := make(chan error, 1)
	go func() { supDone <- c.sup.Run(ctx) }()

	frames := c.sup.Frames()
	states := c.sup.States()

	for {
		select {
		case <-ctx.Done():
			if supDone != nil {
				<-supDone
			}
			return ctx.Err()

		case req := <-c.cmds:
			res := c.execute(req.ctx, req.cmd)
			req.reply <- res
			c.hub.publish(c.Snapshot())

		case frame, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			c.ingest(frame)
			c.hub.publish(c.Snapshot())

		case sc, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			c.logger.Debug("link state", "state", sc.State.String(), "attempt", sc.Attempt)
			c.hub.publish(c.Snapshot())

		case err := <-supDone:
			supDone = nil
			if err != nil && !errors.Is(err, context.Canceled) {
				c.setLinkErr(err)
				c.logger.Error("link supervisor stopped", "error", err)
			}
			c.hub.publish(c.Snapshot())
		}
	}
}

// ingest decodes one frame and routes it by outcome.
func (c *Counter) ingest(frame []byte) {
	ev, err := coinwire.DecodeFrame(frame)
	switch {
	case err != nil:
		c.agg.RecordDecodeError(err)
		c.logger.Debug("frame rejected", "error", err)
	case ev == nil:
		c.agg.RecordIgnored()
	default:
		c.agg.Apply(ev)
	}
}

func (c *Counter) execute(ctx context.Context, cmd Command) cmdResult {
	switch cmd {
	case CmdStart:
		sess, err := c.agg.Start()
		return cmdResult{session: sess, err: err}
	case CmdPause:
		return cmdResult{err: c.agg.Pause()}
	case CmdResume:
		return cmdResult{err: c.agg.Resume()}
	case CmdReset:
		return cmdResult{err: c.agg.Reset()}
	case CmdStop:
		sess, err := c.agg.Stop(ctx)
		return cmdResult{session: sess, err: err}
	case CmdEmergencyStop:
		sess, err := c.agg.EmergencyStop(ctx)
		return cmdResult{session: sess, err: err}
	default:
		return cmdResult{err: &session.InvalidTransitionError{Command: cmd.String()}}
	}
}

// Issue submits one command to the arbiter and waits for its result.
// Stop and EmergencyStop return the closed session record.
func (c *Counter) Issue(ctx context.Context, cmd Command) (session.Session, error) {
	req := cmdRequest{cmd: cmd, ctx: ctx, reply: make(chan cmdResult, 1)}
	select {
	case c.cmds <- req:
	case <-c.done:
		return session.Session{}, ErrStopped
	case <-ctx.Done():
		return session.Session{}, ctx.Err()
	}
	// The arbiter replies before returning to its select loop, so once the
	// send lands the reply always arrives.
	select {
	case res := <-req.reply:
		return res.session, res.err
	case <-ctx.Done():
		return session.Session{}, ctx.Err()
	}
}

// Snapshot returns the latest consistent pipeline state without blocking
// on the producer.
func (c *Counter) Snapshot() Snapshot {
	state := c.sup.State()
	snap := Snapshot{
		Connection:     state,
		ConnectionName: state.String(),
		Snapshot:       c.agg.Snapshot(),
	}
	c.mu.Lock()
	if c.linkErr != nil {
		snap.LinkError = c.linkErr.Error()
	}
	c.mu.Unlock()
	return snap
}

// Subscribe returns a push feed of snapshots. Delivery is latest-wins per
// subscriber; cancel stops this feed without touching others.
func (c *Counter) Subscribe() (<-chan Snapshot, func()) {
	return c.hub.subscribe()
}

func (c *Counter) setLinkErr(err error) {
	c.mu.Lock()
	c.linkErr = err
	c.mu.Unlock()
}
