// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 BarCoin Systems

package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// ConnectionState is the supervisor's externally visible link state.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateErrored
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// StateChange is one supervisor transition. Every transition is published;
// none are swallowed.
type StateChange struct {
	State   ConnectionState
	Attempt int   // connect attempt number, 0 outside a retry cycle
	Err     error // cause, nil for clean transitions
}

// BackoffConfig bounds the reconnect policy.
type BackoffConfig struct {
	Initial     time.Duration // first retry delay, doubles per attempt
	Max         time.Duration // delay ceiling
	MaxAttempts int           // consecutive failures before giving up
}

// ErrLinkExhausted is returned by Run after MaxAttempts consecutive
// connect failures. The link stays Errored; recovery needs operator
// intervention and a fresh Run.
var ErrLinkExhausted = errors.New("link: retry budget exhausted")

// Supervisor owns a Driver's lifecycle: it connects, reads frames in a
// loop, reconnects with exponential backoff on failure, and reports every
// state transition. Frames are delivered in arrival order on a channel.
type Supervisor struct {
	drv     Driver
	backoff BackoffConfig
	logger  *slog.Logger

	frames chan []byte
	states chan StateChange
	state  atomic.Int32
}

// NewSupervisor wraps drv with reconnection handling.
func NewSupervisor(drv Driver, backoff BackoffConfig, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if backoff.Initial <= 0 {
		backoff.Initial = 500 * time.Millisecond
	}
	if backoff.Max <= 0 {
		backoff.Max = 30 * time.Second
	}
	if backoff.MaxAttempts <= 0 {
		backoff.MaxAttempts = 10
	}
	return &Supervisor{
		drv:     drv,
		backoff: backoff,
		logger:  logger,
		frames:  make(chan []byte, 64),
		states:  make(chan StateChange, 16),
	}
}

// Frames delivers raw frames in arrival order. Closed when Run returns.
func (s *Supervisor) Frames() <-chan []byte {
	return s.frames
}

// States delivers every state transition. Closed when Run returns.
func (s *Supervisor) States() <-chan StateChange {
	return s.states
}

// State returns the current connection state without blocking.
func (s *Supervisor) State() ConnectionState {
	return ConnectionState(s.state.Load())
}

// Run drives the connect/read/reconnect cycle until ctx is cancelled, the
// stream ends cleanly (replay EOF, returns nil), or the retry budget is
// spent (returns ErrLinkExhausted).
func (s *Supervisor) Run(ctx context.Context) error {
	defer close(s.frames)
	defer close(s.states)
	defer func() { _ = s.drv.Close() }()

	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			s.transition(ctx, StateChange{State: StateDisconnected})
			return err
		}

		attempt++
		s.transition(ctx, StateChange{State: StateConnecting, Attempt: attempt})

		if err := s.drv.Open(); err != nil {
			s.logger.Warn("link connect failed", "attempt", attempt, "error", err)
			if attempt >= s.backoff.MaxAttempts {
				s.transition(ctx, StateChange{State: StateErrored, Attempt: attempt, Err: ErrLinkExhausted})
				return ErrLinkExhausted
			}
			s.transition(ctx, StateChange{State: StateDisconnected, Attempt: attempt, Err: err})
			if !s.sleep(ctx, s.delay(attempt)) {
				return ctx.Err()
			}
			continue
		}

		s.transition(ctx, StateChange{State: StateConnected, Attempt: attempt})
		s.logger.Info("link connected", "attempt", attempt)
		attempt = 0

		err := s.readLoop(ctx)
		_ = s.drv.Close()

		switch {
		case errors.Is(err, io.EOF):
			s.logger.Info("link stream ended")
			s.transition(ctx, StateChange{State: StateDisconnected})
			return nil
		case ctx.Err() != nil:
			s.transition(ctx, StateChange{State: StateDisconnected})
			return ctx.Err()
		default:
			s.logger.Warn("link read failed", "error", err)
			s.transition(ctx, StateChange{State: StateErrored, Err: err})
			if !s.sleep(ctx, s.delay(1)) {
				return ctx.Err()
			}
		}
	}
}

// readLoop pulls frames until the link fails or ctx is cancelled. Timeout
// reads carry no frame but give the loop a bounded-latency cancellation
// check, which is what lets stop commands take effect within one read
// timeout even while a physical read is in flight.
func (s *Supervisor) readLoop(ctx context.Context) error {
	for {
		frame, err := s.drv.ReadFrame()
		if errors.Is(err, ErrTimeout) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		if err != nil {
			return err
		}

		select {
		case s.frames <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Supervisor) transition(ctx context.Context, sc StateChange) {
	s.state.Store(int32(sc.State))
	select {
	case s.states <- sc:
	case <-ctx.Done():
		// Cancelled consumers may have stopped draining; deliver if the
		// buffer allows, otherwise the final states are lost with them.
		select {
		case s.states <- sc:
		default:
		}
	}
}

func (s *Supervisor) delay(attempt int) time.Duration {
	d := s.backoff.Initial
	for i := 1; i < attempt && d < s.backoff.Max; i++ {
		d *= 2
	}
	if d > s.backoff.Max {
		d = s.backoff.Max
	}
	return d
}

func (s *Supervisor) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
