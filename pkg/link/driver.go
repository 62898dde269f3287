// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 BarCoin Systems

// Package link owns the connection to the coin sensor. A Driver supplies
// raw protocol frames from a real serial port, a WebSocket bridge, a
// recorded capture, or a simulator; the Supervisor wraps any Driver with
// reconnection and connection-state reporting.
package link

import (
	"errors"
	"time"
)

var (
	// ErrTimeout is returned by ReadFrame when no complete frame arrived
	// within the configured read timeout. It is not a failure; callers use
	// it to check for cancellation and try again.
	ErrTimeout = errors.New("link: read timed out")

	// ErrNotOpen is returned when reading from a driver that is not open.
	ErrNotOpen = errors.New("link: driver not open")
)

// DefaultReadTimeout bounds a single ReadFrame call when the caller does
// not configure one. A read must never block indefinitely; the supervisor
// relies on the bound to notice cancellation and silently dead links.
const DefaultReadTimeout = time.Second

// Driver is the contract every link variant implements.
//
// ReadFrame returns one newline-delimited frame with the terminator
// stripped. It blocks for at most roughly the configured read timeout and
// then returns ErrTimeout. io.EOF signals a cleanly ended stream (a replay
// file running out); any other error means the link is down. Close is
// idempotent and releases the underlying resource on every path.
type Driver interface {
	Open() error
	ReadFrame() ([]byte, error)
	Close() error
}
