// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 BarCoin Systems

package link

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// SerialConfig holds the parameters for a physical sensor link.
type SerialConfig struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
}

// SerialDriver reads newline-delimited frames from a serial port. The
// sensor head speaks 8N1 at a configurable baud rate (9600 by default,
// matching the shipped firmware).
type SerialDriver struct {
	cfg SerialConfig

	mu      sync.Mutex
	port    serial.Port
	pending []byte
}

// NewSerialDriver creates a driver for the given port. Missing config
// fields fall back to firmware defaults.
func NewSerialDriver(cfg SerialConfig) *SerialDriver {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = 9600
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	return &SerialDriver{cfg: cfg}
}

// Open opens the serial port and arms the read timeout.
func (d *SerialDriver) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port != nil {
		return nil
	}

	mode := &serial.Mode{
		BaudRate: d.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(d.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", d.cfg.Port, err)
	}
	if err := port.SetReadTimeout(d.cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return fmt.Errorf("set read timeout: %w", err)
	}

	d.port = port
	d.pending = d.pending[:0]
	return nil
}

// ReadFrame assembles bytes from the port into one line. Partial lines are
// carried across calls, so a frame split over multiple reads still comes
// out whole. Returns ErrTimeout when no complete line arrived in time.
func (d *SerialDriver) ReadFrame() ([]byte, error) {
	d.mu.Lock()
	port := d.port
	d.mu.Unlock()
	if port == nil {
		return nil, ErrNotOpen
	}

	deadline := time.Now().Add(d.cfg.ReadTimeout)
	buf := make([]byte, 256)
	for {
		if line, ok := d.takeLine(); ok {
			return line, nil
		}
		if !time.Now().Before(deadline) {
			return nil, ErrTimeout
		}

		// The port's own read timeout bounds this call.
		n, err := port.Read(buf)
		if n > 0 {
			d.mu.Lock()
			d.pending = append(d.pending, buf[:n]...)
			d.mu.Unlock()
		}
		if err != nil {
			return nil, fmt.Errorf("serial read: %w", err)
		}
	}
}

func (d *SerialDriver) takeLine() ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := bytes.IndexByte(d.pending, '\n')
	if i < 0 {
		return nil, false
	}
	line := append([]byte(nil), d.pending[:i]...)
	d.pending = d.pending[i+1:]
	return line, true
}

// Close releases the port. Safe to call twice and on never-opened drivers.
func (d *SerialDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	d.pending = nil
	return err
}
