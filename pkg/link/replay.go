// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 BarCoin Systems

package link

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// ReplayConfig tunes playback of a frame capture.
type ReplayConfig struct {
	Path string

	// Speed is a playback multiplier: 1.0 preserves recorded timing,
	// 2.0 plays twice as fast, 0 plays as fast as the reader can pull.
	Speed float64

	// Loop restarts playback at EOF instead of ending the stream.
	Loop bool

	ReadTimeout time.Duration
}

// ReplayDriver plays a recorded capture back through the Driver contract,
// preserving the recorded inter-arrival gaps. At the end of the capture it
// reports io.EOF, which the supervisor treats as a clean end of stream.
type ReplayDriver struct {
	cfg ReplayConfig

	mu      sync.Mutex
	file    *os.File
	dec     *cbor.Decoder
	staged  *frameRecord // decoded but not yet due
	dueAt   time.Time
	lastAt  int64 // recorded timestamp of the previous frame
	started bool
}

// NewReplayDriver creates a driver that replays the capture at path.
func NewReplayDriver(cfg ReplayConfig) *ReplayDriver {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	return &ReplayDriver{cfg: cfg}
}

// Open opens the capture file.
func (d *ReplayDriver) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file != nil {
		return nil
	}
	file, err := os.Open(d.cfg.Path)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	d.file = file
	d.dec = cbor.NewDecoder(file)
	d.staged = nil
	d.started = false
	return nil
}

// ReadFrame returns the next recorded frame once its recorded arrival time
// (scaled by Speed) comes due, or ErrTimeout if that is further away than
// the read timeout.
func (d *ReplayDriver) ReadFrame() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil, ErrNotOpen
	}

	if d.staged == nil {
		rec, err := d.next()
		if err != nil {
			return nil, err
		}
		d.staged = rec
		d.dueAt = time.Now().Add(d.gap(rec.At))
	}

	wait := time.Until(d.dueAt)
	if wait > d.cfg.ReadTimeout {
		time.Sleep(d.cfg.ReadTimeout)
		return nil, ErrTimeout
	}
	if wait > 0 {
		time.Sleep(wait)
	}

	rec := d.staged
	d.staged = nil
	d.lastAt = rec.At
	d.started = true
	return rec.Frame, nil
}

// next decodes the following record, rewinding at EOF when looping.
func (d *ReplayDriver) next() (*frameRecord, error) {
	for {
		var rec frameRecord
		err := d.dec.Decode(&rec)
		if err == nil {
			return &rec, nil
		}
		if !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode capture record: %w", err)
		}
		if !d.cfg.Loop {
			return nil, io.EOF
		}
		if _, err := d.file.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind capture: %w", err)
		}
		d.dec = cbor.NewDecoder(d.file)
		d.started = false
	}
}

// gap converts the recorded timestamp delta into a playback delay.
func (d *ReplayDriver) gap(at int64) time.Duration {
	if !d.started || d.cfg.Speed <= 0 {
		return 0
	}
	delta := at - d.lastAt
	if delta <= 0 {
		return 0
	}
	return time.Duration(float64(delta) * float64(time.Millisecond) / d.cfg.Speed)
}

// Close closes the capture file. Idempotent.
func (d *ReplayDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	d.dec = nil
	d.staged = nil
	return err
}
