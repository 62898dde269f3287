// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 BarCoin Systems

package link

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// frameRecord is one captured frame in a .coins capture file. Records are
// written as a bare CBOR sequence so captures can be appended to and
// truncated captures still replay up to the damage.
type frameRecord struct {
	At    int64  `cbor:"1,keyasint"` // arrival time, unix milliseconds
	Frame []byte `cbor:"2,keyasint"`
}

// Recorder wraps a Driver and captures every frame it delivers to a file
// for later replay. Read errors and timeouts pass through unrecorded.
type Recorder struct {
	Driver

	logger *slog.Logger

	mu     sync.Mutex
	file   *os.File
	enc    *cbor.Encoder
	frames uint64
}

// NewRecorder starts capturing frames from drv into path.
func NewRecorder(drv Driver, path string, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	return &Recorder{
		Driver: drv,
		logger: logger,
		file:   file,
		enc:    cbor.NewEncoder(file),
	}, nil
}

// ReadFrame reads from the wrapped driver and appends the frame to the
// capture. A capture write failure is logged, not fatal; losing a record
// must never stall the live pipeline.
func (r *Recorder) ReadFrame() ([]byte, error) {
	frame, err := r.Driver.ReadFrame()
	if err != nil {
		return frame, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc != nil {
		rec := frameRecord{At: time.Now().UnixMilli(), Frame: frame}
		if err := r.enc.Encode(rec); err != nil {
			r.logger.Warn("capture write failed", "error", err)
		} else {
			r.frames++
		}
	}
	return frame, nil
}

// Frames reports how many frames have been captured so far.
func (r *Recorder) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close closes the capture file and then the wrapped driver. Idempotent.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
		r.enc = nil
	}
	r.mu.Unlock()
	return r.Driver.Close()
}
