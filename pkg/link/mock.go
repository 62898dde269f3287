// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 BarCoin Systems

package link

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/barcoin/sentimo/pkg/coinwire"
)

// MockConfig tunes the simulated sensor.
type MockConfig struct {
	// MeanInterval is the mean coin inter-arrival time. Actual gaps are
	// exponentially distributed around it.
	MeanInterval time.Duration
	ReadTimeout  time.Duration

	// Weights biases the denomination distribution. Empty means uniform.
	Weights map[coinwire.Denomination]int

	// ErrorRate and JamRate are the fractions of frames that report a
	// firmware fault or a coin jam instead of a detection.
	ErrorRate float64
	JamRate   float64

	// Sensors is the number of distinct sensor ids to emit (default 4).
	Sensors int

	// Seed makes the stream deterministic when nonzero.
	Seed int64
}

// MockDriver synthesizes sensor frames so the whole pipeline runs without
// hardware. It satisfies the same contract as the real drivers, including
// the bounded read timeout.
type MockDriver struct {
	cfg MockConfig

	mu     sync.Mutex
	open   bool
	rng    *rand.Rand
	picks  []coinwire.Denomination
	nextAt time.Time
}

// NewMockDriver creates a simulator with the given settings.
func NewMockDriver(cfg MockConfig) *MockDriver {
	if cfg.MeanInterval <= 0 {
		cfg.MeanInterval = 500 * time.Millisecond
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Sensors <= 0 {
		cfg.Sensors = 4
	}
	return &MockDriver{cfg: cfg}
}

// Open arms the simulator clock.
func (d *MockDriver) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return nil
	}

	seed := d.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	d.rng = rand.New(rand.NewSource(seed))

	d.picks = d.picks[:0]
	for _, denom := range coinwire.Denominations {
		weight := 1
		if len(d.cfg.Weights) > 0 {
			weight = d.cfg.Weights[denom]
		}
		for i := 0; i < weight; i++ {
			d.picks = append(d.picks, denom)
		}
	}
	if len(d.picks) == 0 {
		return fmt.Errorf("mock weights leave no denomination to emit")
	}

	d.open = true
	d.nextAt = time.Now().Add(d.interarrival())
	return nil
}

// ReadFrame blocks until the next synthesized frame is due, or until the
// read timeout elapses first.
func (d *MockDriver) ReadFrame() ([]byte, error) {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return nil, ErrNotOpen
	}
	due := d.nextAt
	d.mu.Unlock()

	wait := time.Until(due)
	if wait > d.cfg.ReadTimeout {
		time.Sleep(d.cfg.ReadTimeout)
		return nil, ErrTimeout
	}
	if wait > 0 {
		time.Sleep(wait)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil, ErrNotOpen
	}
	d.nextAt = time.Now().Add(d.interarrival())

	roll := d.rng.Float64()
	switch {
	case roll < d.cfg.ErrorRate:
		return d.errorFrame(), nil
	case roll < d.cfg.ErrorRate+d.cfg.JamRate:
		return d.jamFrame(), nil
	default:
		return d.coinFrame(), nil
	}
}

func (d *MockDriver) interarrival() time.Duration {
	return time.Duration(d.rng.ExpFloat64() * float64(d.cfg.MeanInterval))
}

func (d *MockDriver) coinFrame() []byte {
	denom := d.picks[d.rng.Intn(len(d.picks))]
	sensor := 1 + d.rng.Intn(d.cfg.Sensors)
	line := coinwire.EncodeCoinFrame(denom, time.Now(), sensor)
	// EncodeCoinFrame terminates the line; drivers hand frames back bare.
	return line[:len(line)-1]
}

var mockErrorTypes = []string{
	"sensor_error",
	"communication_error",
	"power_fluctuation",
	"mechanical_error",
}

func (d *MockDriver) errorFrame() []byte {
	kind := mockErrorTypes[d.rng.Intn(len(mockErrorTypes))]
	data, _ := json.Marshal(map[string]any{
		"type":       "error",
		"error_type": kind,
		"timestamp":  time.Now().Format(time.RFC3339Nano),
		"message":    "simulated " + kind,
	})
	return data
}

func (d *MockDriver) jamFrame() []byte {
	locations := []string{"input", "sorting", "output"}
	data, _ := json.Marshal(map[string]any{
		"type":      "jam_detected",
		"timestamp": time.Now().Format(time.RFC3339Nano),
		"location":  locations[d.rng.Intn(len(locations))],
	})
	return data
}

// Close stops the simulator. Idempotent.
func (d *MockDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	return nil
}
