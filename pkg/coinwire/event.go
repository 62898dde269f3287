// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 BarCoin Systems

// Package coinwire implements the line-oriented JSON protocol spoken by the
// BAR-COIN sensor head. The device emits one JSON object per line; the only
// record the pipeline acts on is "coin_detected". Frame decoding classifies
// failures so the caller can keep an error-rate tally without ever treating
// malformed input as fatal.
package coinwire

import "time"

// CoinEvent is one validated coin detection. Events are immutable after
// decoding; the codec hands ownership to the aggregation pipeline.
type CoinEvent struct {
	Denomination Denomination
	Timestamp    time.Time
	SensorID     int
}
