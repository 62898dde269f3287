// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 BarCoin Systems

package session

import "github.com/barcoin/sentimo/pkg/coinwire"

// Tally is the live per-denomination count for the open session. It is
// owned and mutated exclusively by the Aggregator; everyone else sees
// copies via TallySnapshot.
type Tally struct {
	counts   map[coinwire.Denomination]uint64
	coins    uint64
	centavos int64
}

// NewTally returns an empty tally.
func NewTally() *Tally {
	return &Tally{counts: make(map[coinwire.Denomination]uint64, len(coinwire.Denominations))}
}

// Add counts one coin and maintains the derived totals incrementally.
func (t *Tally) Add(d coinwire.Denomination) {
	t.counts[d]++
	t.coins++
	t.centavos += int64(d)
}

// Reset zeroes every count and the derived totals.
func (t *Tally) Reset() {
	for d := range t.counts {
		delete(t.counts, d)
	}
	t.coins = 0
	t.centavos = 0
}

// Snapshot copies the tally out. Every recognized denomination is present
// in the copy, zero or not, so consumers can render a stable table.
func (t *Tally) Snapshot() TallySnapshot {
	counts := make(map[coinwire.Denomination]uint64, len(coinwire.Denominations))
	for _, d := range coinwire.Denominations {
		counts[d] = t.counts[d]
	}
	return TallySnapshot{
		Counts:   counts,
		Coins:    t.coins,
		Centavos: t.centavos,
	}
}

// TallySnapshot is an immutable copy of a tally. Centavos always equals
// the sum over Counts of count times denomination value.
type TallySnapshot struct {
	Counts   map[coinwire.Denomination]uint64 `json:"counts"`
	Coins    uint64                           `json:"coins"`
	Centavos int64                            `json:"centavos"`
}

// Pesos renders the total value for display, e.g. "₱7.25".
func (s TallySnapshot) Pesos() string {
	return "₱" + coinwire.FormatCentavos(s.Centavos)
}
