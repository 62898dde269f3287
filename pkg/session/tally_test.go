// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 BarCoin Systems

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/barcoin/sentimo/pkg/coinwire"
)

func TestTallyAdd(t *testing.T) {
	tally := NewTally()
	tally.Add(coinwire.OnePiso)
	tally.Add(coinwire.FivePiso)
	tally.Add(coinwire.TwentyFiveSentimo)
	tally.Add(coinwire.OnePiso)

	snap := tally.Snapshot()
	assert.Equal(t, uint64(4), snap.Coins)
	assert.Equal(t, int64(725), snap.Centavos)
	assert.Equal(t, uint64(2), snap.Counts[coinwire.OnePiso])
	assert.Equal(t, uint64(1), snap.Counts[coinwire.FivePiso])
	assert.Equal(t, uint64(1), snap.Counts[coinwire.TwentyFiveSentimo])
	assert.Equal(t, "₱7.25", snap.Pesos())
}

func TestTallySnapshotListsEveryDenomination(t *testing.T) {
	snap := NewTally().Snapshot()
	assert.Len(t, snap.Counts, len(coinwire.Denominations))
	for _, d := range coinwire.Denominations {
		count, ok := snap.Counts[d]
		assert.True(t, ok, d.Name())
		assert.Zero(t, count)
	}
}

func TestTallySnapshotIsACopy(t *testing.T) {
	tally := NewTally()
	tally.Add(coinwire.OnePiso)
	snap := tally.Snapshot()

	tally.Add(coinwire.OnePiso)
	assert.Equal(t, uint64(1), snap.Counts[coinwire.OnePiso])
	assert.Equal(t, uint64(1), snap.Coins)
}

func TestTallyReset(t *testing.T) {
	tally := NewTally()
	tally.Add(coinwire.TwentyPiso)
	tally.Reset()

	snap := tally.Snapshot()
	assert.Zero(t, snap.Coins)
	assert.Zero(t, snap.Centavos)
	assert.Equal(t, "₱0.00", snap.Pesos())
}
