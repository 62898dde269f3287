// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 BarCoin Systems

package coinwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCentavos(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"0.01", 1},
		{"0.05", 5},
		{"0.1", 10},
		{"0.10", 10},
		{"0.25", 25},
		{"1", 100},
		{"1.0", 100},
		{"1.00", 100},
		{"5.00", 500},
		{"10", 1000},
		{"20.00", 2000},
		{"0.100", 10},
		{"0.2500000", 25},
		{".5", 50},
		{"0", 0},
		{"123.45", 12345},
		{"-1", -100},
		{"-0.25", -25},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCentavos(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCentavosRejects(t *testing.T) {
	tests := []string{
		"",
		"1.",
		"1e2",
		"1E2",
		"-",
		"--1",
		"-1e2",
		"+1",
		"0.001",
		"0.101",
		"abc",
		"1.2x",
		"1..2",
		"99999999999999999999999",
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			_, err := ParseCentavos(in)
			assert.Error(t, err)
		})
	}
}

func TestParseCentavosRoundTripsDenominations(t *testing.T) {
	for _, d := range Denominations {
		got, err := ParseCentavos(d.Decimal())
		require.NoError(t, err)
		assert.Equal(t, int64(d), got)
	}
}

func TestFormatCentavos(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0.00"},
		{1, "0.01"},
		{10, "0.10"},
		{25, "0.25"},
		{100, "1.00"},
		{725, "7.25"},
		{2000, "20.00"},
		{-150, "-1.50"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCentavos(tt.in))
	}
}

func TestDenominationValid(t *testing.T) {
	for _, d := range Denominations {
		assert.True(t, d.Valid(), d.Name())
	}
	assert.False(t, Denomination(0).Valid())
	assert.False(t, Denomination(33).Valid())
	assert.False(t, Denomination(200).Valid())
	assert.False(t, Denomination(-100).Valid())
}

func TestDenominationStrings(t *testing.T) {
	assert.Equal(t, "25 sentimo", TwentyFiveSentimo.Name())
	assert.Equal(t, "0.25", TwentyFiveSentimo.Decimal())
	assert.Equal(t, "₱0.25", TwentyFiveSentimo.String())
	assert.Equal(t, "₱20.00", TwentyPiso.String())
	assert.Contains(t, Denomination(33).Name(), "unknown")
}
