// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 BarCoin Systems

package coinwire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	ev, err := DecodeFrame([]byte(`{"type":"coin_detected","denomination":0.25,"timestamp":"2025-06-01T18:30:00.123456","sensor_id":2}`))
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, TwentyFiveSentimo, ev.Denomination)
	assert.Equal(t, 2, ev.SensorID)
	assert.Equal(t, 2025, ev.Timestamp.Year())
	assert.Equal(t, 123456000, ev.Timestamp.Nanosecond())
}

func TestDecodeFrameAllDenominations(t *testing.T) {
	ts := time.Date(2025, 6, 1, 18, 30, 0, 0, time.UTC)
	for _, d := range Denominations {
		frame := EncodeCoinFrame(d, ts, 1)
		ev, err := DecodeFrame(frame)
		require.NoError(t, err, d.Decimal())
		require.NotNil(t, ev)
		assert.Equal(t, d, ev.Denomination)
		assert.True(t, ev.Timestamp.Equal(ts))
	}
}

func TestDecodeFrameTimestampWithOffset(t *testing.T) {
	ev, err := DecodeFrame([]byte(`{"type":"coin_detected","denomination":1.00,"timestamp":"2025-06-01T18:30:00+08:00","sensor_id":1}`))
	require.NoError(t, err)
	require.NotNil(t, ev)
	_, offset := ev.Timestamp.Zone()
	assert.Equal(t, 8*3600, offset)
}

func TestDecodeFrameSkipsNonCoinTypes(t *testing.T) {
	frames := []string{
		`{"type":"error","error_type":"sensor_error","timestamp":"2025-06-01T18:30:00","message":"x"}`,
		`{"type":"jam_detected","timestamp":"2025-06-01T18:30:00","location":"input"}`,
		`{"type":"status_response","timestamp":"2025-06-01T18:30:00"}`,
		`{"type":"firmware_v9_novelty"}`,
	}
	for _, raw := range frames {
		ev, err := DecodeFrame([]byte(raw))
		assert.NoError(t, err, raw)
		assert.Nil(t, ev, raw)
	}
}

func TestDecodeFrameBlankLines(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n", "\r\n", "\t"} {
		ev, err := DecodeFrame([]byte(raw))
		assert.NoError(t, err)
		assert.Nil(t, ev)
	}
}

func TestDecodeFrameSyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"truncated json", `{"type":"coin_detected","denomination":0.2`},
		{"not json", `garbage`},
		{"missing type", `{"denomination":0.25,"timestamp":"2025-06-01T18:30:00","sensor_id":1}`},
		{"missing denomination", `{"type":"coin_detected","timestamp":"2025-06-01T18:30:00","sensor_id":1}`},
		{"string denomination", `{"type":"coin_detected","denomination":"two","timestamp":"2025-06-01T18:30:00","sensor_id":1}`},
		{"exponent denomination", `{"type":"coin_detected","denomination":1e2,"timestamp":"2025-06-01T18:30:00","sensor_id":1}`},
		{"missing timestamp", `{"type":"coin_detected","denomination":0.25,"sensor_id":1}`},
		{"bad timestamp", `{"type":"coin_detected","denomination":0.25,"timestamp":"yesterday","sensor_id":1}`},
		{"missing sensor_id", `{"type":"coin_detected","denomination":0.25,"timestamp":"2025-06-01T18:30:00"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeFrame([]byte(tt.raw))
			assert.Nil(t, ev)
			var syntaxErr *SyntaxError
			require.ErrorAs(t, err, &syntaxErr)
		})
	}
}

func TestDecodeFrameSemanticErrors(t *testing.T) {
	tests := []struct {
		raw      string
		centavos int64
	}{
		{`{"type":"coin_detected","denomination":0.33,"timestamp":"2025-06-01T18:30:00","sensor_id":1}`, 33},
		{`{"type":"coin_detected","denomination":2.00,"timestamp":"2025-06-01T18:30:00","sensor_id":1}`, 200},
		{`{"type":"coin_detected","denomination":0,"timestamp":"2025-06-01T18:30:00","sensor_id":1}`, 0},
		// A negative amount is a well-formed number naming no coin.
		{`{"type":"coin_detected","denomination":-1,"timestamp":"2025-06-01T18:30:00","sensor_id":1}`, -100},
		{`{"type":"coin_detected","denomination":-0.25,"timestamp":"2025-06-01T18:30:00","sensor_id":1}`, -25},
	}
	for _, tt := range tests {
		ev, err := DecodeFrame([]byte(tt.raw))
		assert.Nil(t, ev)
		var semanticErr *SemanticError
		require.ErrorAs(t, err, &semanticErr, tt.raw)
		assert.Equal(t, tt.centavos, semanticErr.Centavos)
	}
}

// Minor-unit exactness: 0.10 must count as exactly 10 centavos, not the
// nearest float64.
func TestDecodeFrameExactTenCentavo(t *testing.T) {
	ev, err := DecodeFrame([]byte(`{"type":"coin_detected","denomination":0.10,"timestamp":"2025-06-01T18:30:00","sensor_id":1}`))
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, TenSentimo, ev.Denomination)
	assert.Equal(t, int64(10), int64(ev.Denomination))
}

func TestEncodeCoinFrame(t *testing.T) {
	ts := time.Date(2025, 6, 1, 18, 30, 0, 500_000_000, time.UTC)
	frame := EncodeCoinFrame(OnePiso, ts, 3)
	require.NotEmpty(t, frame)
	assert.Equal(t, byte('\n'), frame[len(frame)-1])

	ev, err := DecodeFrame(frame)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, OnePiso, ev.Denomination)
	assert.Equal(t, 3, ev.SensorID)
	assert.True(t, ev.Timestamp.Equal(ts))
}
