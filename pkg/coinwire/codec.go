// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 BarCoin Systems

package coinwire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// TypeCoinDetected tags the one frame type the pipeline aggregates. The
// sensor firmware also emits "error", "jam_detected" and "status_response"
// frames; those, like any unrecognized type, are skipped without error so
// newer firmware stays forward-compatible.
const TypeCoinDetected = "coin_detected"

// SyntaxError reports a frame that does not decode as a well-formed record:
// invalid JSON, a missing required field, or a field of the wrong shape.
type SyntaxError struct {
	Reason string
}

func (e *SyntaxError) Error() string {
	return "syntax error: " + e.Reason
}

// SemanticError reports a well-formed frame whose denomination is not one of
// the recognized coin values.
type SemanticError struct {
	Centavos int64
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("semantic error: unrecognized denomination ₱%s", FormatCentavos(e.Centavos))
}

// wireFrame mirrors the device's JSON record. Denomination stays a
// json.Number so the literal can be converted to centavos without a float
// round trip. SensorID is a pointer to tell "absent" from zero.
type wireFrame struct {
	Type         string      `json:"type"`
	Denomination json.Number `json:"denomination"`
	Timestamp    string      `json:"timestamp"`
	SensorID     *int        `json:"sensor_id"`
}

// Timestamp layouts accepted from the device. The firmware stamps frames
// with a zoneless ISO-8601 local time; newer builds include an offset.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// DecodeFrame parses one raw line into a CoinEvent.
//
// Returns (nil, nil) for blank lines and for well-formed frames of a
// non-coin type. Returns *SyntaxError or *SemanticError for rejected
// frames; both are non-fatal and the caller is expected to count and skip.
func DecodeFrame(line []byte) (*CoinEvent, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var f wireFrame
	if err := dec.Decode(&f); err != nil {
		return nil, &SyntaxError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	if f.Type == "" {
		return nil, &SyntaxError{Reason: "missing type"}
	}
	if f.Type != TypeCoinDetected {
		return nil, nil
	}

	if f.Denomination == "" {
		return nil, &SyntaxError{Reason: "missing denomination"}
	}
	centavos, err := ParseCentavos(f.Denomination.String())
	if err != nil {
		return nil, &SyntaxError{Reason: fmt.Sprintf("denomination: %v", err)}
	}
	denom := Denomination(centavos)
	if !denom.Valid() {
		return nil, &SemanticError{Centavos: centavos}
	}

	if f.Timestamp == "" {
		return nil, &SyntaxError{Reason: "missing timestamp"}
	}
	ts, err := parseTimestamp(f.Timestamp)
	if err != nil {
		return nil, &SyntaxError{Reason: fmt.Sprintf("timestamp: %v", err)}
	}

	if f.SensorID == nil {
		return nil, &SyntaxError{Reason: "missing sensor_id"}
	}

	return &CoinEvent{
		Denomination: denom,
		Timestamp:    ts,
		SensorID:     *f.SensorID,
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// EncodeCoinFrame renders a coin detection in the device's wire form,
// newline-terminated. Used by the mock driver and by tests.
func EncodeCoinFrame(d Denomination, ts time.Time, sensorID int) []byte {
	id := sensorID
	data, _ := json.Marshal(wireFrame{
		Type:         TypeCoinDetected,
		Denomination: json.Number(d.Decimal()),
		Timestamp:    ts.Format(time.RFC3339Nano),
		SensorID:     &id,
	})
	return append(data, '\n')
}
