// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 BarCoin Systems

package coinwire

import (
	"errors"
	"testing"
)

// FuzzDecodeFrame throws arbitrary bytes at the decoder and checks the
// contract: no panics, and every outcome is exactly one of skipped,
// accepted with a valid denomination, or a classified decode error.
func FuzzDecodeFrame(f *testing.F) {
	f.Add([]byte(`{"type":"coin_detected","denomination":0.25,"timestamp":"2025-06-01T18:30:00","sensor_id":1}`))
	f.Add([]byte(`{"type":"coin_detected","denomination":20.00,"timestamp":"2025-06-01T18:30:00.123456","sensor_id":4}`))
	f.Add([]byte(`{"type":"jam_detected","timestamp":"2025-06-01T18:30:00","location":"input"}`))
	f.Add([]byte(`{"type":"coin_detected","denomination":0.33,"timestamp":"2025-06-01T18:30:00","sensor_id":1}`))
	f.Add([]byte(``))
	f.Add([]byte(`{`))
	f.Add([]byte(`[1,2,3]`))
	f.Add([]byte("\x00\xff\xfe"))

	f.Fuzz(func(t *testing.T, data []byte) {
		ev, err := DecodeFrame(data)
		if ev != nil && err != nil {
			t.Fatalf("both event and error returned: %v", err)
		}
		if ev != nil && !ev.Denomination.Valid() {
			t.Fatalf("accepted invalid denomination %d", int64(ev.Denomination))
		}
		if err != nil {
			var syntaxErr *SyntaxError
			var semanticErr *SemanticError
			if !errors.As(err, &syntaxErr) && !errors.As(err, &semanticErr) {
				t.Fatalf("unclassified decode error: %v", err)
			}
		}
	})
}

// FuzzParseCentavos checks that whatever the parser accepts re-renders to
// a literal that parses back to the same centavo amount.
func FuzzParseCentavos(f *testing.F) {
	f.Add("0.25")
	f.Add("20.00")
	f.Add("0.100")
	f.Add(".5")
	f.Add("1e2")
	f.Add("")

	f.Fuzz(func(t *testing.T, s string) {
		centavos, err := ParseCentavos(s)
		if err != nil {
			return
		}
		back, err := ParseCentavos(FormatCentavos(centavos))
		if err != nil {
			t.Fatalf("render of %d does not parse: %v", centavos, err)
		}
		if back != centavos {
			t.Fatalf("round trip changed %d to %d", centavos, back)
		}
	})
}
