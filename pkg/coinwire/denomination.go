// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 BarCoin Systems

package coinwire

import (
	"fmt"
	"strings"
)

// Denomination is a coin face value in centavos. Monetary math throughout
// the pipeline is integer-only; peso amounts exist solely for display and
// for the wire format.
type Denomination int64

// The eight coins of the current Philippine series.
const (
	OneSentimo        Denomination = 1
	FiveSentimo       Denomination = 5
	TenSentimo        Denomination = 10
	TwentyFiveSentimo Denomination = 25
	OnePiso           Denomination = 100
	FivePiso          Denomination = 500
	TenPiso           Denomination = 1000
	TwentyPiso        Denomination = 2000
)

// Denominations lists every recognized coin in ascending value order.
var Denominations = [8]Denomination{
	OneSentimo,
	FiveSentimo,
	TenSentimo,
	TwentyFiveSentimo,
	OnePiso,
	FivePiso,
	TenPiso,
	TwentyPiso,
}

var denominationNames = map[Denomination]string{
	OneSentimo:        "1 sentimo",
	FiveSentimo:       "5 sentimo",
	TenSentimo:        "10 sentimo",
	TwentyFiveSentimo: "25 sentimo",
	OnePiso:           "1 piso",
	FivePiso:          "5 piso",
	TenPiso:           "10 piso",
	TwentyPiso:        "20 piso",
}

// Valid reports whether d is one of the recognized coin values.
func (d Denomination) Valid() bool {
	_, ok := denominationNames[d]
	return ok
}

// Name returns the coin's common name, e.g. "25 sentimo".
func (d Denomination) Name() string {
	if name, ok := denominationNames[d]; ok {
		return name
	}
	return fmt.Sprintf("unknown (%d centavos)", int64(d))
}

// Decimal returns the peso amount as a plain decimal literal, e.g. "0.25".
// This is the canonical form used on the wire.
func (d Denomination) Decimal() string {
	return FormatCentavos(int64(d))
}

// String implements fmt.Stringer with the display form, e.g. "₱0.25".
func (d Denomination) String() string {
	return "₱" + d.Decimal()
}

// FormatCentavos renders a centavo amount as a peso decimal string.
func FormatCentavos(centavos int64) string {
	sign := ""
	if centavos < 0 {
		sign = "-"
		centavos = -centavos
	}
	return fmt.Sprintf("%s%d.%02d", sign, centavos/100, centavos%100)
}

// ParseCentavos converts a decimal peso literal (as found in the JSON
// "denomination" field) to centavos exactly. It never goes through floating
// point, so values like 0.10 survive round-tripping at minor-unit precision.
// Literals with more than two fraction digits are accepted only when the
// extra digits are zero. Negative literals parse to negative centavos;
// whether the amount names a real coin is Valid's call, not the parser's.
func ParseCentavos(s string) (int64, error) {
	raw := s
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	negative := false
	if s[0] == '-' {
		negative = true
		s = s[1:]
		if s == "" {
			return 0, fmt.Errorf("malformed amount %q", raw)
		}
	}
	if strings.ContainsAny(s, "eE+-") {
		return 0, fmt.Errorf("unsupported number form %q", raw)
	}

	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	if hasFrac && fracPart == "" {
		return 0, fmt.Errorf("malformed amount %q", raw)
	}

	var pesos int64
	for _, r := range intPart {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("malformed amount %q", raw)
		}
		pesos = pesos*10 + int64(r-'0')
		if pesos > 1<<40 {
			return 0, fmt.Errorf("amount %q out of range", raw)
		}
	}

	var centavos int64
	for i, r := range fracPart {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("malformed amount %q", raw)
		}
		switch {
		case i == 0:
			centavos += int64(r-'0') * 10
		case i == 1:
			centavos += int64(r - '0')
		default:
			if r != '0' {
				return 0, fmt.Errorf("amount %q is below centavo precision", raw)
			}
		}
	}

	total := pesos*100 + centavos
	if negative {
		total = -total
	}
	return total, nil
}
