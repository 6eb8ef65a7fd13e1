// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package suggest

import (
	"math"
	"unicode/utf8"
)

// FormatCode inserts a dot after the third character of codes longer than
// three characters: "A219" becomes "A21.9", "R10" is unchanged.
func FormatCode(code string) string {
	if utf8.RuneCountInString(code) <= 3 {
		return code
	}
	i := 0
	for n := 0; n < 3; n++ {
		_, size := utf8.DecodeRuneInString(code[i:])
		i += size
	}
	return code[:i] + "." + code[i:]
}

// RoundScore rounds a distance to three decimal places, half away from
// zero.
func RoundScore(d float64) float64 {
	return math.Round(d*1000) / 1000
}
