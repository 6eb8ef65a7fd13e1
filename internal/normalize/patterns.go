// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package normalize

import "regexp"

type pattern struct {
	label string
	re    *regexp.Regexp
}

// Patterns recognizes durations, ages, and measurements.
type Patterns struct {
	patterns []pattern
}

var _ Recognizer = (*Patterns)(nil)

var builtinPatterns = []pattern{
	{LabelDate, regexp.MustCompile(`\b\d{1,3}[- ](?:years?|yrs?|months?)[- ]old\b`)},
	{LabelDate, regexp.MustCompile(`\b\d+(?:\.\d+)?\s*(?:minutes?|mins?|hours?|hrs?|days?|weeks?|wks?|months?|years?|yrs?)(?:\s+ago)?\b`)},
	{LabelQuantity, regexp.MustCompile(`\b\d{2,3}/\d{2,3}(?:\s*mmhg)?\b`)},
	{LabelQuantity, regexp.MustCompile(`\b\d+(?:\.\d+)?\s*(?:mg|mcg|kg|g|lbs?|ml|mmhg|bpm|cm|mm|°c|°f|c|f)\b`)},
}

// NewPatterns returns the built-in numeric recognizer.
func NewPatterns() *Patterns {
	return &Patterns{patterns: builtinPatterns}
}

func (p *Patterns) Recognize(text string) []Span {
	var spans []Span
	for _, pt := range p.patterns {
		for _, loc := range pt.re.FindAllStringIndex(text, -1) {
			spans = append(spans, Span{
				Start: loc[0],
				End:   loc[1],
				Text:  text[loc[0]:loc[1]],
				Label: pt.label,
			})
		}
	}
	return resolveOverlaps(spans)
}
