// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package normalize

import (
	"cmp"
	"slices"
)

// Entity labels emitted by the built-in recognizers.
const (
	LabelCondition = "CONDITION"
	LabelSymptom   = "SYMPTOM"
	LabelAnatomy   = "ANATOMY"
	LabelQualifier = "QUALIFIER"
	LabelDate      = "DATE"
	LabelQuantity  = "QUANTITY"
)

// Span is a recognized entity. Start and End are byte offsets into the text
// passed to Recognize.
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Recognizer extracts entity spans from lower-cased text.
type Recognizer interface {
	Recognize(text string) []Span
}

// RecognizerFunc adapts a function to the Recognizer interface.
type RecognizerFunc func(text string) []Span

func (f RecognizerFunc) Recognize(text string) []Span { return f(text) }

type chain []Recognizer

// Chain runs every recognizer and merges their spans. Overlaps are resolved
// by keeping the earliest span, and the longest among spans that start at
// the same offset.
func Chain(recognizers ...Recognizer) Recognizer {
	return chain(recognizers)
}

func (c chain) Recognize(text string) []Span {
	var all []Span
	for _, r := range c {
		if r == nil {
			continue
		}
		all = append(all, r.Recognize(text)...)
	}
	return resolveOverlaps(all)
}

func resolveOverlaps(spans []Span) []Span {
	if len(spans) == 0 {
		return nil
	}
	slices.SortStableFunc(spans, func(a, b Span) int {
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		return cmp.Compare(b.End-b.Start, a.End-a.Start)
	})

	out := spans[:0]
	end := -1
	for _, s := range spans {
		if s.Start < end {
			continue
		}
		out = append(out, s)
		end = s.End
	}
	return out
}
