// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

// Package normalize reduces free clinical text to the entity spans that
// matter for embedding.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalizer lower-cases text and keeps only recognized entity spans.
type Normalizer struct {
	rec Recognizer
}

// New returns a Normalizer using rec. A nil recognizer makes Normalize
// return the lower-cased text.
func New(rec Recognizer) *Normalizer {
	return &Normalizer{rec: rec}
}

// NewDefault returns a Normalizer with the built-in clinical gazetteer and
// the numeric pattern recognizer.
func NewDefault() (*Normalizer, error) {
	lex, err := DefaultLexicon()
	if err != nil {
		return nil, err
	}
	return New(Chain(NewGazetteer(lex), NewPatterns())), nil
}

// Normalize returns the space-joined entity spans of the lower-cased text in
// order of appearance, or the lower-cased text itself when no span is found.
// Empty input returns "".
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return ""
	}
	cleaned := clean(text)
	if cleaned == "" {
		// Nothing printable survived; keep the input so the result stays
		// non-empty.
		return strings.ToLower(text)
	}
	lowered := strings.ToLower(cleaned)
	if strings.TrimSpace(lowered) == "" || n.rec == nil {
		return lowered
	}

	spans := n.Spans(lowered)
	if len(spans) == 0 {
		return lowered
	}
	parts := make([]string, len(spans))
	for i, s := range spans {
		parts[i] = s.Text
	}
	return strings.Join(parts, " ")
}

// Spans runs the recognizer over already lower-cased text.
func (n *Normalizer) Spans(lowered string) []Span {
	if n.rec == nil {
		return nil
	}
	return n.rec.Recognize(lowered)
}

// clean applies NFKC and drops control characters other than newlines and
// tabs.
func clean(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, norm.NFKC.String(text))
}
