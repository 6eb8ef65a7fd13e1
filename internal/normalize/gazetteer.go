// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package normalize

import (
	_ "embed"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

//go:embed lexicon.yaml
var defaultLexiconYAML []byte

// Lexicon maps an entity label to the phrases that carry it.
type Lexicon struct {
	Terms map[string][]string `yaml:"terms"`
}

// DefaultLexicon returns the embedded clinical lexicon.
func DefaultLexicon() (Lexicon, error) {
	return ParseLexicon(defaultLexiconYAML)
}

// LoadLexicon reads a YAML lexicon file.
func LoadLexicon(path string) (Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Lexicon{}, sageerr.Wrap(err, sageerr.CodeConfigLoadReadFailure, "reading lexicon", sageerr.FieldPath(path))
	}
	return ParseLexicon(data)
}

// ParseLexicon decodes YAML lexicon data.
func ParseLexicon(data []byte) (Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return Lexicon{}, sageerr.Wrapf(err, sageerr.CodeConfigParseInvalidFormat, "parsing lexicon")
	}
	if len(lex.Terms) == 0 {
		return Lexicon{}, sageerr.New(sageerr.CodeConfigParseInvalidFormat, "lexicon has no terms")
	}
	return lex, nil
}

// Merge returns a lexicon holding the terms of both l and other.
func (l Lexicon) Merge(other Lexicon) Lexicon {
	out := Lexicon{Terms: make(map[string][]string, len(l.Terms)+len(other.Terms))}
	for label, terms := range l.Terms {
		out.Terms[label] = append(out.Terms[label], terms...)
	}
	for label, terms := range other.Terms {
		out.Terms[label] = append(out.Terms[label], terms...)
	}
	return out
}

// Gazetteer recognizes lexicon phrases on word boundaries. Longer phrases
// win over their own prefixes ("chest pain" over "chest").
type Gazetteer struct {
	re     *regexp.Regexp
	labels map[string]string
}

var _ Recognizer = (*Gazetteer)(nil)

// NewGazetteer compiles lex into a single alternation, longest phrase first.
func NewGazetteer(lex Lexicon) *Gazetteer {
	g := &Gazetteer{labels: make(map[string]string)}

	var phrases []string
	for label, terms := range lex.Terms {
		for _, t := range terms {
			key := collapse(strings.ToLower(t))
			if key == "" {
				continue
			}
			if _, dup := g.labels[key]; dup {
				continue
			}
			g.labels[key] = strings.ToUpper(label)
			phrases = append(phrases, key)
		}
	}
	if len(phrases) == 0 {
		return g
	}

	slices.SortFunc(phrases, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	alts := make([]string, len(phrases))
	for i, p := range phrases {
		words := strings.Fields(p)
		for j, w := range words {
			words[j] = regexp.QuoteMeta(w)
		}
		alts[i] = strings.Join(words, `\s+`)
	}
	g.re = regexp.MustCompile(`\b(?:` + strings.Join(alts, "|") + `)\b`)
	return g
}

// Recognize returns lexicon matches in text.
func (g *Gazetteer) Recognize(text string) []Span {
	if g.re == nil {
		return nil
	}
	locs := g.re.FindAllStringIndex(text, -1)
	spans := make([]Span, 0, len(locs))
	for _, loc := range locs {
		match := text[loc[0]:loc[1]]
		spans = append(spans, Span{
			Start: loc[0],
			End:   loc[1],
			Text:  match,
			Label: g.labels[collapse(match)],
		})
	}
	return spans
}

// Len returns the number of distinct phrases.
func (g *Gazetteer) Len() int {
	return len(g.labels)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
