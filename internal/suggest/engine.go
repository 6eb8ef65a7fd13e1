// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

// Package suggest turns free clinical text into ranked catalog codes:
// normalize, embed, search, then assemble and order the results.
package suggest

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"unicode"

	"github.com/codesage-dev/codesage/internal/embed"
	"github.com/codesage-dev/codesage/internal/normalize"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
	"github.com/codesage-dev/codesage/pkg/types"
)

// DefaultTopN is the result count used when a transport omits top_n.
const DefaultTopN = 10

// Options tunes result ordering and logging.
type Options struct {
	// Order defaults to types.RankOrderScoreDesc.
	Order  types.RankOrder
	Logger *slog.Logger
}

// Engine is safe for concurrent use.
type Engine struct {
	normalizer *normalize.Normalizer
	embedder   embed.Embedder
	handle     *Handle
	order      types.RankOrder
	logger     *slog.Logger
}

// Outcome is a full suggestion run, including the normalized query.
type Outcome struct {
	Normalized  string
	Suggestions []types.Suggestion
}

// New validates its collaborators and returns an Engine.
func New(n *normalize.Normalizer, e embed.Embedder, h *Handle, opts Options) (*Engine, error) {
	if n == nil || e == nil || h == nil {
		return nil, sageerr.New(sageerr.CodeConfigValidateInvalidValue, "engine requires a normalizer, an embedder and a resource handle")
	}
	order := opts.Order
	if order == "" {
		order = types.RankOrderScoreDesc
	}
	if !order.Valid() {
		return nil, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue, "unknown rank order %q", order)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{normalizer: n, embedder: e, handle: h, order: order, logger: logger}, nil
}

// Order returns the configured result ordering.
func (e *Engine) Order() types.RankOrder { return e.order }

// Handle returns the resource handle the engine reads from.
func (e *Engine) Handle() *Handle { return e.handle }

// Embedder returns the embedder the engine queries with.
func (e *Engine) Embedder() embed.Embedder { return e.embedder }

// Suggest returns up to topN catalog entries for raw. On error the slice is
// empty, never nil.
func (e *Engine) Suggest(ctx context.Context, raw string, topN int) ([]types.Suggestion, error) {
	out, err := e.Run(ctx, raw, topN)
	return out.Suggestions, err
}

// Run is Suggest that also reports the normalized query.
func (e *Engine) Run(ctx context.Context, raw string, topN int) (Outcome, error) {
	out := Outcome{Suggestions: []types.Suggestion{}}

	if !hasText(raw) {
		return out, sageerr.New(sageerr.CodeSuggestInputInvalid, "query text is empty")
	}
	if topN < 0 {
		return out, sageerr.Errorf(sageerr.CodeSuggestInputInvalid, "top_n must not be negative, got %d", topN)
	}

	res, err := e.handle.Get(ctx)
	if err != nil {
		return out, err
	}

	out.Normalized = e.normalizer.Normalize(raw)
	e.logger.Debug("normalized input", "normalized", out.Normalized)

	if topN == 0 {
		return out, nil
	}

	vec, err := e.embedder.Embed(ctx, out.Normalized)
	if err != nil {
		return out, embed.Unavailable(err, e.embedder.ModelID())
	}

	neighbors, err := res.Index.Search(ctx, vec, topN)
	if err != nil {
		if sageerr.IsInvalidInput(err) {
			// The embedder and the index disagree on dimensions.
			return out, sageerr.Reclassify(err, sageerr.CodeIndexMisaligned, "query embedding does not match index",
				sageerr.Field("model", e.embedder.ModelID()))
		}
		return out, err
	}

	results := make([]types.Suggestion, 0, len(neighbors))
	seen := make(map[int]struct{}, len(neighbors))
	for _, n := range neighbors {
		entry, ok := res.Catalog.At(n.Row)
		if !ok {
			e.logger.Warn("dropping out-of-range index row", "row", n.Row, "catalog_size", res.Catalog.Len())
			continue
		}
		if _, dup := seen[n.Row]; dup {
			continue
		}
		seen[n.Row] = struct{}{}
		results = append(results, types.Suggestion{
			Code:          entry.Code,
			FormattedCode: FormatCode(entry.Code),
			Description:   entry.Description,
			Score:         RoundScore(n.Distance),
		})
	}

	Rank(results, e.order)
	out.Suggestions = results
	e.logger.Info("found matching codes", "count", len(results))
	return out, nil
}

// hasText reports whether s holds anything besides whitespace and control
// characters.
func hasText(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsSpace(r) && !unicode.IsControl(r)
	}) >= 0
}

// Rank orders results in place with a stable sort. ScoreDesc puts the
// largest score first; DistanceAsc the smallest. Equal scores keep their
// search order.
func Rank(results []types.Suggestion, order types.RankOrder) {
	switch order {
	case types.RankOrderDistanceAsc:
		slices.SortStableFunc(results, func(a, b types.Suggestion) int {
			return cmp.Compare(a.Score, b.Score)
		})
	default:
		slices.SortStableFunc(results, func(a, b types.Suggestion) int {
			return cmp.Compare(b.Score, a.Score)
		})
	}
}
