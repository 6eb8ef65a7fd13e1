// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package suggest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/codesage-dev/codesage/internal/catalog"
	"github.com/codesage-dev/codesage/internal/embed"
	"github.com/codesage-dev/codesage/internal/index"
	"github.com/codesage-dev/codesage/internal/normalize"
	"github.com/codesage-dev/codesage/internal/suggest"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
	"github.com/codesage-dev/codesage/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// triangle is a three-row catalog whose vectors sit at squared distances
// 0, 2 and 1 from the query [1, 0].
func triangle(t *testing.T) *suggest.Resources {
	t.Helper()
	cat := catalog.New([]catalog.Entry{
		{Code: "A219", Description: "Tularemia, unspecified"},
		{Code: "R10", Description: "Abdominal and pelvic pain"},
		{Code: "J45", Description: "Asthma"},
	})
	idx := index.NewFlat()
	require.NoError(t, idx.Build(context.Background(), [][]float32{{1, 0}, {0, 1}, {1, 1}}))

	res, err := suggest.NewResources(cat, idx)
	require.NoError(t, err)
	return res
}

func newEngine(t *testing.T, res *suggest.Resources, e embed.Embedder, order types.RankOrder) *suggest.Engine {
	t.Helper()
	eng, err := suggest.New(normalize.New(nil), e, suggest.Preloaded(res), suggest.Options{Order: order})
	require.NoError(t, err)
	return eng
}

func queryEmbedder() *embed.Static {
	return &embed.Static{Fallback: []float32{1, 0}, Dims: 2}
}

func codes(results []types.Suggestion) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Code
	}
	return out
}

func TestSuggest_LegacyOrderPutsClosestMatchLast(t *testing.T) {
	res := triangle(t)

	hits, err := res.Index.Search(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Equal(t, 0, hits[0].Row, "the index ranks the exact match first")

	eng := newEngine(t, res, queryEmbedder(), "")
	got, err := eng.Suggest(context.Background(), "Fever and chills", 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"R10", "J45", "A219"}, codes(got))
	assert.Equal(t, []float64{2, 1, 0}, []float64{got[0].Score, got[1].Score, got[2].Score})
	assert.Equal(t, "A21.9", got[2].FormattedCode)
	assert.Equal(t, "R10", got[0].FormattedCode)
	assert.Equal(t, types.RankOrderScoreDesc, eng.Order())
}

func TestSuggest_DistanceAscendingOrder(t *testing.T) {
	eng := newEngine(t, triangle(t), queryEmbedder(), types.RankOrderDistanceAsc)

	got, err := eng.Suggest(context.Background(), "fever", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"A219", "J45", "R10"}, codes(got))
}

func TestSuggest_TopNAboveCatalogSize(t *testing.T) {
	res := triangle(t)
	eng := newEngine(t, res, queryEmbedder(), "")

	got, err := eng.Suggest(context.Background(), "cough", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	seen := map[string]bool{}
	for _, s := range got {
		assert.False(t, seen[s.Code], "duplicate code %s", s.Code)
		seen[s.Code] = true
		assert.True(t, res.Catalog.Contains(s.Code), "code %s not in catalog", s.Code)
	}
}

func TestSuggest_FewerThanAvailable(t *testing.T) {
	eng := newEngine(t, triangle(t), queryEmbedder(), types.RankOrderDistanceAsc)

	got, err := eng.Suggest(context.Background(), "cough", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A219"}, codes(got))
}

func TestSuggest_EmptyInput(t *testing.T) {
	emb := queryEmbedder()
	eng := newEngine(t, triangle(t), emb, "")

	for _, raw := range []string{"", "   \t", "\x07", "\x00\x01\n"} {
		got, err := eng.Suggest(context.Background(), raw, 5)
		require.Error(t, err)
		assert.True(t, sageerr.IsInvalidInput(err))
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}
	assert.Empty(t, emb.Calls(), "blank input must not reach the embedder")
}

func TestSuggest_NegativeTopN(t *testing.T) {
	eng := newEngine(t, triangle(t), queryEmbedder(), "")

	got, err := eng.Suggest(context.Background(), "cough", -1)
	require.Error(t, err)
	assert.True(t, sageerr.IsInvalidInput(err))
	assert.Empty(t, got)
}

func TestSuggest_ZeroTopN(t *testing.T) {
	emb := queryEmbedder()
	eng := newEngine(t, triangle(t), emb, "")

	got, err := eng.Suggest(context.Background(), "cough", 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Empty(t, emb.Calls())
}

func TestSuggest_EmbedderFailure(t *testing.T) {
	emb := &embed.Static{Err: errors.New("connection refused"), Dims: 2}
	eng := newEngine(t, triangle(t), emb, "")

	got, err := eng.Suggest(context.Background(), "chest pain", 3)
	require.Error(t, err)
	assert.True(t, sageerr.IsEmbeddingUnavailable(err))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSuggest_EmbedderFailureWithOtherCode(t *testing.T) {
	emb := &embed.Static{Err: sageerr.New(sageerr.CodeEmbedResponseInvalid, "empty vector"), Dims: 2}
	eng := newEngine(t, triangle(t), emb, "")

	_, err := eng.Suggest(context.Background(), "chest pain", 3)
	require.Error(t, err)
	assert.True(t, sageerr.IsEmbeddingUnavailable(err))
}

func TestSuggest_EmbedsNormalizedText(t *testing.T) {
	emb := queryEmbedder()
	eng := newEngine(t, triangle(t), emb, "")

	out, err := eng.Run(context.Background(), "Sharp PAIN", 2)
	require.NoError(t, err)
	assert.Equal(t, "sharp pain", out.Normalized)
	assert.Equal(t, []string{"sharp pain"}, emb.Calls())
}

func TestSuggest_QueryDimensionMismatchIsMisalignment(t *testing.T) {
	emb := &embed.Static{Fallback: []float32{1, 0, 0}, Dims: 3}
	eng := newEngine(t, triangle(t), emb, "")

	got, err := eng.Suggest(context.Background(), "cough", 3)
	require.Error(t, err)
	assert.True(t, sageerr.IsDataMisalignment(err))
	assert.Empty(t, got)
}

// shiftedIndex reports rows past the end of the catalog.
type shiftedIndex struct{ index.Index }

func (s shiftedIndex) Search(ctx context.Context, q []float32, k int) ([]index.Neighbor, error) {
	ns, err := s.Index.Search(ctx, q, k)
	if err != nil {
		return nil, err
	}
	return append(ns, index.Neighbor{Row: 99, Distance: 0.5}, index.Neighbor{Row: -1}, ns[0]), nil
}

func TestSuggest_DropsOutOfRangeAndDuplicateRows(t *testing.T) {
	base := triangle(t)
	res := &suggest.Resources{Catalog: base.Catalog, Index: shiftedIndex{base.Index}}
	eng := newEngine(t, res, queryEmbedder(), types.RankOrderDistanceAsc)

	got, err := eng.Suggest(context.Background(), "cough", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"A219", "J45", "R10"}, codes(got))
}

func TestSuggest_NotReadyWhenLoadFails(t *testing.T) {
	h := suggest.NewHandle(func(context.Context) (*suggest.Resources, error) {
		return nil, errors.New("catalog missing")
	})
	eng, err := suggest.New(normalize.New(nil), queryEmbedder(), h, suggest.Options{})
	require.NoError(t, err)

	got, err := eng.Suggest(context.Background(), "cough", 3)
	require.Error(t, err)
	assert.True(t, sageerr.IsIndexNotReady(err))
	assert.Empty(t, got)
}

func TestNew_Validation(t *testing.T) {
	h := suggest.Preloaded(triangle(t))

	_, err := suggest.New(nil, queryEmbedder(), h, suggest.Options{})
	assert.Error(t, err)

	_, err = suggest.New(normalize.New(nil), queryEmbedder(), h, suggest.Options{Order: "best_first"})
	require.Error(t, err)
	assert.True(t, sageerr.IsInvalidInput(err))
}

func TestRank_IsStable(t *testing.T) {
	results := []types.Suggestion{
		{Code: "a", Score: 1},
		{Code: "b", Score: 2},
		{Code: "c", Score: 1},
		{Code: "d", Score: 2},
	}

	suggest.Rank(results, types.RankOrderScoreDesc)
	assert.Equal(t, []string{"b", "d", "a", "c"}, codes(results))

	suggest.Rank(results, types.RankOrderDistanceAsc)
	assert.Equal(t, []string{"a", "c", "b", "d"}, codes(results))
}

func TestFormatCode(t *testing.T) {
	tests := map[string]string{
		"A219":    "A21.9",
		"R10":     "R10",
		"R1010":   "R10.10",
		"":        "",
		"J4":      "J4",
		"S72001A": "S72.001A",
	}
	for in, want := range tests {
		assert.Equal(t, want, suggest.FormatCode(in), "FormatCode(%q)", in)
	}
}

func TestRoundScore(t *testing.T) {
	assert.Equal(t, 0.123, suggest.RoundScore(0.12345))
	assert.Equal(t, 1.0, suggest.RoundScore(0.99951))
	assert.Equal(t, 2.0, suggest.RoundScore(2))
}
