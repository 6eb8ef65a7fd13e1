// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

//go:build !windows

package index_test

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesage-dev/codesage/internal/index"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

func randomVectors(n, dims int, seed uint64) [][]float32 {
	r := rand.New(rand.NewPCG(seed, seed+1))
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dims)
		for j := range v {
			v[j] = r.Float32()
		}
		out[i] = v
	}
	return out
}

func TestHNSW_ExactDistancesAndOrder(t *testing.T) {
	h := index.NewHNSW(index.HNSWConfig{})
	require.NoError(t, h.Build(context.Background(), triangle))

	got, err := h.Search(context.Background(), []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, rows(got))
	assert.InDelta(t, 1.0, got[1].Distance, 1e-9)
}

func TestHNSW_AgreesWithFlatOnNearestNeighbour(t *testing.T) {
	ctx := context.Background()
	vecs := randomVectors(500, 8, 7)

	h := index.NewHNSW(index.HNSWConfig{EfSearch: 200})
	require.NoError(t, h.Build(ctx, vecs))
	f := index.NewFlat()
	require.NoError(t, f.Build(ctx, vecs))

	agree := 0
	for i := range 20 {
		q := vecs[i*13]
		hg, err := h.Search(ctx, q, 1)
		require.NoError(t, err)
		fg, err := f.Search(ctx, q, 1)
		require.NoError(t, err)
		if hg[0].Row == fg[0].Row {
			agree++
		}
	}
	assert.GreaterOrEqual(t, agree, 18)
}

func TestHNSW_FullKIsExact(t *testing.T) {
	ctx := context.Background()
	vecs := randomVectors(50, 4, 3)
	h := index.NewHNSW(index.HNSWConfig{})
	require.NoError(t, h.Build(ctx, vecs))

	got, err := h.Search(ctx, vecs[0], 500)
	require.NoError(t, err)
	require.Len(t, got, 50)

	seen := map[int]bool{}
	for _, n := range got {
		assert.False(t, seen[n.Row], "row %d returned twice", n.Row)
		seen[n.Row] = true
	}
}

func TestHNSW_SaveAndRestore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	vecs := randomVectors(40, 4, 11)

	h := index.NewHNSW(index.HNSWConfig{Dir: dir})
	require.NoError(t, h.Build(ctx, vecs))
	require.NoError(t, h.Save(ctx))

	restored := index.NewHNSW(index.HNSWConfig{Dir: dir})
	ok, err := restored.Restore(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 40, restored.Len())
	assert.Equal(t, 4, restored.Dimensions())

	got, err := restored.Search(ctx, vecs[5], 1)
	require.NoError(t, err)
	assert.Equal(t, 5, got[0].Row)
}

func TestHNSW_RestoreWithoutSavedGraph(t *testing.T) {
	h := index.NewHNSW(index.HNSWConfig{Dir: t.TempDir()})
	ok, err := h.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.Search(context.Background(), []float32{1}, 1)
	assert.True(t, sageerr.IsIndexNotReady(err))
}

func TestTiered_PromotesAboveThreshold(t *testing.T) {
	ctx := context.Background()

	small := index.NewTiered(index.TieredConfig{Threshold: 10})
	require.NoError(t, small.Build(ctx, randomVectors(10, 4, 1)))
	assert.False(t, small.Promoted())
	assert.Equal(t, 10, small.Len())

	large := index.NewTiered(index.TieredConfig{Threshold: 10})
	require.NoError(t, large.Build(ctx, randomVectors(11, 4, 2)))
	assert.True(t, large.Promoted())
	assert.Equal(t, 11, large.Len())

	got, err := large.Search(ctx, make([]float32, 4), 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestTiered_RestoresSavedGraph(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := index.NewTiered(index.TieredConfig{Threshold: 5, HNSW: index.HNSWConfig{Dir: dir}})
	require.NoError(t, first.Build(ctx, randomVectors(20, 3, 5)))
	require.NoError(t, first.Save(ctx))

	second := index.NewTiered(index.TieredConfig{Threshold: 5, HNSW: index.HNSWConfig{Dir: dir}})
	ok, err := second.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, second.Promoted())
	assert.Equal(t, 20, second.Len())
}
