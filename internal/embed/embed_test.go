// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package embed_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesage-dev/codesage/internal/embed"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

// flaky fails the first failures calls with err, then returns vec.
type flaky struct {
	failures int32
	err      error
	vec      []float32
	dims     int
	calls    atomic.Int32
}

func (f *flaky) Dimensions() int { return f.dims }
func (f *flaky) ModelID() string { return "flaky" }

func (f *flaky) Embed(ctx context.Context, _ string) ([]float32, error) {
	n := f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= f.failures {
		return nil, f.err
	}
	return f.vec, nil
}

type batcher struct {
	embed.Hashing
	batches [][]string
}

func (b *batcher) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	b.batches = append(b.batches, texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := b.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func TestEmbedAll_UsesBatchesAndReportsProgress(t *testing.T) {
	h, err := embed.NewHashing(8)
	require.NoError(t, err)
	b := &batcher{Hashing: *h}

	var progress [][2]int
	vecs, err := embed.EmbedAll(context.Background(), b, []string{"a", "b", "c", "d", "e"}, 2, func(done, total int) {
		progress = append(progress, [2]int{done, total})
	})
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, b.batches)
	assert.Equal(t, [][2]int{{2, 5}, {4, 5}, {5, 5}}, progress)

	single, err := h.Embed(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, single, vecs[2])
}

func TestEmbedAll_FallsBackToSingleCalls(t *testing.T) {
	s := &embed.Static{Fallback: []float32{1, 2}, Dims: 2}
	vecs, err := embed.EmbedAll(context.Background(), s, []string{"x", "y"}, 0, nil)
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, []string{"x", "y"}, s.Calls())
}

func TestEmbedAll_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	s := &embed.Static{Err: boom}
	_, err := embed.EmbedAll(context.Background(), s, []string{"x"}, 4, nil)
	assert.ErrorIs(t, err, boom)
}

func TestStatic(t *testing.T) {
	s := &embed.Static{Vectors: map[string][]float32{"pain": {1, 0}}, Dims: 2}

	v, err := s.Embed(context.Background(), "pain")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)

	v[0] = 42
	again, _ := s.Embed(context.Background(), "pain")
	assert.Equal(t, []float32{1, 0}, again, "returned vectors are copies")

	_, err = s.Embed(context.Background(), "unknown")
	assert.True(t, sageerr.IsEmbeddingUnavailable(err))
}

func TestHashing_DeterministicAndNormalised(t *testing.T) {
	h, err := embed.NewHashing(32)
	require.NoError(t, err)

	a, err := h.Embed(context.Background(), "Abdominal Pain")
	require.NoError(t, err)
	b, err := h.Embed(context.Background(), "abdominal pain")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sum, 1e-5)

	empty, err := h.Embed(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 32), empty)

	_, err = embed.NewHashing(0)
	assert.True(t, sageerr.IsInvalidInput(err))
}

func TestRegistry(t *testing.T) {
	assert.Contains(t, embed.Providers(), "hash")

	e, err := embed.New(embed.Config{Provider: "hash", Dimensions: 16})
	require.NoError(t, err)
	assert.Equal(t, 16, e.Dimensions())

	_, err = embed.New(embed.Config{Provider: "nope"})
	require.Error(t, err)
	assert.True(t, sageerr.IsNotFound(err))
	assert.Equal(t, "nope", sageerr.FieldsOf(err)["provider"])
}

func TestRegisterProvider(t *testing.T) {
	embed.RegisterProvider("test-static", func(cfg embed.Config) (embed.Embedder, error) {
		return &embed.Static{Fallback: []float32{1}, Dims: cfg.Dimensions}, nil
	})

	e, err := embed.New(embed.Config{Provider: "test-static", Dimensions: 1})
	require.NoError(t, err)
	assert.Equal(t, "static", e.ModelID())
}

func TestHealthOf_FindsGuardThroughCache(t *testing.T) {
	g, err := embed.NewGuard(&embed.Static{Fallback: []float32{1}, Dims: 1}, embed.DefaultGuardOptions(), nil)
	require.NoError(t, err)

	m, ok := embed.HealthOf(embed.NewCache(g, 8))
	require.True(t, ok)
	assert.True(t, m.Available)

	_, ok = embed.HealthOf(&embed.Static{})
	assert.False(t, ok)
}
