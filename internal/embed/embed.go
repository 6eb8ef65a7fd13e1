// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

// Package embed turns text into fixed-dimension vectors. Providers live in
// sub-packages and register themselves with RegisterProvider.
package embed

import (
	"context"

	"github.com/codesage-dev/codesage/pkg/health"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

// Embedder converts text into a dense vector. Implementations must return
// the same vector for the same text and must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimensions is the vector length, or 0 when the provider only learns
	// it from the first response.
	Dimensions() int
	ModelID() string
}

// BatchEmbedder is implemented by providers that can embed many texts in a
// single call.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedAll embeds texts in order, using EmbedBatch in chunks of batchSize
// when e supports it. progress, if non-nil, is called after each chunk.
func EmbedAll(ctx context.Context, e Embedder, texts []string, batchSize int, progress func(done, total int)) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = 64
	}
	out := make([][]float32, 0, len(texts))
	be, batched := e.(BatchEmbedder)

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		chunk := texts[start:end]

		if batched {
			vecs, err := be.EmbedBatch(ctx, chunk)
			if err != nil {
				return nil, err
			}
			if len(vecs) != len(chunk) {
				return nil, sageerr.Errorf(sageerr.CodeEmbedResponseInvalid,
					"batch returned %d vectors for %d texts", len(vecs), len(chunk))
			}
			out = append(out, vecs...)
		} else {
			for _, t := range chunk {
				vec, err := e.Embed(ctx, t)
				if err != nil {
					return nil, err
				}
				out = append(out, vec)
			}
		}

		if progress != nil {
			progress(end, len(texts))
		}
	}
	return out, nil
}

// Close releases resources held by e if it implements io.Closer.
func Close(e Embedder) error {
	if c, ok := e.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// HealthOf finds the first wrapper in e's Unwrap chain that tracks health,
// such as a Guard, and returns its snapshot.
func HealthOf(e Embedder) (health.Metrics, bool) {
	for e != nil {
		if h, ok := e.(interface{ Health() health.Metrics }); ok {
			return h.Health(), true
		}
		u, ok := e.(interface{ Unwrap() Embedder })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return health.Metrics{}, false
}

func cloneVector(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	return out
}
