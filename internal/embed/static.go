// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

// Static returns fixed vectors from a lookup table. Unknown text maps to
// Fallback, or fails when Fallback is nil. Calls records every input it saw.
type Static struct {
	Vectors  map[string][]float32
	Fallback []float32
	Err      error
	Dims     int

	mu    sync.Mutex
	calls []string
}

func (s *Static) Dimensions() int { return s.Dims }
func (s *Static) ModelID() string { return "static" }

func (s *Static) Embed(_ context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	s.calls = append(s.calls, text)
	s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	if vec, ok := s.Vectors[text]; ok {
		return cloneVector(vec), nil
	}
	if s.Fallback != nil {
		return cloneVector(s.Fallback), nil
	}
	return nil, sageerr.Errorf(sageerr.CodeEmbedUpstreamFailure, "no static vector for %q", text)
}

// Calls returns the texts passed to Embed, in order.
func (s *Static) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Hashing embeds text as an L2-normalised bag of hashed tokens. It needs no
// model files and is deterministic, which makes it useful offline and for
// end-to-end tests. Similarity is purely lexical.
type Hashing struct {
	dims int
}

// NewHashing returns a hashing embedder with dims buckets.
func NewHashing(dims int) (*Hashing, error) {
	if dims <= 0 {
		return nil, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"hashing embedder needs positive dimensions, got %d", dims)
	}
	return &Hashing{dims: dims}, nil
}

func (h *Hashing) Dimensions() int { return h.dims }
func (h *Hashing) ModelID() string { return "hash" }

func (h *Hashing) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dims)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(tok))
		sum := f.Sum32()
		sign := float32(1)
		if sum&1 == 1 {
			sign = -1
		}
		vec[int(sum>>1)%h.dims] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}
