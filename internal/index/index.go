// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

// Package index provides nearest-neighbour search over catalog embeddings.
//
// Every backend reports squared Euclidean distance (lower is more similar)
// and identifies vectors by their catalog row. Backends whose engine works
// in plain L2 square the distance before returning it.
package index

import (
	"cmp"
	"context"
	"slices"

	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

// Neighbor is one search hit.
type Neighbor struct {
	Row      int     `json:"row"`
	Distance float64 `json:"distance"`
}

// Index is a read-only similarity index. Implementations must be safe for
// concurrent Search calls once built.
type Index interface {
	// Search returns at most k neighbours of query, closest first. Ties keep
	// row order. k is clamped to [0, Len()].
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
	// Len returns the number of indexed vectors.
	Len() int
	// Dimensions returns the vector length, or 0 before Build.
	Dimensions() int
}

// Backend is an Index that can be (re)built from a full set of vectors.
// Row i of the index is vectors[i].
type Backend interface {
	Index
	Build(ctx context.Context, vectors [][]float32) error
	Name() string
	Close() error
}

// Persistent is implemented by backends that keep their state between
// runs.
type Persistent interface {
	// Restore loads saved state. ok is false when nothing was saved.
	Restore(ctx context.Context) (ok bool, err error)
	Save(ctx context.Context) error
}

// SquaredL2 returns the squared Euclidean distance between a and b, which
// must have equal length.
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// CheckVectors validates that all vectors share one non-zero dimension and
// returns it. An empty set has dimension 0.
func CheckVectors(vectors [][]float32) (int, error) {
	if len(vectors) == 0 {
		return 0, nil
	}
	dims := len(vectors[0])
	if dims == 0 {
		return 0, sageerr.New(sageerr.CodeIndexMisaligned, "vector 0 is empty")
	}
	for i, v := range vectors {
		if len(v) != dims {
			return 0, sageerr.Errorf(sageerr.CodeIndexMisaligned,
				"vector %d has %d dimensions, expected %d", i, len(v), dims)
		}
	}
	return dims, nil
}

// checkQuery validates a search against an index of n vectors with dims
// dimensions and returns k clamped to [0, n].
func checkQuery(n, dims int, query []float32, k int) (int, error) {
	if n == 0 {
		return 0, sageerr.New(sageerr.CodeIndexNotReady, "index is empty or has not been built")
	}
	if len(query) != dims {
		return 0, sageerr.Errorf(sageerr.CodeIndexQueryInvalid,
			"query has %d dimensions, index has %d", len(query), dims)
	}
	return max(0, min(k, n)), nil
}

// SortNeighbors orders by distance, then row.
func SortNeighbors(ns []Neighbor) {
	slices.SortStableFunc(ns, func(a, b Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Row, b.Row)
	})
}

func cloneVectors(vectors [][]float32) [][]float32 {
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		out[i] = slices.Clone(v)
	}
	return out
}
