// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package index

import (
	"container/heap"
	"context"
	"sync"
)

// Flat is an exact brute-force index.
type Flat struct {
	mu      sync.RWMutex
	vectors [][]float32
	dims    int
}

var _ Backend = (*Flat)(nil)

func NewFlat() *Flat {
	return &Flat{}
}

func (f *Flat) Name() string { return "flat" }

// Build replaces the index contents with a copy of vectors.
func (f *Flat) Build(_ context.Context, vectors [][]float32) error {
	dims, err := CheckVectors(vectors)
	if err != nil {
		return err
	}
	cp := cloneVectors(vectors)

	f.mu.Lock()
	f.vectors = cp
	f.dims = dims
	f.mu.Unlock()
	return nil
}

func (f *Flat) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	k, err := checkQuery(len(f.vectors), f.dims, query, k)
	if err != nil {
		return nil, err
	}
	if k == 0 {
		return []Neighbor{}, nil
	}
	return exactTopK(ctx, f.vectors, query, k)
}

func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

func (f *Flat) Dimensions() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dims
}

func (f *Flat) Close() error { return nil }

// exactTopK scans every vector keeping the k closest in a bounded max-heap.
func exactTopK(ctx context.Context, vectors [][]float32, query []float32, k int) ([]Neighbor, error) {
	h := make(worstFirst, 0, k)
	for row, v := range vectors {
		if row%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		n := Neighbor{Row: row, Distance: SquaredL2(query, v)}
		if len(h) < k {
			heap.Push(&h, n)
			continue
		}
		// Rows arrive in ascending order, so an equal distance never
		// displaces an earlier row.
		if n.Distance < h[0].Distance {
			h[0] = n
			heap.Fix(&h, 0)
		}
	}

	out := []Neighbor(h)
	SortNeighbors(out)
	return out, nil
}

// worstFirst is a max-heap on (Distance, Row).
type worstFirst []Neighbor

func (h worstFirst) Len() int { return len(h) }
func (h worstFirst) Less(i, j int) bool {
	if h[i].Distance != h[j].Distance {
		return h[i].Distance > h[j].Distance
	}
	return h[i].Row > h[j].Row
}
func (h worstFirst) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)   { *h = append(*h, x.(Neighbor)) }
func (h *worstFirst) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}
