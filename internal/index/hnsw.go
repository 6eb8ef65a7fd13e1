// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

//go:build !windows

package index

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

// HNSW performs approximate search over a Hierarchical Navigable Small
// World graph. Candidates are re-scored with exact squared L2 so distances
// match Flat. Queries that ask for the whole index fall back to an exact
// scan.
type HNSW struct {
	mu      sync.RWMutex
	cfg     HNSWConfig
	graph   *hnsw.SavedGraph[int]
	vectors [][]float32
	dims    int
}

var (
	_ Backend    = (*HNSW)(nil)
	_ Persistent = (*HNSW)(nil)
)

func NewHNSW(cfg HNSWConfig) *HNSW {
	cfg = cfg.withDefaults()
	return &HNSW{cfg: cfg, graph: newHNSWGraph(cfg, cfg.path(), nil)}
}

func newHNSWGraph(cfg HNSWConfig, path string, nodes []hnsw.Node[int]) *hnsw.SavedGraph[int] {
	g := hnsw.NewGraph[int]()
	g.M = cfg.M
	g.EfSearch = cfg.EfSearch
	g.Ml = cfg.Ml
	g.Distance = hnsw.EuclideanDistance
	if len(nodes) > 0 {
		g.Add(nodes...)
	}
	return &hnsw.SavedGraph[int]{Graph: g, Path: path}
}

func (h *HNSW) Name() string { return "hnsw" }

func (h *HNSW) Build(ctx context.Context, vectors [][]float32) error {
	dims, err := CheckVectors(vectors)
	if err != nil {
		return err
	}
	cp := cloneVectors(vectors)

	nodes := make([]hnsw.Node[int], len(cp))
	for row, v := range cp {
		if row%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		nodes[row] = hnsw.MakeNode(row, v)
	}
	graph := newHNSWGraph(h.cfg, h.cfg.path(), nodes)

	h.mu.Lock()
	h.graph = graph
	h.vectors = cp
	h.dims = dims
	h.mu.Unlock()
	return nil
}

func (h *HNSW) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := len(h.vectors)
	k, err := checkQuery(n, h.dims, query, k)
	if err != nil {
		return nil, err
	}
	if k == 0 {
		return []Neighbor{}, nil
	}
	if k == n {
		return exactTopK(ctx, h.vectors, query, k)
	}

	fetch := min(n, max(k, h.cfg.EfSearch))
	nodes := h.graph.Search(query, fetch)

	out := make([]Neighbor, 0, len(nodes))
	for _, node := range nodes {
		if node.Key < 0 || node.Key >= n {
			continue
		}
		out = append(out, Neighbor{Row: node.Key, Distance: SquaredL2(query, h.vectors[node.Key])})
	}
	SortNeighbors(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (h *HNSW) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.vectors)
}

func (h *HNSW) Dimensions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dims
}

// Save persists the graph. No-op when no directory is configured.
func (h *HNSW) Save(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.graph.Path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(h.graph.Path), 0o755); err != nil {
		return sageerr.Wrap(err, sageerr.CodeIndexStoreFailure, "creating index directory", sageerr.FieldPath(h.graph.Path))
	}
	if err := h.graph.Save(); err != nil {
		return sageerr.Wrap(err, sageerr.CodeIndexStoreFailure, "saving hnsw graph", sageerr.FieldPath(h.graph.Path))
	}
	return nil
}

// Restore loads a previously saved graph and recovers the row vectors from
// it. Rows must be the dense range 0..N-1.
func (h *HNSW) Restore(_ context.Context) (bool, error) {
	path := h.cfg.path()
	if path == "" {
		return false, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	sg, err := hnsw.LoadSavedGraph[int](path)
	if err != nil {
		return false, sageerr.Wrap(err, sageerr.CodeIndexFormatInvalid, "loading hnsw graph", sageerr.FieldPath(path))
	}
	sg.M = h.cfg.M
	sg.EfSearch = h.cfg.EfSearch
	sg.Ml = h.cfg.Ml
	sg.Distance = hnsw.EuclideanDistance

	n := sg.Len()
	vectors := make([][]float32, n)
	for row := range n {
		v, ok := sg.Lookup(row)
		if !ok {
			return false, sageerr.Errorf(sageerr.CodeIndexFormatInvalid,
				"hnsw graph at %s is missing row %d of %d", path, row, n)
		}
		vectors[row] = v
	}
	dims, err := CheckVectors(vectors)
	if err != nil {
		return false, err
	}

	h.mu.Lock()
	h.graph = sg
	h.vectors = vectors
	h.dims = dims
	h.mu.Unlock()
	return n > 0, nil
}

func (h *HNSW) Close() error { return nil }
