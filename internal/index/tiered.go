// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package index

import (
	"context"
	"sync"
)

// DefaultTierThreshold is the vector count above which Tiered builds an
// HNSW graph instead of a flat index.
const DefaultTierThreshold = 20000

// Tiered picks Flat for small catalogs and HNSW for large ones at build
// time. A saved HNSW graph is restored regardless of its size.
type Tiered struct {
	mu        sync.RWMutex
	flat      *Flat
	hnsw      *HNSW
	threshold int
	promoted  bool
}

var (
	_ Backend    = (*Tiered)(nil)
	_ Persistent = (*Tiered)(nil)
)

// TieredConfig holds configuration for Tiered.
type TieredConfig struct {
	// Threshold is the vector count above which HNSW is used. Default:
	// DefaultTierThreshold.
	Threshold int
	HNSW      HNSWConfig
}

func NewTiered(cfg TieredConfig) *Tiered {
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultTierThreshold
	}
	return &Tiered{
		flat:      NewFlat(),
		hnsw:      NewHNSW(cfg.HNSW),
		threshold: threshold,
	}
}

func (t *Tiered) Name() string { return "tiered" }

// active returns the index in use. Caller must hold t.mu.
func (t *Tiered) active() Backend {
	if t.promoted {
		return t.hnsw
	}
	return t.flat
}

// Promoted reports whether the HNSW tier is in use.
func (t *Tiered) Promoted() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.promoted
}

func (t *Tiered) Build(ctx context.Context, vectors [][]float32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(vectors) > t.threshold {
		if err := t.hnsw.Build(ctx, vectors); err != nil {
			return err
		}
		t.promoted = true
		t.flat = NewFlat()
		return nil
	}

	if err := t.flat.Build(ctx, vectors); err != nil {
		return err
	}
	t.promoted = false
	return nil
}

func (t *Tiered) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active().Search(ctx, query, k)
}

func (t *Tiered) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active().Len()
}

func (t *Tiered) Dimensions() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active().Dimensions()
}

// Save persists the HNSW tier. The flat tier has nothing to save.
func (t *Tiered) Save(ctx context.Context) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.promoted {
		return nil
	}
	return t.hnsw.Save(ctx)
}

func (t *Tiered) Restore(ctx context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ok, err := t.hnsw.Restore(ctx)
	if err != nil || !ok {
		return false, err
	}
	t.promoted = true
	return true, nil
}

func (t *Tiered) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active().Close()
}
