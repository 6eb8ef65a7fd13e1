// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package index

import "path/filepath"

const hnswFileName = "hnsw.bin"

// HNSWConfig holds configuration parameters for the HNSW backend.
type HNSWConfig struct {
	// Dir is the directory where the graph is persisted. If empty, the
	// graph is in-memory only and Save is a no-op.
	Dir string

	// M is the maximum number of neighbours per node. Default: 16.
	M int

	// EfSearch is the number of candidates considered during search. Default: 100.
	EfSearch int

	// Ml is the level generation factor. Default: 0.25.
	Ml float64
}

func (c HNSWConfig) withDefaults() HNSWConfig {
	if c.M == 0 {
		c.M = 16
	}
	if c.EfSearch == 0 {
		c.EfSearch = 100
	}
	if c.Ml == 0 {
		c.Ml = 0.25
	}
	return c
}

func (c HNSWConfig) path() string {
	if c.Dir == "" {
		return ""
	}
	return filepath.Join(c.Dir, hnswFileName)
}
