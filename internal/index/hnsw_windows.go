// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

//go:build windows

package index

import (
	"context"

	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

// HNSW is unavailable on Windows; the graph persistence layer it depends
// on does not build there. Use the flat or sqlite backend instead.
type HNSW struct{}

var (
	_ Backend    = (*HNSW)(nil)
	_ Persistent = (*HNSW)(nil)
)

func NewHNSW(HNSWConfig) *HNSW { return &HNSW{} }

func (h *HNSW) Name() string { return "hnsw" }

func (h *HNSW) Build(context.Context, [][]float32) error {
	return sageerr.New(sageerr.CodeIndexBackendUnsupported, "hnsw backend is not supported on windows",
		sageerr.FieldBackend("hnsw"))
}

func (h *HNSW) Search(context.Context, []float32, int) ([]Neighbor, error) {
	return nil, sageerr.New(sageerr.CodeIndexNotReady, "hnsw backend is not supported on windows")
}

func (h *HNSW) Len() int                              { return 0 }
func (h *HNSW) Dimensions() int                       { return 0 }
func (h *HNSW) Save(context.Context) error            { return nil }
func (h *HNSW) Restore(context.Context) (bool, error) { return false, nil }
func (h *HNSW) Close() error                          { return nil }
