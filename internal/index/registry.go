// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package index

import (
	"slices"
	"sync"

	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

// DefaultBackend is used when Config.Backend is empty.
const DefaultBackend = "flat"

// Config selects and configures an index backend.
type Config struct {
	Backend       string
	HNSW          HNSWConfig
	TierThreshold int

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string

	// QdrantAddr is the gRPC address of a Qdrant server.
	QdrantAddr       string
	QdrantCollection string
}

// Factory creates a backend from its configuration.
type Factory func(cfg Config) (Backend, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named backend. Backend packages
// call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// resolveBackend returns the effective backend name.
func resolveBackend(cfg Config) string {
	if cfg.Backend == "" {
		return DefaultBackend
	}
	return cfg.Backend
}

// New creates the backend named by cfg.Backend.
func New(cfg Config) (Backend, error) {
	name := resolveBackend(cfg)

	factoriesMu.RLock()
	f, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, sageerr.Errorf(sageerr.CodeIndexBackendUnsupported,
			"unsupported index backend %q (registered: %v)", name, Backends())
	}

	b, err := f(cfg)
	if err != nil {
		return nil, sageerr.With(err, sageerr.FieldBackend(name))
	}
	return b, nil
}

func init() {
	RegisterBackend("flat", func(Config) (Backend, error) {
		return NewFlat(), nil
	})
	RegisterBackend("hnsw", func(cfg Config) (Backend, error) {
		return NewHNSW(cfg.HNSW), nil
	})
	RegisterBackend("tiered", func(cfg Config) (Backend, error) {
		return NewTiered(TieredConfig{Threshold: cfg.TierThreshold, HNSW: cfg.HNSW}), nil
	})
}
