// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package embed

import (
	"fmt"
	"slices"
	"sync"
	"time"

	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

// Config selects and parameterises an embedding provider.
type Config struct {
	Provider   string
	Model      string
	Dimensions int
	Endpoint   string
	APIKey     string
	Timeout    time.Duration

	// Local model files, used by the onnx provider.
	ModelPath     string
	TokenizerPath string
	RuntimePath   string
	MaxSeqLen     int
}

// Factory builds an Embedder from its configuration.
type Factory func(cfg Config) (Embedder, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterProvider registers a factory for a named provider. Provider
// packages call this from init(). This function is goroutine-safe.
func RegisterProvider(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Providers returns the registered provider names, sorted.
func Providers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New builds the embedder named by cfg.Provider.
func New(cfg Config) (Embedder, error) {
	factoriesMu.RLock()
	f, ok := factories[cfg.Provider]
	factoriesMu.RUnlock()
	if !ok {
		return nil, sageerr.New(sageerr.CodeEmbedProviderUnknown,
			fmt.Sprintf("unknown embedding provider %q (registered: %v)", cfg.Provider, Providers()),
			sageerr.FieldProvider(cfg.Provider))
	}
	e, err := f(cfg)
	if err != nil {
		return nil, sageerr.With(err, sageerr.FieldProvider(cfg.Provider))
	}
	return e, nil
}

func init() {
	RegisterProvider("hash", func(cfg Config) (Embedder, error) {
		return NewHashing(cfg.Dimensions)
	})
}
