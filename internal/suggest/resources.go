// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package suggest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codesage-dev/codesage/internal/catalog"
	"github.com/codesage-dev/codesage/internal/index"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

// Resources pairs the catalog with the index built over its descriptions.
// Index row i refers to catalog row i.
type Resources struct {
	Catalog *catalog.Catalog
	Index   index.Index
}

// NewResources checks that cat and idx describe the same population.
func NewResources(cat *catalog.Catalog, idx index.Index) (*Resources, error) {
	if cat == nil || idx == nil {
		return nil, sageerr.New(sageerr.CodeSuggestResourcesMissing, "catalog and index are both required")
	}
	if cat.Len() != idx.Len() {
		return nil, sageerr.Errorf(sageerr.CodeIndexMisaligned,
			"catalog has %d rows but index holds %d vectors", cat.Len(), idx.Len())
	}
	return &Resources{Catalog: cat, Index: idx}, nil
}

// Loader produces Resources. It is called by Handle at most once
// successfully.
type Loader func(ctx context.Context) (*Resources, error)

// Handle initialises Resources on first use. Concurrent callers share a
// single in-flight load; a failed load is retried by the next caller.
type Handle struct {
	load Loader

	mu       sync.Mutex
	res      atomic.Pointer[Resources]
	loadedAt atomic.Pointer[time.Time]
	lastErr  atomic.Pointer[error]
}

func NewHandle(load Loader) *Handle {
	return &Handle{load: load}
}

// Preloaded returns a Handle that already holds res.
func Preloaded(res *Resources) *Handle {
	h := &Handle{}
	h.set(res)
	return h
}

func (h *Handle) set(res *Resources) {
	now := time.Now()
	h.res.Store(res)
	h.loadedAt.Store(&now)
	h.lastErr.Store(nil)
}

// Get returns the loaded Resources, loading them if needed. The load runs
// detached from ctx cancellation so an abandoned request cannot poison it.
func (h *Handle) Get(ctx context.Context) (*Resources, error) {
	if r := h.res.Load(); r != nil {
		return r, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if r := h.res.Load(); r != nil {
		return r, nil
	}
	if h.load == nil {
		return nil, sageerr.New(sageerr.CodeSuggestResourcesMissing, "no resource loader configured")
	}

	r, err := h.load(context.WithoutCancel(ctx))
	if err == nil && r == nil {
		err = sageerr.New(sageerr.CodeSuggestResourcesMissing, "resource loader returned nothing")
	}
	if err != nil {
		err = notReady(err)
		h.lastErr.Store(&err)
		return nil, err
	}
	h.set(r)
	return r, nil
}

// Loaded reports whether Resources are available without loading them.
func (h *Handle) Loaded() bool {
	return h.res.Load() != nil
}

// LoadedAt returns when Resources became available.
func (h *Handle) LoadedAt() (time.Time, bool) {
	t := h.loadedAt.Load()
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}

// LastError returns the error from the most recent failed load, if any.
func (h *Handle) LastError() error {
	if p := h.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// notReady classifies a load failure. Misalignment keeps its own code;
// anything else means the index is not ready.
func notReady(err error) error {
	if sageerr.IsDataMisalignment(err) || sageerr.IsIndexNotReady(err) {
		return err
	}
	return sageerr.Reclassify(err, sageerr.CodeSuggestResourcesMissing, "loading catalog and index")
}
