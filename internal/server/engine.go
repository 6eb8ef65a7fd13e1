// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/codesage-dev/codesage/internal/catalog"
	"github.com/codesage-dev/codesage/internal/dataset"
	"github.com/codesage-dev/codesage/internal/embed"
	"github.com/codesage-dev/codesage/internal/suggest"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
	"github.com/codesage-dev/codesage/pkg/health"
)

// EngineService serves every Services interface from a suggest.Engine.
type EngineService struct {
	Engine  *suggest.Engine
	Version string
	// Artifacts, when set, is consulted by the readiness check.
	Artifacts func() dataset.Report
}

// NewEngineServices wires an EngineService into Services.
func NewEngineServices(e *EngineService) (*Services, error) {
	if e == nil || e.Engine == nil {
		return nil, sageerr.New(sageerr.CodeServerConfigInvalid, "engine is required")
	}
	return NewServices(e, e, e)
}

func (e *EngineService) Run(ctx context.Context, text string, topN int) (suggest.Outcome, error) {
	return e.Engine.Run(ctx, text, topN)
}

func (e *EngineService) Codes(ctx context.Context, prefix string, limit int) ([]catalog.Entry, error) {
	res, err := e.Engine.Handle().Get(ctx)
	if err != nil {
		return nil, err
	}
	return res.Catalog.WithPrefix(prefix, limit), nil
}

func (e *EngineService) Code(ctx context.Context, code string) (catalog.Entry, error) {
	res, err := e.Engine.Handle().Get(ctx)
	if err != nil {
		return catalog.Entry{}, err
	}
	entry, ok := res.Catalog.Lookup(strings.ReplaceAll(code, ".", ""))
	if !ok {
		return catalog.Entry{}, sageerr.Errorf(sageerr.CodeServerEntityNotFound, "code %q not found", code)
	}
	return entry, nil
}

// Status never triggers a load.
func (e *EngineService) Status(_ context.Context) Status {
	h := e.Engine.Handle()
	emb := e.Engine.Embedder()
	st := Status{
		Status:    "loading",
		Version:   e.Version,
		RankOrder: string(e.Engine.Order()),
		Embedder:  EmbedderStatus{Model: emb.ModelID(), Dimensions: emb.Dimensions()},
	}
	if m, ok := embed.HealthOf(emb); ok {
		st.Embedder.Health = &m
	}
	if err := h.LastError(); err != nil {
		st.Status = "error"
		st.LastError = err.Error()
	}
	if t, ok := h.LoadedAt(); ok {
		st.LoadedAt = &t
	}
	if !h.Loaded() {
		return st
	}

	res, err := h.Get(context.Background())
	if err != nil {
		return st
	}
	st.Status = "ready"
	st.Catalog = res.Catalog.Len()
	st.Index = IndexStatus{Vectors: res.Index.Len(), Dimensions: res.Index.Dimensions()}
	if n, ok := res.Index.(interface{ Name() string }); ok {
		st.Index.Backend = n.Name()
	}
	return st
}

// Readiness loads the engine if needed and reports on artifacts, engine
// and embedder health.
func (e *EngineService) Readiness(ctx context.Context) health.Report {
	var checks []health.Check

	if e.Artifacts != nil {
		r := e.Artifacts()
		c := health.Check{Name: "artifacts", OK: r.Ready(), Detail: "all required data files present"}
		if err := r.Err(); err != nil {
			c.Detail = err.Error()
		}
		checks = append(checks, c)
	}

	engine := health.Check{Name: "engine", OK: true}
	if res, err := e.Engine.Handle().Get(ctx); err != nil {
		engine.OK = false
		engine.Detail = err.Error()
	} else {
		engine.Detail = fmt.Sprintf("%d codes indexed", res.Index.Len())
	}
	checks = append(checks, engine)

	emb := health.Check{Name: "embedder", OK: true, Detail: e.Engine.Embedder().ModelID()}
	if m, ok := embed.HealthOf(e.Engine.Embedder()); ok && !m.Available {
		emb.OK = false
		emb.Detail = fmt.Sprintf("%s cooling down after %d failures", emb.Detail, m.FailureCount)
	}
	checks = append(checks, emb)

	return health.NewReport(checks...)
}
