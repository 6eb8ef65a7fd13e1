// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package server

import (
	"context"
	"time"

	"github.com/codesage-dev/codesage/internal/catalog"
	"github.com/codesage-dev/codesage/internal/suggest"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
	"github.com/codesage-dev/codesage/pkg/health"
)

// SuggestService runs the suggestion pipeline.
type SuggestService interface {
	Run(ctx context.Context, text string, topN int) (suggest.Outcome, error)
}

// CatalogService browses the loaded catalog. Code returns an error with
// CodeServerEntityNotFound for unknown codes.
type CatalogService interface {
	Codes(ctx context.Context, prefix string, limit int) ([]catalog.Entry, error)
	Code(ctx context.Context, code string) (catalog.Entry, error)
}

// StatusService reports engine state and readiness.
type StatusService interface {
	Status(ctx context.Context) Status
	Readiness(ctx context.Context) health.Report
}

// Status describes the running engine.
type Status struct {
	Status    string         `json:"status" enum:"ready,loading,error" doc:"ready once catalog and index are loaded"`
	Version   string         `json:"version"`
	LoadedAt  *time.Time     `json:"loaded_at,omitempty"`
	LastError string         `json:"last_error,omitempty"`
	RankOrder string         `json:"rank_order"`
	Catalog   int            `json:"catalog_rows"`
	Index     IndexStatus    `json:"index"`
	Embedder  EmbedderStatus `json:"embedder"`
}

// IndexStatus describes the similarity index.
type IndexStatus struct {
	Backend    string `json:"backend,omitempty"`
	Vectors    int    `json:"vectors"`
	Dimensions int    `json:"dimensions"`
}

// EmbedderStatus describes the embedding provider.
type EmbedderStatus struct {
	Model      string          `json:"model"`
	Dimensions int             `json:"dimensions"`
	Health     *health.Metrics `json:"health,omitempty"`
}

// Services holds the dependencies injected into route handlers.
type Services struct {
	suggest SuggestService
	catalog CatalogService
	status  StatusService
}

// NewServices validates and bundles the services.
func NewServices(s SuggestService, c CatalogService, st StatusService) (*Services, error) {
	if s == nil {
		return nil, sageerr.New(sageerr.CodeServerConfigInvalid, "suggest service is required")
	}
	if c == nil {
		return nil, sageerr.New(sageerr.CodeServerConfigInvalid, "catalog service is required")
	}
	if st == nil {
		return nil, sageerr.New(sageerr.CodeServerConfigInvalid, "status service is required")
	}
	return &Services{suggest: s, catalog: c, status: st}, nil
}
