// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/codesage-dev/codesage/internal/catalog"
	"github.com/codesage-dev/codesage/internal/suggest"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
	"github.com/codesage-dev/codesage/pkg/health"
	"github.com/codesage-dev/codesage/pkg/types"
)

const (
	defaultCodesLimit = 50
	maxCodesLimit     = 1000
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Liveness check",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*healthOutput, error) {
		out := &healthOutput{}
		out.Body.Status = "ok"
		return out, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "readiness",
		Method:      http.MethodGet,
		Path:        "/readyz",
		Summary:     "Readiness check",
		Description: "Loads the engine if needed. Responds 503 until every check passes.",
		Tags:        []string{"system"},
	}, s.handleReadiness)

	huma.Register(s.api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Engine, index and embedder status",
		Tags:        []string{"system"},
	}, s.handleStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "suggest",
		Method:      http.MethodPost,
		Path:        "/api/v1/suggest",
		Summary:     "Suggest codes for clinical text",
		Tags:        []string{"suggest"},
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError, http.StatusServiceUnavailable},
	}, s.handleSuggest)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-codes",
		Method:      http.MethodGet,
		Path:        "/api/v1/codes",
		Summary:     "List catalog codes by prefix",
		Tags:        []string{"catalog"},
	}, s.handleListCodes)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-code",
		Method:      http.MethodGet,
		Path:        "/api/v1/codes/{code}",
		Summary:     "Look up one catalog code",
		Tags:        []string{"catalog"},
	}, s.handleGetCode)
}

type healthOutput struct {
	Body struct {
		Status string `json:"status" example:"ok"`
	}
}

type readinessOutput struct {
	Status int
	Body   health.Report
}

type statusOutput struct {
	Body Status
}

type suggestInput struct {
	Body types.SuggestRequest
}

type suggestOutput struct {
	Body types.SuggestResponse
}

type listCodesInput struct {
	Prefix string `query:"prefix" doc:"Case-insensitive code prefix"`
	Limit  int    `query:"limit" minimum:"0" maximum:"1000" doc:"Maximum entries; 0 selects 50"`
}

type codeView struct {
	Code          string `json:"code"`
	FormattedCode string `json:"formatted_code"`
	Description   string `json:"description"`
}

type listCodesOutput struct {
	Body struct {
		Codes []codeView `json:"codes"`
	}
}

type getCodeInput struct {
	Code string `path:"code"`
}

type getCodeOutput struct {
	Body codeView
}

func (s *Server) handleReadiness(ctx context.Context, _ *struct{}) (*readinessOutput, error) {
	report := s.services.status.Readiness(ctx)
	out := &readinessOutput{Status: http.StatusOK, Body: report}
	if !report.Ready {
		out.Status = http.StatusServiceUnavailable
	}
	return out, nil
}

func (s *Server) handleStatus(ctx context.Context, _ *struct{}) (*statusOutput, error) {
	return &statusOutput{Body: s.services.status.Status(ctx)}, nil
}

func (s *Server) handleSuggest(ctx context.Context, input *suggestInput) (*suggestOutput, error) {
	topN := input.Body.TopN
	if topN == 0 {
		topN = s.cfg.DefaultTopN
	}
	if topN > s.cfg.MaxTopN {
		return nil, apiError(sageerr.Errorf(sageerr.CodeServerRequestInvalid,
			"top_n must not exceed %d, got %d", s.cfg.MaxTopN, topN))
	}

	outcome, err := s.services.suggest.Run(ctx, input.Body.Text, topN)
	if err != nil {
		s.logger.Warn("suggest failed", "request_id", RequestID(ctx), "code", sageerr.CodeOf(err), "error", err)
		return nil, apiError(err)
	}
	return &suggestOutput{Body: types.SuggestResponse{
		RequestID:  RequestID(ctx),
		Normalized: outcome.Normalized,
		Results:    outcome.Suggestions,
	}}, nil
}

func (s *Server) handleListCodes(ctx context.Context, input *listCodesInput) (*listCodesOutput, error) {
	limit := input.Limit
	if limit == 0 {
		limit = defaultCodesLimit
	}
	limit = min(limit, maxCodesLimit)

	entries, err := s.services.catalog.Codes(ctx, input.Prefix, limit)
	if err != nil {
		return nil, apiError(err)
	}
	out := &listCodesOutput{}
	out.Body.Codes = make([]codeView, len(entries))
	for i, e := range entries {
		out.Body.Codes[i] = viewOf(e)
	}
	return out, nil
}

func (s *Server) handleGetCode(ctx context.Context, input *getCodeInput) (*getCodeOutput, error) {
	e, err := s.services.catalog.Code(ctx, input.Code)
	if err != nil {
		return nil, apiError(err)
	}
	return &getCodeOutput{Body: viewOf(e)}, nil
}

func viewOf(e catalog.Entry) codeView {
	return codeView{Code: e.Code, FormattedCode: suggest.FormatCode(e.Code), Description: e.Description}
}

// apiError maps a coded error onto its HTTP status. The error code travels
// in the problem details so clients can branch without parsing messages.
func apiError(err error) error {
	return huma.NewError(sageerr.HTTPStatus(err), err.Error(), &huma.ErrorDetail{
		Location: "error_code",
		Value:    string(sageerr.CodeOf(err)),
	})
}
