// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/codesage-dev/codesage/internal/catalog"
	"github.com/codesage-dev/codesage/internal/server"
	"github.com/codesage-dev/codesage/internal/suggest"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
	"github.com/codesage-dev/codesage/pkg/health"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec registers every route on a server backed by stubs and
// returns the OpenAPI document huma derives from the handler types.
func generateSpec() ([]byte, error) {
	stub := stubService{}
	svc, err := server.NewServices(stub, stub, stub)
	if err != nil {
		return nil, err
	}

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, svc)
	if err != nil {
		return nil, sageerr.Errorf(sageerr.CodeCLISetupFailure, "creating server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// stubService satisfies every service interface. Handlers never run during
// spec generation.
type stubService struct{}

func (stubService) Run(context.Context, string, int) (suggest.Outcome, error) {
	return suggest.Outcome{}, nil
}

func (stubService) Codes(context.Context, string, int) ([]catalog.Entry, error) { return nil, nil }
func (stubService) Code(context.Context, string) (catalog.Entry, error)         { return catalog.Entry{}, nil }
func (stubService) Status(context.Context) server.Status                        { return server.Status{} }
func (stubService) Readiness(context.Context) health.Report                     { return health.NewReport() }
