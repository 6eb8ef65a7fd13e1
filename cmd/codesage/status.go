// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codesage-dev/codesage/internal/server"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

func newStatusCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server status",
		Long:  "Query a running server's status endpoint and display engine, index and embedder state.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, a)
		},
	}

	cmd.Flags().String("address", "", "server address to check (default: networking.listen)")

	return cmd
}

func serverAddress(cmd *cobra.Command, a *app) string {
	if addr, _ := cmd.Flags().GetString("address"); addr != "" {
		return addr
	}
	return a.v.GetString("networking.listen")
}

func runStatus(cmd *cobra.Command, a *app) error {
	addr := serverAddress(cmd, a)
	out := cmd.OutOrStdout()

	var st server.Status
	if err := newServerClient(addr).getJSON("/api/v1/status", &st); err != nil {
		if sageerr.HasCode(err, sageerr.CodeCLIServerNotRunning) {
			_, _ = fmt.Fprintf(out, "Server at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Server at %s: %s\n", addr, err)
		return nil
	}

	_, _ = fmt.Fprintf(out, "Server at %s: %s\n", addr, st.Status)
	_, _ = fmt.Fprintf(out, "  version:  %s\n", st.Version)
	_, _ = fmt.Fprintf(out, "  ranking:  %s\n", st.RankOrder)
	if st.Status == "ready" {
		_, _ = fmt.Fprintf(out, "  catalog:  %d codes\n", st.Catalog)
		_, _ = fmt.Fprintf(out, "  index:    %s, %d vectors x %d\n", st.Index.Backend, st.Index.Vectors, st.Index.Dimensions)
	}
	_, _ = fmt.Fprintf(out, "  embedder: %s (%d dimensions)", st.Embedder.Model, st.Embedder.Dimensions)
	if h := st.Embedder.Health; h != nil && !h.Available {
		_, _ = fmt.Fprintf(out, ", cooling down after %d failures", h.FailureCount)
	}
	_, _ = fmt.Fprintln(out)
	if st.LastError != "" {
		_, _ = fmt.Fprintf(out, "  last error: %s\n", st.LastError)
	}
	return nil
}
