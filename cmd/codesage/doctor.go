// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codesage-dev/codesage/internal/config"
	"github.com/codesage-dev/codesage/internal/dataset"
	"github.com/codesage-dev/codesage/internal/embed"
	"github.com/codesage-dev/codesage/internal/index"
	"github.com/codesage-dev/codesage/internal/server"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

func newDoctorCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check the binary, configuration, data files, embedding provider, index backend, a running server, and disk space.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, a)
		},
	}

	cmd.Flags().String("address", "", "server address to check (default: networking.listen)")

	return cmd
}

func runDoctor(cmd *cobra.Command, a *app) error {
	w := cmd.OutOrStdout()
	addr := serverAddress(cmd, a)

	cfg, cfgErr := a.config()
	dataDir := a.v.GetString("data.dir")

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Config", func() string { return checkConfig(a, cfgErr) }},
		{"Data", func() string { return checkData(cfg) }},
		{"Embedder", func() string { return checkEmbedder(cfg) }},
		{"Index", func() string { return checkIndex(cmd.Context(), cfg) }},
		{"Server", func() string { return checkServer(addr) }},
		{"Disk Space", func() string { return checkDiskSpace(dataDir) }},
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

func checkBinary() string {
	return fmt.Sprintf("codesage %s (commit %s)", version, commit)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkConfig(a *app, err error) string {
	if err != nil {
		return fmt.Sprintf("invalid: %s", err)
	}
	if used := a.v.ConfigFileUsed(); used != "" {
		return fmt.Sprintf("loaded from %s", used)
	}
	return "using defaults (no config file found)"
}

func checkData(cfg *config.Config) string {
	if cfg == nil {
		return "skipped (config invalid)"
	}
	r := dataset.Verify(cfg.Data.Dir, manifest(cfg))
	if !r.Ready() {
		names := make([]string, 0, len(r.MissingRequired()))
		for _, f := range r.MissingRequired() {
			names = append(names, f.Name)
		}
		return fmt.Sprintf("missing %s in %s (run 'codesage data fetch')", strings.Join(names, ", "), cfg.Data.Dir)
	}
	var total int64
	for _, f := range r.Files {
		total += f.Size
	}
	return fmt.Sprintf("%d file(s), %s in %s", len(r.Files)-len(r.Missing()), formatBytes(uint64(total)), cfg.Data.Dir)
}

func checkEmbedder(cfg *config.Config) string {
	if cfg == nil {
		return "skipped (config invalid)"
	}
	known := false
	for _, p := range embed.Providers() {
		if p == cfg.Embedder.Provider {
			known = true
			break
		}
	}
	if !known {
		return fmt.Sprintf("unknown provider %q (available: %s)", cfg.Embedder.Provider, strings.Join(embed.Providers(), ", "))
	}

	desc := fmt.Sprintf("%s/%s, %d dimensions", cfg.Embedder.Provider, cfg.Embedder.Model, cfg.Embedder.Dimensions)
	switch cfg.Embedder.Provider {
	case "openai", "google":
		if cfg.Embedder.APIKey == "" {
			return desc + ", no API key configured"
		}
	case "onnx":
		ec := cfg.EmbedConfig()
		for _, p := range []string{ec.ModelPath, ec.TokenizerPath} {
			if _, err := os.Stat(p); err != nil {
				return fmt.Sprintf("%s, missing %s", desc, p)
			}
		}
	}
	return desc
}

func checkIndex(ctx context.Context, cfg *config.Config) string {
	if cfg == nil {
		return "skipped (config invalid)"
	}
	b, err := index.New(cfg.IndexConfig())
	if err != nil {
		return fmt.Sprintf("error: %s", err)
	}
	defer func() { _ = b.Close() }()

	p, ok := b.(index.Persistent)
	if !ok {
		return fmt.Sprintf("%s (built from embeddings at load)", b.Name())
	}
	restored, err := p.Restore(ctx)
	switch {
	case err != nil:
		return fmt.Sprintf("%s, restore failed: %s", b.Name(), err)
	case restored:
		return fmt.Sprintf("%s, %d vectors persisted", b.Name(), b.Len())
	default:
		return fmt.Sprintf("%s, nothing persisted yet (run 'codesage index build')", b.Name())
	}
}

func checkServer(addr string) string {
	var st server.Status
	if err := newServerClient(addr).getJSON("/api/v1/status", &st); err != nil {
		if sageerr.HasCode(err, sageerr.CodeCLIServerNotRunning) {
			return fmt.Sprintf("not running at %s (run 'codesage start')", addr)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s at %s", st.Status, addr)
}

// formatBytes formats a byte count as a human-readable string.
// lowDiskBytes is the free space below which doctor warns. A full
// embeddings matrix for a large catalog runs to a few hundred megabytes.
const lowDiskBytes = 512 * 1024 * 1024

// checkDiskSpace reports free space on the volume holding dataDir, or its
// nearest existing parent when the directory has not been created yet.
func checkDiskSpace(dataDir string) string {
	path := filepath.Clean(dataDir)
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		parent := filepath.Dir(path)
		if parent == path {
			break
		}
		path = parent
	}

	free, err := freeBytes(path)
	if err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}
	if free < lowDiskBytes {
		return formatBytes(free) + " available (low)"
	}
	return formatBytes(free) + " available"
}

func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
		kb = 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
