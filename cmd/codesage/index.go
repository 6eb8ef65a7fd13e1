// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/codesage-dev/codesage/internal/catalog"
	"github.com/codesage-dev/codesage/internal/embed"
	"github.com/codesage-dev/codesage/internal/suggest"
)

func newIndexCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the similarity index",
	}
	cmd.AddCommand(newIndexBuildCmd(a))
	return cmd
}

func newIndexBuildCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Embed every catalog description and build the index",
		Long: `Embed every catalog description with the configured provider, write the
embedding matrix as msgpack, and build (and persist, for persistent
backends) the configured index.

Point data.embeddings at the written file to serve it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndexBuild(cmd, a)
		},
	}

	cmd.Flags().String("out", "", "embedding matrix output path (default: data.embeddings with a .msgpack extension)")
	cmd.Flags().Int("batch-size", 0, "descriptions per embedding batch (default: embedder.batch_size)")

	return cmd
}

// matrixPath returns the msgpack sibling of the configured embeddings file.
func matrixPath(embeddings string) string {
	ext := filepath.Ext(embeddings)
	if strings.EqualFold(ext, ".msgpack") {
		return embeddings
	}
	return strings.TrimSuffix(embeddings, ext) + ".msgpack"
}

func runIndexBuild(cmd *cobra.Command, a *app) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = matrixPath(cfg.Data.EmbeddingsPath())
	}
	batch, _ := cmd.Flags().GetInt("batch-size")
	if batch <= 0 {
		batch = cfg.Embedder.BatchSize
	}

	cat, err := catalog.Load(cfg.Data.CatalogPath())
	if err != nil {
		return err
	}
	e, err := buildEmbedder(cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() { _ = embed.Close(e) }()

	start := time.Now()
	step := max(cat.Len()/10, 1)
	logged := 0
	idx, err := suggest.BuildIndex(cmd.Context(), cat, e, suggest.BuildOptions{
		Index:          cfg.IndexConfig(),
		EmbeddingsPath: out,
		BatchSize:      batch,
		Progress: func(done, total int) {
			if done-logged >= step || done == total {
				logged = done
				a.logger.Info("embedding catalog", "done", done, "total", total)
			}
		},
	})
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d codes (%d dimensions, %s backend) in %s\nEmbeddings written to %s\n",
		idx.Len(), idx.Dimensions(), idx.Name(), time.Since(start).Round(time.Millisecond), out)
	return err
}
