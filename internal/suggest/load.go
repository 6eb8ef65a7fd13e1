// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package suggest

import (
	"context"
	"log/slog"

	"github.com/codesage-dev/codesage/internal/catalog"
	"github.com/codesage-dev/codesage/internal/embed"
	"github.com/codesage-dev/codesage/internal/index"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

// Source locates the artifacts a FileLoader reads.
type Source struct {
	CatalogPath    string
	EmbeddingsPath string
	Index          index.Config
	// Dimensions, when positive, must match the index dimension.
	Dimensions int
	Logger     *slog.Logger
}

// FileLoader returns a Loader that reads the catalog, then restores a
// persisted index or builds one from the embedding matrix.
func FileLoader(src Source) Loader {
	return func(ctx context.Context) (*Resources, error) {
		logger := src.Logger
		if logger == nil {
			logger = slog.Default()
		}

		cat, err := catalog.Load(src.CatalogPath)
		if err != nil {
			return nil, err
		}
		logger.Info("catalog loaded", "path", src.CatalogPath, "rows", cat.Len())

		idx, err := openIndex(ctx, src, cat.Len(), logger)
		if err != nil {
			return nil, err
		}

		if d := idx.Dimensions(); src.Dimensions > 0 && d > 0 && d != src.Dimensions {
			_ = idx.Close()
			return nil, sageerr.Errorf(sageerr.CodeIndexMisaligned,
				"embedder produces %d dimensions but index has %d", src.Dimensions, d)
		}

		res, err := NewResources(cat, idx)
		if err != nil {
			_ = idx.Close()
			return nil, err
		}
		logger.Info("similarity index ready", "backend", idx.Name(), "vectors", idx.Len(), "dimensions", idx.Dimensions())
		return res, nil
	}
}

func openIndex(ctx context.Context, src Source, rows int, logger *slog.Logger) (index.Backend, error) {
	idx, err := index.New(src.Index)
	if err != nil {
		return nil, err
	}

	if p, ok := idx.(index.Persistent); ok {
		restored, err := p.Restore(ctx)
		if err != nil {
			_ = idx.Close()
			return nil, err
		}
		if restored && idx.Len() == rows {
			logger.Info("restored persisted index", "backend", idx.Name(), "vectors", idx.Len())
			return idx, nil
		}
		if restored {
			logger.Warn("persisted index does not match catalog, rebuilding",
				"backend", idx.Name(), "vectors", idx.Len(), "catalog_rows", rows)
		}
	}

	if src.EmbeddingsPath == "" {
		_ = idx.Close()
		return nil, sageerr.New(sageerr.CodeSuggestResourcesMissing, "no persisted index and no embeddings file configured",
			sageerr.FieldBackend(idx.Name()))
	}
	m, err := index.LoadMatrix(src.EmbeddingsPath)
	if err != nil {
		_ = idx.Close()
		return nil, err
	}
	if m.Rows != rows {
		_ = idx.Close()
		return nil, sageerr.Errorf(sageerr.CodeIndexMisaligned,
			"catalog has %d rows but embeddings file holds %d vectors", rows, m.Rows)
	}

	if err := idx.Build(ctx, m.Vectors()); err != nil {
		_ = idx.Close()
		return nil, err
	}
	if p, ok := idx.(index.Persistent); ok {
		if err := p.Save(ctx); err != nil {
			logger.Warn("could not persist index", "backend", idx.Name(), "error", err)
		}
	}
	return idx, nil
}

// BuildOptions controls BuildIndex.
type BuildOptions struct {
	Index          index.Config
	EmbeddingsPath string
	BatchSize      int
	Progress       func(done, total int)
}

// BuildIndex embeds every catalog description, writes the matrix to
// opts.EmbeddingsPath and builds (and persists) the configured backend.
func BuildIndex(ctx context.Context, cat *catalog.Catalog, e embed.Embedder, opts BuildOptions) (index.Backend, error) {
	vecs, err := embed.EmbedAll(ctx, e, cat.Descriptions(), opts.BatchSize, opts.Progress)
	if err != nil {
		return nil, err
	}
	m, err := index.NewMatrix(vecs)
	if err != nil {
		return nil, err
	}
	if opts.EmbeddingsPath != "" {
		if err := index.SaveMatrix(opts.EmbeddingsPath, m); err != nil {
			return nil, err
		}
	}

	idx, err := index.New(opts.Index)
	if err != nil {
		return nil, err
	}
	if err := idx.Build(ctx, vecs); err != nil {
		_ = idx.Close()
		return nil, err
	}
	if p, ok := idx.(index.Persistent); ok {
		if err := p.Save(ctx); err != nil {
			_ = idx.Close()
			return nil, err
		}
	}
	return idx, nil
}
