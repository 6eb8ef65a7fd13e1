// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package main

import (
	"log/slog"

	"github.com/codesage-dev/codesage/internal/config"
	"github.com/codesage-dev/codesage/internal/dataset"
	"github.com/codesage-dev/codesage/internal/embed"
	"github.com/codesage-dev/codesage/internal/normalize"
	"github.com/codesage-dev/codesage/internal/suggest"
)

// stack holds the wired components of a running engine.
type stack struct {
	cfg      *config.Config
	embedder embed.Embedder
	engine   *suggest.Engine
}

// Close releases the embedder.
func (s *stack) Close() error {
	if s == nil {
		return nil
	}
	return embed.Close(s.embedder)
}

// buildEmbedder creates the configured provider wrapped with the retry
// guard and the vector cache.
func buildEmbedder(cfg *config.Config, logger *slog.Logger) (embed.Embedder, error) {
	provider, err := embed.New(cfg.EmbedConfig())
	if err != nil {
		return nil, err
	}
	guarded, err := embed.NewGuard(provider, cfg.GuardOptions(), logger)
	if err != nil {
		_ = embed.Close(provider)
		return nil, err
	}
	return embed.NewCache(guarded, cfg.Embedder.CacheSize), nil
}

// buildNormalizer returns the default normalizer, extended with the
// configured lexicon file when set.
func buildNormalizer(cfg *config.Config) (*normalize.Normalizer, error) {
	if cfg.Normalizer.Lexicon == "" {
		return normalize.NewDefault()
	}
	base, err := normalize.DefaultLexicon()
	if err != nil {
		return nil, err
	}
	extra, err := normalize.LoadLexicon(cfg.Normalizer.Lexicon)
	if err != nil {
		return nil, err
	}
	rec := normalize.Chain(normalize.NewGazetteer(base.Merge(extra)), normalize.NewPatterns())
	return normalize.New(rec), nil
}

// source describes where the engine loads its catalog and index from.
func source(cfg *config.Config, dims int, logger *slog.Logger) suggest.Source {
	return suggest.Source{
		CatalogPath:    cfg.Data.CatalogPath(),
		EmbeddingsPath: cfg.Data.EmbeddingsPath(),
		Index:          cfg.IndexConfig(),
		Dimensions:     dims,
		Logger:         logger,
	}
}

// manifest lists the data files the engine reads. The local model files
// are optional because only the onnx provider needs them.
func manifest(cfg *config.Config) dataset.Manifest {
	var optional []string
	if cfg.Embedder.Provider == "onnx" {
		optional = append(optional, cfg.Embedder.ModelPath, cfg.Embedder.TokenizerPath)
	}
	return dataset.DefaultManifest(cfg.Data.Catalog, cfg.Data.Embeddings, optional...)
}

// buildStack wires normalizer, embedder, lazy resource handle and engine.
// Nothing is read from disk until the first request.
func buildStack(cfg *config.Config, logger *slog.Logger) (*stack, error) {
	n, err := buildNormalizer(cfg)
	if err != nil {
		return nil, err
	}
	e, err := buildEmbedder(cfg, logger)
	if err != nil {
		return nil, err
	}

	h := suggest.NewHandle(suggest.FileLoader(source(cfg, e.Dimensions(), logger)))
	eng, err := suggest.New(n, e, h, suggest.Options{Order: cfg.RankOrder(), Logger: logger})
	if err != nil {
		_ = embed.Close(e)
		return nil, err
	}
	return &stack{cfg: cfg, embedder: e, engine: eng}, nil
}
