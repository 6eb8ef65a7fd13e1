// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

// Package openai embeds text with the OpenAI embeddings API or any
// compatible endpoint.
package openai

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/codesage-dev/codesage/internal/embed"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "text-embedding-3-small"

func init() {
	embed.RegisterProvider("openai", func(cfg embed.Config) (embed.Embedder, error) {
		return New(Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.Endpoint,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	})
}

// Config holds OpenAI embedder configuration.
type Config struct {
	APIKey     string
	BaseURL    string // optional, useful for testing against a mock server
	Model      string
	Dimensions int
}

// Embedder implements embed.Embedder and embed.BatchEmbedder.
type Embedder struct {
	client openaisdk.Client
	config Config
}

// New creates an OpenAI embedder. Returns an error if the API key is missing.
func New(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, sageerr.New(sageerr.CodeEmbedRequestInvalid, "openai: missing api_key in config",
			sageerr.FieldProvider("openai"))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	// Retries are handled by embed.Guard.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Embedder{client: openaisdk.NewClient(opts...), config: cfg}, nil
}

func (e *Embedder) Dimensions() int { return e.config.Dimensions }
func (e *Embedder) ModelID() string { return "openai/" + e.config.Model }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, openaisdk.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)}, 1)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return e.embed(ctx, openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts}, len(texts))
}

func (e *Embedder) embed(ctx context.Context, input openaisdk.EmbeddingNewParamsInputUnion, want int) ([][]float32, error) {
	params := openaisdk.EmbeddingNewParams{
		Input: input,
		Model: openaisdk.EmbeddingModel(e.config.Model),
	}
	if e.config.Dimensions > 0 {
		params.Dimensions = param.NewOpt(int64(e.config.Dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeEmbedUpstreamFailure, "openai: embeddings request")
	}
	if len(resp.Data) != want {
		return nil, sageerr.Errorf(sageerr.CodeEmbedResponseInvalid,
			"openai: got %d embeddings for %d inputs", len(resp.Data), want)
	}

	out := make([][]float32, want)
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= want {
			return nil, sageerr.Errorf(sageerr.CodeEmbedResponseInvalid, "openai: embedding index %d out of range", d.Index)
		}
		out[d.Index] = toFloat32(d.Embedding)
	}
	for i, v := range out {
		if v == nil {
			return nil, sageerr.Errorf(sageerr.CodeEmbedResponseInvalid, "openai: missing embedding for input %d", i)
		}
	}
	return out, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
