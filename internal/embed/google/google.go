// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

// Package google embeds text with the Gemini API.
package google

import (
	"context"

	"google.golang.org/genai"

	"github.com/codesage-dev/codesage/internal/embed"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

const DefaultModel = "text-embedding-004"

// Task type sent with every request; suggestions compare short clinical
// phrases against catalog descriptions.
const taskType = "SEMANTIC_SIMILARITY"

func init() {
	embed.RegisterProvider("google", func(cfg embed.Config) (embed.Embedder, error) {
		return New(context.Background(), Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.Endpoint,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	})
}

// Config holds Google embedder configuration.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

type Embedder struct {
	client *genai.Client
	config Config
}

// New creates a Gemini embedder. Returns an error if the API key is missing.
func New(ctx context.Context, cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, sageerr.New(sageerr.CodeEmbedRequestInvalid, "google: missing api_key in config",
			sageerr.FieldProvider("google"))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeEmbedUpstreamFailure, "google: creating client")
	}
	return &Embedder{client: client, config: cfg}, nil
}

func (e *Embedder) Dimensions() int { return e.config.Dimensions }
func (e *Embedder) ModelID() string { return "google/" + e.config.Model }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}

	cfg := &genai.EmbedContentConfig{TaskType: taskType}
	if e.config.Dimensions > 0 {
		cfg.OutputDimensionality = genai.Ptr(int32(e.config.Dimensions))
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.config.Model, contents, cfg)
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeEmbedUpstreamFailure, "google: embed content")
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, sageerr.Errorf(sageerr.CodeEmbedResponseInvalid,
			"google: got %d embeddings for %d inputs", got, len(texts))
	}

	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, sageerr.Errorf(sageerr.CodeEmbedResponseInvalid, "google: empty embedding for input %d", i)
		}
		out[i] = append([]float32(nil), emb.Values...)
	}
	return out, nil
}
