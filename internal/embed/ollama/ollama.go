// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

// Package ollama embeds text through a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/codesage-dev/codesage/internal/embed"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

const (
	DefaultEndpoint = "http://localhost:11434"
	DefaultModel    = "all-minilm"
)

func init() {
	embed.RegisterProvider("ollama", func(cfg embed.Config) (embed.Embedder, error) {
		return New(Config{
			Endpoint:   cfg.Endpoint,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		}), nil
	})
}

type Config struct {
	Endpoint   string
	Model      string
	Dimensions int
	HTTPClient *http.Client
}

type Embedder struct {
	baseURL    string
	model      string
	dims       int
	httpClient *http.Client
}

func New(cfg Config) *Embedder {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Embedder{
		baseURL:    strings.TrimRight(cfg.Endpoint, "/"),
		model:      cfg.Model,
		dims:       cfg.Dimensions,
		httpClient: cfg.HTTPClient,
	}
}

func (e *Embedder) Dimensions() int { return e.dims }
func (e *Embedder) ModelID() string { return "ollama/" + e.model }

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeEmbedRequestInvalid, "ollama: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeEmbedRequestInvalid, "ollama: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeEmbedUpstreamFailure, "ollama: request to %s", e.baseURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, sageerr.New(sageerr.CodeEmbedUpstreamFailure,
			fmt.Sprintf("ollama: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			sageerr.Field("status", resp.StatusCode))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeEmbedResponseInvalid, "ollama: decode response")
	}
	if len(out.Embedding) == 0 {
		return nil, sageerr.New(sageerr.CodeEmbedResponseInvalid, "ollama: empty embedding in response")
	}

	vec := make([]float32, len(out.Embedding))
	for i, v := range out.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
