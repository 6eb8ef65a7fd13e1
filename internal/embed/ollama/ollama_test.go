// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesage-dev/codesage/internal/embed"
	"github.com/codesage-dev/codesage/internal/embed/ollama"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "all-minilm", req["model"])
		assert.Equal(t, "chest pain", req["prompt"])

		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{0.5, 0.25}})
	}))
	defer srv.Close()

	e := ollama.New(ollama.Config{Endpoint: srv.URL + "/"})
	vec, err := e.Embed(context.Background(), "chest pain")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, vec)
	assert.Equal(t, "ollama/all-minilm", e.ModelID())
}

func TestEmbed_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   sageerr.Code
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "model not loaded", code: sageerr.CodeEmbedUpstreamFailure},
		{name: "bad json", status: http.StatusOK, body: "{", code: sageerr.CodeEmbedResponseInvalid},
		{name: "empty embedding", status: http.StatusOK, body: `{"embedding":[]}`, code: sageerr.CodeEmbedResponseInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := ollama.New(ollama.Config{Endpoint: srv.URL}).Embed(context.Background(), "x")
			require.Error(t, err)
			assert.True(t, sageerr.HasCode(err, tt.code), "got %s", sageerr.CodeOf(err))
		})
	}
}

func TestEmbed_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := ollama.New(ollama.Config{Endpoint: url}).Embed(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, sageerr.IsEmbeddingUnavailable(err))
}

func TestRegistered(t *testing.T) {
	e, err := embed.New(embed.Config{Provider: "ollama", Model: "nomic-embed-text"})
	require.NoError(t, err)
	assert.Equal(t, "ollama/nomic-embed-text", e.ModelID())
}
