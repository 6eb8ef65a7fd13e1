// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codesage-dev/codesage/internal/config"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
	"github.com/codesage-dev/codesage/pkg/types"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8765", cfg.Networking.Listen)
	assert.Equal(t, "flat", cfg.Index.Backend)
	assert.Equal(t, "onnx", cfg.Embedder.Provider)
	assert.Equal(t, 384, cfg.Embedder.Dimensions)
	assert.Equal(t, 10*time.Second, cfg.Embedder.Timeout)
	assert.Equal(t, "score_desc", cfg.Ranking.Order)
	assert.Equal(t, types.RankOrderScoreDesc, cfg.RankOrder())
	assert.Equal(t, 10, cfg.Ranking.DefaultTopN)
	assert.Equal(t, "codesage.suggest", cfg.NATS.Subject)
	assert.Empty(t, cfg.NATS.URL)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codesage.yaml")
	content := `
networking:
  listen: "0.0.0.0:9000"
index:
  backend: hnsw
  hnsw:
    ef_search: 64
embedder:
  provider: openai
  model: text-embedding-3-small
  dimensions: 512
ranking:
  order: distance_asc
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Networking.Listen)
	assert.Equal(t, "hnsw", cfg.Index.Backend)
	assert.Equal(t, 64, cfg.Index.HNSW.EfSearch)
	assert.Equal(t, 16, cfg.Index.HNSW.M, "unset keys keep defaults")
	assert.Equal(t, "openai", cfg.Embedder.Provider)
	assert.Equal(t, types.RankOrderDistanceAsc, cfg.RankOrder())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CODESAGE_NETWORKING_LISTEN", "10.0.0.1:8080")
	t.Setenv("CODESAGE_EMBEDDER_PROVIDER", "ollama")
	t.Setenv("CODESAGE_RANKING_ORDER", "distance_asc")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:8080", cfg.Networking.Listen)
	assert.Equal(t, "ollama", cfg.Embedder.Provider)
	assert.Equal(t, types.RankOrderDistanceAsc, cfg.RankOrder())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, sageerr.HasCode(err, sageerr.CodeConfigLoadReadFailure))
}

func TestLoad_ValidationRunsAtLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codesage.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ranking:\n  order: best_first\n"), 0o600))

	_, err := config.Load(path)
	require.Error(t, err)
	assert.True(t, sageerr.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "ranking.order")
}

func TestDefaultYAML_MatchesDefaults(t *testing.T) {
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(config.DefaultYAML, &doc))
	for _, section := range []string{"networking", "data", "index", "embedder", "normalizer", "ranking", "nats", "tracing", "logging"} {
		assert.Contains(t, doc, section)
	}

	path := filepath.Join(t.TempDir(), "codesage.yaml")
	require.NoError(t, os.WriteFile(path, config.DefaultYAML, 0o600))
	fromFile, err := config.Load(path)
	require.NoError(t, err)
	defaults, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, defaults, fromFile)
}

func TestBootstrap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "codesage.yaml")

	assert.True(t, config.Bootstrap(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultYAML, data)

	assert.False(t, config.Bootstrap(path), "existing file is left alone")
}

func TestFromViper(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("index.backend", "qdrant")

	_, err := config.FromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index.qdrant.addr")

	v.Set("index.qdrant.addr", "localhost:6334")
	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "localhost:6334", cfg.IndexConfig().QdrantAddr)
}

func validConfig(t *testing.T) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	v.Set("data.dir", "/srv/codesage")
	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	return cfg
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := validConfig(t)
	cfg.Networking.Listen = "nope"
	cfg.Index.Backend = "faiss"
	cfg.Embedder.Retries = -1
	cfg.Logging.Format = "xml"

	errs := cfg.Validate()
	require.Len(t, errs, 4)
	for _, err := range errs {
		assert.True(t, sageerr.HasCode(err, sageerr.CodeConfigValidateInvalidValue))
	}
}

func TestValidate_Listen(t *testing.T) {
	tests := []struct {
		listen  string
		wantErr bool
	}{
		{"127.0.0.1:8080", false},
		{":8080", false},
		{"[::1]:8080", false},
		{"", true},
		{"127.0.0.1", true},
		{"127.0.0.1:0", true},
		{"127.0.0.1:70000", true},
		{"127.0.0.1:abc", true},
	}
	for _, tt := range tests {
		t.Run(tt.listen, func(t *testing.T) {
			cfg := validConfig(t)
			cfg.Networking.Listen = tt.listen
			errs := cfg.Validate()
			if tt.wantErr {
				require.NotEmpty(t, errs)
				assert.Contains(t, errs[0].Error(), "networking.listen")
			} else {
				assert.Empty(t, errs)
			}
		})
	}
}

func TestValidate_Ranking(t *testing.T) {
	cfg := validConfig(t)
	cfg.Ranking.DefaultTopN = 20
	cfg.Ranking.MaxTopN = 5
	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "ranking.max_top_n")
}

func TestValidate_HNSWParams(t *testing.T) {
	cfg := validConfig(t)
	cfg.Index.HNSW.M = 1
	cfg.Index.HNSW.Ml = 1.5
	assert.Len(t, cfg.Validate(), 2)
}

func TestValidate_CORSOrigins(t *testing.T) {
	cfg := validConfig(t)
	cfg.Networking.CORSOrigins = []string{"https://ui.example.org", "*", "ftp://nope"}
	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "cors_origins[2]")
}

func TestDerivedConfigs(t *testing.T) {
	cfg := validConfig(t)
	cfg.Index.Backend = "sqlite"
	cfg.Embedder.Retries = 4
	cfg.Embedder.RateLimit = 5

	assert.Equal(t, filepath.Join("/srv/codesage", "catalog.csv"), cfg.Data.CatalogPath())
	assert.Equal(t, filepath.Join("/srv/codesage", "embeddings.npy"), cfg.Data.EmbeddingsPath())

	ic := cfg.IndexConfig()
	assert.Equal(t, filepath.Join("/srv/codesage", "index"), ic.HNSW.Dir)
	assert.Equal(t, filepath.Join("/srv/codesage", "index.db"), ic.SQLitePath)

	ec := cfg.EmbedConfig()
	assert.Equal(t, filepath.Join("/srv/codesage", "model.onnx"), ec.ModelPath)
	assert.Equal(t, 384, ec.Dimensions)

	g := cfg.GuardOptions()
	assert.Equal(t, 5, g.MaxAttempts)
	assert.Equal(t, 5, g.Burst)
	assert.Equal(t, 3, g.FailThreshold)

	assert.Equal(t, "/abs/catalog.csv", cfg.Data.Path("/abs/catalog.csv"))
}
