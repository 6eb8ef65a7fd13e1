// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package config

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/codesage-dev/codesage/internal/embed"
	"github.com/codesage-dev/codesage/internal/index"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
	"github.com/codesage-dev/codesage/pkg/types"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// CODESAGE_EMBEDDER_PROVIDER.
const EnvPrefix = "CODESAGE"

// Config is the top-level codesage configuration.
type Config struct {
	Networking NetworkingConfig `mapstructure:"networking"`
	Data       DataConfig       `mapstructure:"data"`
	Index      IndexConfig      `mapstructure:"index"`
	Embedder   EmbedderConfig   `mapstructure:"embedder"`
	Normalizer NormalizerConfig `mapstructure:"normalizer"`
	Ranking    RankingConfig    `mapstructure:"ranking"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// NetworkingConfig controls the HTTP listener.
type NetworkingConfig struct {
	Listen         string        `mapstructure:"listen"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DataConfig locates the dataset artifacts. Relative file names resolve
// against Dir.
type DataConfig struct {
	Dir        string `mapstructure:"dir"`
	Catalog    string `mapstructure:"catalog"`
	Embeddings string `mapstructure:"embeddings"`
	// SourceURL is the base URL `data fetch` downloads missing artifacts from.
	SourceURL string `mapstructure:"source_url"`
}

// Path resolves name against Dir unless it is absolute or empty.
func (d DataConfig) Path(name string) string {
	if name == "" || filepath.IsAbs(name) || d.Dir == "" {
		return name
	}
	return filepath.Join(d.Dir, name)
}

// CatalogPath returns the resolved catalog file.
func (d DataConfig) CatalogPath() string { return d.Path(d.Catalog) }

// EmbeddingsPath returns the resolved embedding matrix file.
func (d DataConfig) EmbeddingsPath() string { return d.Path(d.Embeddings) }

// IndexConfig selects the similarity index backend.
type IndexConfig struct {
	Backend       string       `mapstructure:"backend"`
	TierThreshold int          `mapstructure:"tier_threshold"`
	SQLitePath    string       `mapstructure:"sqlite_path"`
	HNSW          HNSWConfig   `mapstructure:"hnsw"`
	Qdrant        QdrantConfig `mapstructure:"qdrant"`
}

// HNSWConfig tunes the approximate graph index.
type HNSWConfig struct {
	Dir      string  `mapstructure:"dir"`
	M        int     `mapstructure:"m"`
	EfSearch int     `mapstructure:"ef_search"`
	Ml       float64 `mapstructure:"ml"`
}

// QdrantConfig points at a Qdrant server.
type QdrantConfig struct {
	Addr       string `mapstructure:"addr"`
	Collection string `mapstructure:"collection"`
}

// EmbedderConfig selects the embedding provider and its resilience policy.
type EmbedderConfig struct {
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	Endpoint   string `mapstructure:"endpoint"`
	APIKey     string `mapstructure:"api_key"`

	ModelPath     string `mapstructure:"model_path"`
	TokenizerPath string `mapstructure:"tokenizer_path"`
	RuntimePath   string `mapstructure:"runtime_path"`
	MaxSeqLen     int    `mapstructure:"max_seq_len"`

	CacheSize int           `mapstructure:"cache_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Retries   int           `mapstructure:"retries"`
	Threshold int           `mapstructure:"fail_threshold"`
	Cooldown  time.Duration `mapstructure:"cooldown"`
	RateLimit float64       `mapstructure:"rate_limit"`
	BatchSize int           `mapstructure:"batch_size"`
}

// NormalizerConfig points at an optional lexicon that extends the built-in
// clinical gazetteer.
type NormalizerConfig struct {
	Lexicon string `mapstructure:"lexicon"`
}

// RankingConfig controls result ordering and request bounds.
type RankingConfig struct {
	Order       string `mapstructure:"order"`
	DefaultTopN int    `mapstructure:"default_top_n"`
	MaxTopN     int    `mapstructure:"max_top_n"`
}

// NATSConfig enables the NATS request/reply transport when URL is set.
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
	Queue   string `mapstructure:"queue"`
}

// TracingConfig toggles OpenTelemetry instrumentation.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultDataDir returns ~/.codesage/data, or "data" when the home
// directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(home, ".codesage", "data")
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("networking.listen", "127.0.0.1:8765")
	v.SetDefault("networking.cors_origins", []string{})
	v.SetDefault("networking.rate_limit_rps", 20.0)
	v.SetDefault("networking.rate_limit_burst", 40)
	v.SetDefault("networking.request_timeout", 30*time.Second)

	v.SetDefault("data.dir", DefaultDataDir())
	v.SetDefault("data.catalog", "catalog.csv")
	v.SetDefault("data.embeddings", "embeddings.npy")
	v.SetDefault("data.source_url", "")

	v.SetDefault("index.backend", index.DefaultBackend)
	v.SetDefault("index.tier_threshold", index.DefaultTierThreshold)
	v.SetDefault("index.sqlite_path", "")
	v.SetDefault("index.hnsw.dir", "")
	v.SetDefault("index.hnsw.m", 16)
	v.SetDefault("index.hnsw.ef_search", 100)
	v.SetDefault("index.hnsw.ml", 0.25)
	v.SetDefault("index.qdrant.addr", "")
	v.SetDefault("index.qdrant.collection", "codesage_catalog")

	v.SetDefault("embedder.provider", "onnx")
	v.SetDefault("embedder.model", "all-MiniLM-L6-v2")
	v.SetDefault("embedder.dimensions", 384)
	v.SetDefault("embedder.endpoint", "")
	v.SetDefault("embedder.api_key", "")
	v.SetDefault("embedder.model_path", "model.onnx")
	v.SetDefault("embedder.tokenizer_path", "tokenizer.json")
	v.SetDefault("embedder.runtime_path", "")
	v.SetDefault("embedder.max_seq_len", 256)
	v.SetDefault("embedder.cache_size", 1024)
	v.SetDefault("embedder.timeout", 10*time.Second)
	v.SetDefault("embedder.retries", 2)
	v.SetDefault("embedder.fail_threshold", 3)
	v.SetDefault("embedder.cooldown", embed.DefaultHealthCooldown)
	v.SetDefault("embedder.rate_limit", 0.0)
	v.SetDefault("embedder.batch_size", 64)

	v.SetDefault("normalizer.lexicon", "")

	v.SetDefault("ranking.order", string(types.RankOrderScoreDesc))
	v.SetDefault("ranking.default_top_n", 10)
	v.SetDefault("ranking.max_top_n", 100)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "codesage.suggest")
	v.SetDefault("nats.queue", "codesage")

	v.SetDefault("tracing.enabled", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// SetupEnv binds CODESAGE_* environment variables to config keys.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from path (or defaults only when empty) with
// environment overrides applied, then validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, sageerr.Errorf(sageerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, sageerr.Errorf(sageerr.CodeConfigParseInvalidFormat, "decoding config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}
	return &cfg, nil
}

// EmbedConfig returns the provider configuration with local model paths
// resolved against the data directory.
func (c *Config) EmbedConfig() embed.Config {
	e := c.Embedder
	return embed.Config{
		Provider:      e.Provider,
		Model:         e.Model,
		Dimensions:    e.Dimensions,
		Endpoint:      e.Endpoint,
		APIKey:        e.APIKey,
		Timeout:       e.Timeout,
		ModelPath:     c.Data.Path(e.ModelPath),
		TokenizerPath: c.Data.Path(e.TokenizerPath),
		RuntimePath:   e.RuntimePath,
		MaxSeqLen:     e.MaxSeqLen,
	}
}

// GuardOptions returns the retry and cooldown policy for the embedder.
func (c *Config) GuardOptions() embed.GuardOptions {
	opts := embed.DefaultGuardOptions()
	opts.MaxAttempts = c.Embedder.Retries + 1
	opts.Timeout = c.Embedder.Timeout
	opts.FailThreshold = c.Embedder.Threshold
	opts.Cooldown = c.Embedder.Cooldown
	opts.RateLimit = c.Embedder.RateLimit
	if opts.RateLimit > 0 {
		opts.Burst = max(1, int(opts.RateLimit))
	}
	return opts
}

// IndexConfig returns the backend configuration. Persisted artifacts
// default to the data directory.
func (c *Config) IndexConfig() index.Config {
	hnswDir := c.Index.HNSW.Dir
	if hnswDir == "" {
		hnswDir = "index"
	}
	sqlitePath := c.Index.SQLitePath
	if sqlitePath == "" && c.Index.Backend == "sqlite" {
		sqlitePath = "index.db"
	}
	return index.Config{
		Backend: c.Index.Backend,
		HNSW: index.HNSWConfig{
			Dir:      c.Data.Path(hnswDir),
			M:        c.Index.HNSW.M,
			EfSearch: c.Index.HNSW.EfSearch,
			Ml:       c.Index.HNSW.Ml,
		},
		TierThreshold:    c.Index.TierThreshold,
		SQLitePath:       c.Data.Path(sqlitePath),
		QdrantAddr:       c.Index.Qdrant.Addr,
		QdrantCollection: c.Index.Qdrant.Collection,
	}
}

// RankOrder returns the parsed ranking order. Validate rejects unknown
// values, so the zero fallback only applies to unvalidated configs.
func (c *Config) RankOrder() types.RankOrder {
	o, err := types.ParseRankOrder(c.Ranking.Order)
	if err != nil {
		return types.RankOrderScoreDesc
	}
	return o
}

// Validate checks the configuration for logical errors. It collects every
// problem rather than stopping at the first.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateNetworking()...)
	errs = append(errs, c.validateData()...)
	errs = append(errs, c.validateIndex()...)
	errs = append(errs, c.validateEmbedder()...)
	errs = append(errs, c.validateRanking()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

func invalid(format string, args ...any) error {
	return sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func (c *Config) validateNetworking() []error {
	var errs []error

	if c.Networking.Listen == "" {
		errs = append(errs, invalid("networking.listen must not be empty"))
	} else if _, portStr, err := net.SplitHostPort(c.Networking.Listen); err != nil {
		errs = append(errs, invalid("networking.listen must be a valid host:port address, got %q: %w", c.Networking.Listen, err))
	} else if port, err := strconv.Atoi(portStr); err != nil {
		errs = append(errs, invalid("networking.listen port must be a number, got %q", portStr))
	} else if port < 1 || port > 65535 {
		errs = append(errs, invalid("networking.listen port must be between 1 and 65535, got %d", port))
	}

	if c.Networking.RateLimitRPS < 0 {
		errs = append(errs, invalid("networking.rate_limit_rps must not be negative, got %g", c.Networking.RateLimitRPS))
	}
	if c.Networking.RateLimitRPS > 0 && c.Networking.RateLimitBurst < 1 {
		errs = append(errs, invalid("networking.rate_limit_burst must be at least 1 when rate limiting is on, got %d", c.Networking.RateLimitBurst))
	}
	for i, origin := range c.Networking.CORSOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			errs = append(errs, invalid("networking.cors_origins[%d] must be an http(s) origin or \"*\", got %q", i, origin))
		}
	}

	return errs
}

func (c *Config) validateData() []error {
	var errs []error
	if c.Data.Catalog == "" {
		errs = append(errs, invalid("data.catalog must not be empty"))
	}
	if c.Data.Embeddings == "" {
		errs = append(errs, invalid("data.embeddings must not be empty"))
	}
	if u := c.Data.SourceURL; u != "" && !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		errs = append(errs, invalid("data.source_url must be an http(s) URL, got %q", u))
	}
	return errs
}

func (c *Config) validateIndex() []error {
	var errs []error

	valid := map[string]bool{"flat": true, "hnsw": true, "tiered": true, "sqlite": true, "qdrant": true}
	if !valid[c.Index.Backend] {
		errs = append(errs, invalid("index.backend must be one of [flat, hnsw, tiered, sqlite, qdrant], got %q", c.Index.Backend))
	}
	if c.Index.Backend == "qdrant" && c.Index.Qdrant.Addr == "" {
		errs = append(errs, invalid("index.qdrant.addr is required for the qdrant backend"))
	}
	if c.Index.HNSW.M < 2 {
		errs = append(errs, invalid("index.hnsw.m must be at least 2, got %d", c.Index.HNSW.M))
	}
	if c.Index.HNSW.EfSearch < 1 {
		errs = append(errs, invalid("index.hnsw.ef_search must be at least 1, got %d", c.Index.HNSW.EfSearch))
	}
	if c.Index.HNSW.Ml <= 0 || c.Index.HNSW.Ml >= 1 {
		errs = append(errs, invalid("index.hnsw.ml must be in (0, 1), got %g", c.Index.HNSW.Ml))
	}
	if c.Index.TierThreshold < 0 {
		errs = append(errs, invalid("index.tier_threshold must not be negative, got %d", c.Index.TierThreshold))
	}

	return errs
}

func (c *Config) validateEmbedder() []error {
	var errs []error
	e := c.Embedder

	if e.Provider == "" {
		errs = append(errs, invalid("embedder.provider must not be empty"))
	}
	if e.Dimensions < 0 {
		errs = append(errs, invalid("embedder.dimensions must not be negative, got %d", e.Dimensions))
	}
	if e.Provider == "hash" && e.Dimensions == 0 {
		errs = append(errs, invalid("embedder.dimensions is required for the hash provider"))
	}
	if e.CacheSize < 0 {
		errs = append(errs, invalid("embedder.cache_size must not be negative, got %d", e.CacheSize))
	}
	if e.Retries < 0 {
		errs = append(errs, invalid("embedder.retries must not be negative, got %d", e.Retries))
	}
	if e.Threshold < 0 {
		errs = append(errs, invalid("embedder.fail_threshold must not be negative, got %d", e.Threshold))
	}
	if e.Timeout < 0 || e.Cooldown < 0 {
		errs = append(errs, invalid("embedder.timeout and embedder.cooldown must not be negative"))
	}
	if e.RateLimit < 0 {
		errs = append(errs, invalid("embedder.rate_limit must not be negative, got %g", e.RateLimit))
	}
	if e.BatchSize < 0 {
		errs = append(errs, invalid("embedder.batch_size must not be negative, got %d", e.BatchSize))
	}

	return errs
}

func (c *Config) validateRanking() []error {
	var errs []error

	if _, err := types.ParseRankOrder(c.Ranking.Order); err != nil {
		errs = append(errs, invalid("ranking.order must be one of [score_desc, distance_asc], got %q", c.Ranking.Order))
	}
	if c.Ranking.DefaultTopN < 1 {
		errs = append(errs, invalid("ranking.default_top_n must be at least 1, got %d", c.Ranking.DefaultTopN))
	}
	if c.Ranking.MaxTopN < c.Ranking.DefaultTopN {
		errs = append(errs, invalid("ranking.max_top_n (%d) must not be below ranking.default_top_n (%d)",
			c.Ranking.MaxTopN, c.Ranking.DefaultTopN))
	}

	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, invalid("logging.level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, invalid("logging.format must be one of [text, json], got %q", c.Logging.Format))
	}

	return errs
}
