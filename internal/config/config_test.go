// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/udbhav-health/udbhav/internal/config"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "udbhav.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// validConfig returns a configuration that passes validation.
func validConfig() *config.Config {
	return &config.Config{
		Storage:   config.StorageConfig{Backend: "sqlite", Path: "udbhav.db"},
		Embedding: config.EmbeddingConfig{Provider: "hash", HealthCooldown: time.Second},
		Search:    config.SearchConfig{Metric: "l2", DefaultK: 10},
		Reconcile: config.ReconcileConfig{BatchSize: 8, BatchTimeout: time.Minute},
		Networking: config.NetworkingConfig{
			Listen: "127.0.0.1:18790",
		},
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "udbhav.db", cfg.Storage.Path)
	assert.Equal(t, "hash", cfg.Embedding.Provider)
	assert.Equal(t, 30*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, "l2", cfg.Search.Metric)
	assert.Equal(t, 10, cfg.Search.DefaultK)
	assert.Equal(t, 32, cfg.Reconcile.BatchSize)
	assert.Equal(t, 2*time.Minute, cfg.Reconcile.BatchTimeout)
	assert.Equal(t, 15*time.Minute, cfg.Reconcile.Interval)
	assert.Equal(t, "127.0.0.1:18790", cfg.Networking.Listen)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: postgres
  dsn: postgres://udbhav:pw@db:5432/udbhav
embedding:
  provider: openai
  model: text-embedding-3-small
  dimensions: 512
  api_key: sk-test
  timeout: 5s
  rate_limit_rps: 2.5
  rate_limit_burst: 4
search:
  metric: cosine
  default_k: 3
reconcile:
  batch_size: 16
  interval: 0s
networking:
  listen: 0.0.0.0:9999
  cors_origins: [https://records.example]
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, 512, cfg.Embedding.Dimensions)
	assert.Equal(t, 5*time.Second, cfg.Embedding.Timeout)
	assert.InDelta(t, 2.5, cfg.Embedding.RateLimitRPS, 1e-9)
	assert.Equal(t, 4, cfg.Embedding.RateLimitBurst)
	assert.Equal(t, "cosine", cfg.Search.Metric)
	assert.Equal(t, 3, cfg.Search.DefaultK)
	assert.Equal(t, 16, cfg.Reconcile.BatchSize)
	assert.Zero(t, cfg.Reconcile.Interval)
	assert.Equal(t, []string{"https://records.example"}, cfg.Networking.CORSOrigins)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("UDBHAV_NETWORKING_LISTEN", "10.0.0.1:8080")
	t.Setenv("UDBHAV_SEARCH_DEFAULT_K", "25")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:8080", cfg.Networking.Listen)
	assert.Equal(t, 25, cfg.Search.DefaultK)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, udberr.HasCode(err, udberr.CodeConfigLoadReadFailure))
}

func TestLoad_ValidationCalledAtLoadTime(t *testing.T) {
	path := writeConfig(t, `
search:
  metric: manhattan
`)

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search.metric")
}

func TestDefaultConfigYAML_IsValid(t *testing.T) {
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(config.DefaultConfigYAML, &raw))
	for _, section := range []string{"storage", "embedding", "search", "reconcile", "networking"} {
		assert.Contains(t, raw, section)
	}

	cfg, err := config.Load(writeConfig(t, string(config.DefaultConfigYAML)))
	require.NoError(t, err)
	assert.Equal(t, "google", cfg.Embedding.Provider)
	assert.Equal(t, "keyring://udbhav/google-api-key", cfg.Embedding.APIKey)
}

func TestFromViper_FlagPrecedence(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	config.SetupEnv(v)
	t.Setenv("UDBHAV_SEARCH_DEFAULT_K", "7")
	v.Set("search.default_k", 9)

	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Search.DefaultK)
}

func TestValidate_Valid(t *testing.T) {
	assert.Empty(t, validConfig().Validate())
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		keyword string
	}{
		{"unknown backend", func(c *config.Config) { c.Storage.Backend = "mysql" }, "storage.backend"},
		{"sqlite without path", func(c *config.Config) { c.Storage.Path = "" }, "storage.path"},
		{"postgres without dsn", func(c *config.Config) { c.Storage.Backend = "postgres" }, "storage.dsn"},
		{"unknown provider", func(c *config.Config) { c.Embedding.Provider = "cohere" }, "embedding.provider"},
		{"remote provider without key", func(c *config.Config) { c.Embedding.Provider = "google" }, "embedding.api_key"},
		{"negative dimensions", func(c *config.Config) { c.Embedding.Dimensions = -1 }, "embedding.dimensions"},
		{"rate without burst", func(c *config.Config) { c.Embedding.RateLimitRPS = 1 }, "embedding.rate_limit_burst"},
		{"zero cooldown", func(c *config.Config) { c.Embedding.HealthCooldown = 0 }, "embedding.health_cooldown"},
		{"bad metric", func(c *config.Config) { c.Search.Metric = "dot" }, "search.metric"},
		{"zero k", func(c *config.Config) { c.Search.DefaultK = 0 }, "search.default_k"},
		{"zero batch", func(c *config.Config) { c.Reconcile.BatchSize = 0 }, "reconcile.batch_size"},
		{"negative interval", func(c *config.Config) { c.Reconcile.Interval = -time.Second }, "reconcile.interval"},
		{"empty listen", func(c *config.Config) { c.Networking.Listen = "" }, "networking.listen"},
		{"listen without port", func(c *config.Config) { c.Networking.Listen = "localhost" }, "networking.listen"},
		{"listen port out of range", func(c *config.Config) { c.Networking.Listen = ":70000" }, "networking.listen"},
		{"server rate without burst", func(c *config.Config) { c.Networking.RateLimit.RequestsPerSecond = 5 }, "networking.rate_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			errs := cfg.Validate()
			require.NotEmpty(t, errs)
			assert.Contains(t, errs[0].Error(), tt.keyword)
			assert.True(t, udberr.IsInvalidInput(errs[0]))
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Backend = ""
	cfg.Search.DefaultK = -1
	cfg.Networking.Listen = ""

	assert.Len(t, cfg.Validate(), 3)
}

func TestConversions(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Model = "m"
	cfg.Embedding.Timeout = 3 * time.Second
	cfg.Networking.CORSOrigins = []string{"https://a.example"}
	cfg.Networking.RateLimit = config.RateLimitConfig{RequestsPerSecond: 2, Burst: 4}

	sc := cfg.StoreConfig()
	assert.Equal(t, "sqlite", sc.Backend)
	assert.Equal(t, "udbhav.db", sc.Path)

	pc := cfg.ProviderConfig()
	assert.Equal(t, "hash", pc.Provider)
	assert.Equal(t, "m", pc.Model)
	assert.Equal(t, 3*time.Second, pc.Timeout)

	srv := cfg.ServerConfig()
	assert.Equal(t, "127.0.0.1:18790", srv.ListenAddr)
	assert.Equal(t, []string{"https://a.example"}, srv.CORSOrigins)
	assert.Equal(t, 4, srv.RateLimit.Burst)

	rc := cfg.ReconcileJobConfig()
	assert.Equal(t, 8, rc.BatchSize)
	assert.Equal(t, time.Minute, rc.BatchTimeout)
}

func TestRedacted(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.APIKey = "sk-live-secret"
	cfg.Storage.DSN = "postgres://udbhav:hunter2@db:5432/udbhav"

	red := cfg.Redacted()
	assert.Equal(t, "********", red.Embedding.APIKey)
	assert.Equal(t, "postgres://udbhav:********@db:5432/udbhav", red.Storage.DSN)
	assert.Equal(t, "sk-live-secret", cfg.Embedding.APIKey, "original is untouched")

	cfg.Embedding.APIKey = "keyring://udbhav/openai-api-key"
	assert.Equal(t, "keyring://udbhav/openai-api-key", cfg.Redacted().Embedding.APIKey)
}
