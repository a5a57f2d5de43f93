// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

// Package config loads udbhav configuration from defaults, a YAML file,
// UDBHAV_* environment variables and command-line flags.
package config

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/udbhav-health/udbhav/internal/embedding"
	"github.com/udbhav-health/udbhav/internal/reconcile"
	"github.com/udbhav-health/udbhav/internal/search"
	"github.com/udbhav-health/udbhav/internal/server"
	"github.com/udbhav-health/udbhav/internal/store"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

// EnvPrefix is the prefix for environment overrides, e.g. UDBHAV_STORAGE_PATH.
const EnvPrefix = "UDBHAV"

// Config is the top-level udbhav configuration.
type Config struct {
	Storage    StorageConfig    `mapstructure:"storage" yaml:"storage"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding" yaml:"embedding"`
	Search     SearchConfig     `mapstructure:"search" yaml:"search"`
	Reconcile  ReconcileConfig  `mapstructure:"reconcile" yaml:"reconcile"`
	Networking NetworkingConfig `mapstructure:"networking" yaml:"networking"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	Path    string `mapstructure:"path" yaml:"path"`
	DSN     string `mapstructure:"dsn" yaml:"dsn"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider       string        `mapstructure:"provider" yaml:"provider"`
	Model          string        `mapstructure:"model" yaml:"model"`
	Dimensions     int           `mapstructure:"dimensions" yaml:"dimensions"`
	APIKey         string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
	HealthCooldown time.Duration `mapstructure:"health_cooldown" yaml:"health_cooldown"`
}

// SearchConfig tunes ranking.
type SearchConfig struct {
	Metric   string `mapstructure:"metric" yaml:"metric"`
	DefaultK int    `mapstructure:"default_k" yaml:"default_k"`
}

// ReconcileConfig tunes the background backfill.
type ReconcileConfig struct {
	BatchSize    int           `mapstructure:"batch_size" yaml:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout" yaml:"batch_timeout"`
	// Interval between background runs under `serve`. Zero disables them.
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// NetworkingConfig controls the HTTP listener.
type NetworkingConfig struct {
	Listen      string          `mapstructure:"listen" yaml:"listen"`
	CORSOrigins []string        `mapstructure:"cors_origins" yaml:"cors_origins"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig limits requests per client IP.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", "udbhav.db")
	v.SetDefault("storage.dsn", "")

	v.SetDefault("embedding.provider", "hash")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.dimensions", 0)
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.timeout", 30*time.Second)
	v.SetDefault("embedding.rate_limit_rps", 0)
	v.SetDefault("embedding.rate_limit_burst", 1)
	v.SetDefault("embedding.health_cooldown", embedding.DefaultHealthCooldown)

	v.SetDefault("search.metric", string(search.MetricL2))
	v.SetDefault("search.default_k", 10)

	v.SetDefault("reconcile.batch_size", reconcile.DefaultBatchSize)
	v.SetDefault("reconcile.batch_timeout", reconcile.DefaultBatchTimeout)
	v.SetDefault("reconcile.interval", 15*time.Minute)

	v.SetDefault("networking.listen", "127.0.0.1:18790")
	v.SetDefault("networking.cors_origins", []string{})
	v.SetDefault("networking.rate_limit.requests_per_second", 0)
	v.SetDefault("networking.rate_limit.burst", 0)
}

// SetupEnv binds UDBHAV_* environment variables.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, udberr.Errorf(udberr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, udberr.Errorf(udberr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, udberr.Errorf(udberr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateSearch()...)
	errs = append(errs, c.validateReconcile()...)
	errs = append(errs, c.validateNetworking()...)

	return errs
}

func invalid(format string, args ...any) error {
	return udberr.Errorf(udberr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func (c *Config) validateStorage() []error {
	var errs []error

	switch c.Storage.Backend {
	case "sqlite":
		if c.Storage.Path == "" {
			errs = append(errs, invalid("storage.path must not be empty for the sqlite backend"))
		}
	case "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, invalid("storage.dsn must not be empty for the postgres backend"))
		}
	default:
		errs = append(errs, invalid("storage.backend must be one of [sqlite, postgres], got %q", c.Storage.Backend))
	}

	return errs
}

func (c *Config) validateEmbedding() []error {
	var errs []error
	e := c.Embedding

	validProviders := map[string]bool{"google": true, "openai": true, "hash": true}
	if !validProviders[e.Provider] {
		errs = append(errs, invalid("embedding.provider must be one of [google, openai, hash], got %q", e.Provider))
	} else if e.Provider != "hash" && e.APIKey == "" && e.BaseURL == "" {
		errs = append(errs, invalid("embedding.api_key is required for provider %q", e.Provider))
	}

	if e.Dimensions < 0 {
		errs = append(errs, invalid("embedding.dimensions must not be negative, got %d", e.Dimensions))
	}
	if e.Timeout < 0 {
		errs = append(errs, invalid("embedding.timeout must not be negative, got %s", e.Timeout))
	}
	if e.RateLimitRPS < 0 {
		errs = append(errs, invalid("embedding.rate_limit_rps must not be negative, got %g", e.RateLimitRPS))
	}
	if e.RateLimitRPS > 0 && e.RateLimitBurst <= 0 {
		errs = append(errs, invalid("embedding.rate_limit_burst must be positive when a rate is set, got %d", e.RateLimitBurst))
	}
	if e.HealthCooldown <= 0 {
		errs = append(errs, invalid("embedding.health_cooldown must be positive, got %s", e.HealthCooldown))
	}

	return errs
}

func (c *Config) validateSearch() []error {
	var errs []error

	if _, err := search.ParseMetric(c.Search.Metric); err != nil {
		errs = append(errs, invalid("search.metric must be one of [l2, cosine], got %q", c.Search.Metric))
	}
	if c.Search.DefaultK <= 0 {
		errs = append(errs, invalid("search.default_k must be greater than 0, got %d", c.Search.DefaultK))
	}

	return errs
}

func (c *Config) validateReconcile() []error {
	var errs []error

	if c.Reconcile.BatchSize <= 0 {
		errs = append(errs, invalid("reconcile.batch_size must be greater than 0, got %d", c.Reconcile.BatchSize))
	}
	if c.Reconcile.BatchTimeout <= 0 {
		errs = append(errs, invalid("reconcile.batch_timeout must be positive, got %s", c.Reconcile.BatchTimeout))
	}
	if c.Reconcile.Interval < 0 {
		errs = append(errs, invalid("reconcile.interval must not be negative, got %s", c.Reconcile.Interval))
	}

	return errs
}

func (c *Config) validateNetworking() []error {
	var errs []error

	if c.Networking.Listen == "" {
		errs = append(errs, invalid("networking.listen must not be empty"))
	} else {
		_, portStr, err := net.SplitHostPort(c.Networking.Listen)
		if err != nil {
			errs = append(errs, invalid("networking.listen must be a valid host:port address, got %q: %w",
				c.Networking.Listen, err))
		} else if port, err := strconv.Atoi(portStr); err != nil {
			errs = append(errs, invalid("networking.listen port must be a number, got %q", portStr))
		} else if port < 1 || port > 65535 {
			errs = append(errs, invalid("networking.listen port must be between 1 and 65535, got %d", port))
		}
	}

	rl := c.Networking.RateLimit
	if err := (&server.RateLimitConfig{RequestsPerSecond: rl.RequestsPerSecond, Burst: rl.Burst}).Validate(); err != nil {
		errs = append(errs, invalid("networking.rate_limit: %w", err))
	}

	return errs
}

// StoreConfig returns the storage settings in the form store.Open expects.
func (c *Config) StoreConfig() *store.StorageConfig {
	return &store.StorageConfig{Backend: c.Storage.Backend, Path: c.Storage.Path, DSN: c.Storage.DSN}
}

// ProviderConfig returns the embedding settings in the form embedding.New expects.
func (c *Config) ProviderConfig() embedding.Config {
	e := c.Embedding
	return embedding.Config{
		Provider:       e.Provider,
		Model:          e.Model,
		Dimensions:     e.Dimensions,
		APIKey:         e.APIKey,
		BaseURL:        e.BaseURL,
		Timeout:        e.Timeout,
		RateLimitRPS:   e.RateLimitRPS,
		RateLimitBurst: e.RateLimitBurst,
		HealthCooldown: e.HealthCooldown,
	}
}

// ServerConfig returns the HTTP listener settings.
func (c *Config) ServerConfig() server.Config {
	return server.Config{
		ListenAddr:  c.Networking.Listen,
		CORSOrigins: c.Networking.CORSOrigins,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: c.Networking.RateLimit.RequestsPerSecond,
			Burst:             c.Networking.RateLimit.Burst,
		},
	}
}

// ReconcileJobConfig returns the batch settings for reconcile.New.
func (c *Config) ReconcileJobConfig() reconcile.Config {
	return reconcile.Config{BatchSize: c.Reconcile.BatchSize, BatchTimeout: c.Reconcile.BatchTimeout}
}

// Redacted returns a copy safe to print: secrets are masked unless they are
// keyring references.
func (c *Config) Redacted() Config {
	out := *c
	out.Networking.CORSOrigins = append([]string(nil), c.Networking.CORSOrigins...)
	out.Embedding.APIKey = redact(c.Embedding.APIKey)
	out.Storage.DSN = redactDSN(c.Storage.DSN)
	return out
}

func redact(s string) string {
	if s == "" || strings.HasPrefix(s, "keyring://") {
		return s
	}
	return "********"
}

// redactDSN masks the password of a postgres URL.
func redactDSN(dsn string) string {
	if dsn == "" || strings.HasPrefix(dsn, "keyring://") {
		return dsn
	}
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return "********"
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, _ := strings.Cut(creds, ":")
	return scheme + "://" + user + ":********@" + host
}
