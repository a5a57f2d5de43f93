// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"github.com/udbhav-health/udbhav/internal/config"
	"github.com/udbhav-health/udbhav/internal/embedding"
	_ "github.com/udbhav-health/udbhav/internal/embedding/google" // register google provider
	_ "github.com/udbhav-health/udbhav/internal/embedding/hash"   // register hash provider
	_ "github.com/udbhav-health/udbhav/internal/embedding/openai" // register openai provider
	"github.com/udbhav-health/udbhav/internal/metrics"
	"github.com/udbhav-health/udbhav/internal/reconcile"
	"github.com/udbhav-health/udbhav/internal/records"
	"github.com/udbhav-health/udbhav/internal/search"
	"github.com/udbhav-health/udbhav/internal/secrets"
	"github.com/udbhav-health/udbhav/internal/server"
	"github.com/udbhav-health/udbhav/internal/store"
	_ "github.com/udbhav-health/udbhav/internal/store/postgres" // register postgres backend
	_ "github.com/udbhav-health/udbhav/internal/store/sqlite"   // register sqlite backend
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

// secretStoreFactory creates a secrets.Store. Tests substitute an in-memory one.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

// App holds all wired subsystems.
type App struct {
	Config     *config.Config
	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics
	Provider   *embedding.Instrumented
	Stores     *store.Stores
	Records    *records.Service
	Engine     *search.Engine
	Search     *search.Service
	Reconciler *reconcile.Job
}

// loadConfig resolves keyring references and decodes the global viper state.
func loadConfig() (*config.Config, error) {
	v := viper.GetViper()
	if err := secrets.ResolveViper(v, secretStoreFactory(), secrets.SecretKeys...); err != nil {
		return nil, err
	}
	return config.FromViper(v)
}

// Wire builds the provider, the stores and the services on top of them.
func Wire(ctx context.Context, cfg *config.Config) (*App, error) {
	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	provider, err := embedding.New(ctx, cfg.ProviderConfig(), m)
	if err != nil {
		return nil, err
	}

	if cfg.Storage.Backend == "sqlite" {
		if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				_ = provider.Close()
				return nil, udberr.Errorf(udberr.CodeCLISetupFailure, "creating data directory: %w", err)
			}
		}
	}

	stores, err := store.Open(ctx, cfg.StoreConfig(), provider.Dimension())
	if err != nil {
		_ = provider.Close()
		return nil, err
	}

	metric, err := search.ParseMetric(cfg.Search.Metric)
	if err != nil {
		return nil, closeAll(err, stores, provider)
	}
	engine, err := search.NewEngine(stores.Embeddings, metric, m)
	if err != nil {
		return nil, closeAll(err, stores, provider)
	}

	slog.Debug("wired",
		"provider", provider.Name(),
		"dimension", provider.Dimension(),
		"backend", stores.Backend,
		"metric", metric,
	)

	return &App{
		Config:     cfg,
		Registry:   reg,
		Metrics:    m,
		Provider:   provider,
		Stores:     stores,
		Records:    records.NewService(stores.Records, stores.Embeddings, provider, m),
		Engine:     engine,
		Search:     search.NewService(provider, engine, stores.Records),
		Reconciler: reconcile.New(stores.Records, stores.Embeddings, provider, cfg.ReconcileJobConfig(), m),
	}, nil
}

// Server builds the HTTP server with every route registered.
func (a *App) Server() (*server.Server, error) {
	srvCfg := a.Config.ServerConfig()
	srvCfg.Registry = a.Registry

	srv, err := server.New(srvCfg)
	if err != nil {
		return nil, err
	}

	svc, err := server.NewServices(a.Records, a.Search, a.Reconciler,
		server.NewStatusService(a.Stores, a.Provider), a.Config.Search.DefaultK)
	if err != nil {
		_ = srv.Close()
		return nil, err
	}
	srv.RegisterServices(svc)
	return srv, nil
}

// Close releases the stores and the provider.
func (a *App) Close() error {
	return errors.Join(a.Stores.Close(), a.Provider.Close())
}

func closeAll(err error, stores *store.Stores, provider embedding.Provider) error {
	return errors.Join(err, stores.Close(), provider.Close())
}

// withApp loads config, wires the app, runs fn and closes everything.
func withApp(ctx context.Context, fn func(*App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := Wire(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			slog.Warn("closing app", "error", cerr)
		}
	}()
	return fn(app)
}
