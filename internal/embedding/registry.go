// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package embedding

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/udbhav-health/udbhav/internal/metrics"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

// Config selects and tunes an embedding provider.
type Config struct {
	Provider       string
	Model          string
	Dimensions     int
	APIKey         string
	BaseURL        string
	Timeout        time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	HealthCooldown time.Duration
}

// Factory constructs a provider from configuration.
type Factory func(ctx context.Context, cfg Config) (Provider, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// Register makes a provider available by name. Subpackages call it from init.
func Register(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = factory
}

// Providers returns the registered provider names, sorted.
func Providers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New builds the configured provider and wraps it as
// Instrumented(Bounded(RateLimited(provider))). m may be nil.
func New(ctx context.Context, cfg Config, m *metrics.Metrics) (*Instrumented, error) {
	factoriesMu.RLock()
	factory, ok := factories[cfg.Provider]
	factoriesMu.RUnlock()
	if !ok {
		return nil, udberr.New(udberr.CodeProviderNotFound, "unknown embedding provider",
			udberr.FieldProvider(cfg.Provider), udberr.Field("registered", Providers()))
	}

	inner, err := factory(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if inner.Dimension() <= 0 {
		_ = inner.Close()
		return nil, udberr.New(udberr.CodeProviderConfigInvalid, "provider reported a non-positive dimension",
			udberr.FieldProvider(cfg.Provider))
	}

	cooldown := cfg.HealthCooldown
	if cooldown <= 0 {
		cooldown = DefaultHealthCooldown
	}
	tracker, err := NewHealthTracker(inner.Name(), cooldown)
	if err != nil {
		_ = inner.Close()
		return nil, err
	}

	var p Provider = inner
	if cfg.RateLimitRPS > 0 {
		p = NewRateLimited(p, cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	p = NewBounded(p, cfg.Timeout)
	return NewInstrumented(p, m, tracker), nil
}
