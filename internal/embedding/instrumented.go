// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package embedding

import (
	"context"
	"log/slog"
	"time"

	"github.com/udbhav-health/udbhav/internal/metrics"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
	"github.com/udbhav-health/udbhav/pkg/health"
)

// Instrumented records metrics and health for the wrapped provider.
type Instrumented struct {
	inner   Provider
	metrics *metrics.Metrics
	health  *HealthTracker
}

var _ Provider = (*Instrumented)(nil)

// NewInstrumented wraps p. m may be nil.
func NewInstrumented(p Provider, m *metrics.Metrics, tracker *HealthTracker) *Instrumented {
	return &Instrumented{inner: p, metrics: m, health: tracker}
}

func (i *Instrumented) Name() string   { return i.inner.Name() }
func (i *Instrumented) Dimension() int { return i.inner.Dimension() }
func (i *Instrumented) Close() error   { return i.inner.Close() }

// Available reports whether the provider is outside its failure cooldown.
func (i *Instrumented) Available() bool { return i.health.IsHealthy() }

// HealthMetrics returns the provider's health snapshot.
func (i *Instrumented) HealthMetrics() health.Metrics { return i.health.HealthMetrics() }

func (i *Instrumented) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := i.inner.Embed(ctx, text)
	i.observe(ctx, OpEmbed, 1, start, err)
	return vec, err
}

func (i *Instrumented) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := i.inner.EmbedBatch(ctx, texts)
	i.observe(ctx, OpEmbedBatch, len(texts), start, err)
	return vecs, err
}

func (i *Instrumented) observe(ctx context.Context, op string, items int, start time.Time, err error) {
	took := time.Since(start)
	i.metrics.ObserveEmbedding(i.inner.Name(), op, took, err)

	switch {
	case err == nil:
		i.health.RecordSuccess()
		slog.Debug("embedding call", "provider", i.inner.Name(), "op", op, "items", items, "took", took)
	case udberr.IsProviderFailure(err) && ctx.Err() == nil:
		i.health.RecordFailure(err)
		slog.Warn("embedding call failed", "provider", i.inner.Name(), "op", op, "items", items, "error", err)
	}
}
