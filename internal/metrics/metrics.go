// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

// Package metrics defines the Prometheus collectors for embedding, search and
// reconciliation. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "udbhav"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics holds all collectors registered for one process.
type Metrics struct {
	Registry *prometheus.Registry

	EmbeddingRequests *prometheus.CounterVec
	EmbeddingDuration *prometheus.HistogramVec
	SearchDuration    *prometheus.HistogramVec
	SearchCandidates  prometheus.Histogram
	ReconcileItems    *prometheus.CounterVec
	RecordsDegraded   prometheus.Counter
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// New creates and registers all collectors on reg.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		EmbeddingRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Embedding provider calls by provider, operation and outcome.",
		}, []string{"provider", "op", "outcome"}),
		EmbeddingDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_duration_seconds",
			Help:      "Latency of embedding provider calls.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider", "op"}),
		SearchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Latency of similarity searches, excluding query embedding.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		SearchCandidates: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_candidates",
			Help:      "Number of stored embeddings scored per search.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		ReconcileItems: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_items_total",
			Help:      "Records processed by the reconciliation job by outcome.",
		}, []string{"outcome"}),
		RecordsDegraded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_degraded_total",
			Help:      "Records saved without an embedding because generation failed.",
		}),
	}
}

// ObserveEmbedding records one provider call.
func (m *Metrics) ObserveEmbedding(provider, op string, took time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.EmbeddingRequests.WithLabelValues(provider, op, outcome).Inc()
	m.EmbeddingDuration.WithLabelValues(provider, op).Observe(took.Seconds())
}

// ObserveSearch records one similarity search over candidates embeddings.
func (m *Metrics) ObserveSearch(kind string, took time.Duration, candidates int) {
	if m == nil {
		return
	}
	m.SearchDuration.WithLabelValues(kind).Observe(took.Seconds())
	m.SearchCandidates.Observe(float64(candidates))
}

// AddReconciled adds n items with the given outcome.
func (m *Metrics) AddReconciled(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ReconcileItems.WithLabelValues(outcome).Add(float64(n))
}

// RecordDegraded counts a record stored without its embedding.
func (m *Metrics) RecordDegraded() {
	if m == nil {
		return
	}
	m.RecordsDegraded.Inc()
}
