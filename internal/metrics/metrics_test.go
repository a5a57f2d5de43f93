// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udbhav-health/udbhav/internal/metrics"
)

func TestObserveEmbedding(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ObserveEmbedding("hash", "embed", 10*time.Millisecond, nil)
	m.ObserveEmbedding("hash", "embed", 10*time.Millisecond, errors.New("boom"))
	m.ObserveEmbedding("hash", "embed_batch", time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmbeddingRequests.WithLabelValues("hash", "embed", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmbeddingRequests.WithLabelValues("hash", "embed", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmbeddingRequests.WithLabelValues("hash", "embed_batch", "success")))
}

func TestReconcileAndDegradedCounters(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.AddReconciled(metrics.OutcomeSuccess, 4)
	m.AddReconciled(metrics.OutcomeFailure, 1)
	m.AddReconciled(metrics.OutcomeSkipped, 0)
	m.RecordDegraded()

	assert.Equal(t, 4.0, testutil.ToFloat64(m.ReconcileItems.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconcileItems.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsDegraded))
}

func TestObserveSearchRegistersSamples(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ObserveSearch("query", 5*time.Millisecond, 120)

	count, err := testutil.GatherAndCount(reg, "udbhav_search_duration_seconds", "udbhav_search_candidates")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveEmbedding("p", "embed", time.Second, nil)
		m.ObserveSearch("query", time.Second, 1)
		m.AddReconciled(metrics.OutcomeSuccess, 1)
		m.RecordDegraded()
	})
}

func TestNewRegistryIncludesRuntimeCollectors(t *testing.T) {
	families, err := metrics.NewRegistry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
