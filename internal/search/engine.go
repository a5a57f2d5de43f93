// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

// Package search ranks stored embeddings against a query by exact,
// brute-force comparison.
package search

import (
	"context"
	"time"

	"github.com/udbhav-health/udbhav/internal/metrics"
	"github.com/udbhav-health/udbhav/internal/store"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

// Embeddings is the part of store.EmbeddingStore the engine reads.
type Embeddings interface {
	Get(ctx context.Context, recordID string) (*store.Embedding, error)
	Scan(ctx context.Context, q store.ScanQuery) ([]*store.Embedding, error)
	Dimension() int
}

// Engine answers nearest-neighbour queries over every stored embedding.
// It is safe for concurrent use.
type Engine struct {
	embeddings Embeddings
	metric     Metric
	metrics    *metrics.Metrics
}

// NewEngine creates an engine. m may be nil.
func NewEngine(embeddings Embeddings, metric Metric, m *metrics.Metrics) (*Engine, error) {
	metric, err := ParseMetric(string(metric))
	if err != nil {
		return nil, err
	}
	return &Engine{embeddings: embeddings, metric: metric, metrics: m}, nil
}

// Metric returns the similarity metric in use.
func (e *Engine) Metric() Metric { return e.metric }

// Search returns at most k matches for query, best first. An empty scope
// searches every owner.
func (e *Engine) Search(ctx context.Context, query []float32, k int, scope string) ([]Match, error) {
	if err := checkK(k); err != nil {
		return nil, err
	}
	if want := e.embeddings.Dimension(); len(query) != want {
		return nil, udberr.New(udberr.CodeSearchQueryDimensionMismatch, "query vector has the wrong dimension",
			udberr.FieldDimension(want, len(query)))
	}
	if i := store.NonFinite(query); i >= 0 {
		return nil, udberr.New(udberr.CodeSearchQueryInvalidInput, "query vector contains a non-finite value",
			udberr.Field("index", i))
	}
	return e.rank(ctx, "query", query, k, scope, "")
}

// FindSimilarTo ranks other records against the stored embedding of
// recordID. The record itself is never part of the result.
func (e *Engine) FindSimilarTo(ctx context.Context, recordID string, k int) ([]Match, error) {
	if err := checkK(k); err != nil {
		return nil, err
	}
	target, err := e.embeddings.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if store.NonFinite(target.Vector) >= 0 {
		return nil, udberr.New(udberr.CodeStoreEmbeddingDecodeCorrupt, "stored vector contains a non-finite value",
			udberr.FieldRecordID(recordID))
	}
	return e.rank(ctx, "similar", target.Vector, k, "", recordID)
}

func (e *Engine) rank(ctx context.Context, kind string, query []float32, k int, scope, exclude string) ([]Match, error) {
	candidates, err := e.embeddings.Scan(ctx, store.ScanQuery{OwnerID: scope})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	top := newTopK(k)
	for _, c := range candidates {
		if c.RecordID == exclude {
			continue
		}
		if len(c.Vector) != len(query) {
			return nil, udberr.New(udberr.CodeStoreEmbeddingDecodeCorrupt, "stored vector has the wrong dimension",
				udberr.FieldRecordID(c.RecordID), udberr.FieldDimension(len(query), len(c.Vector)))
		}
		if store.NonFinite(c.Vector) >= 0 {
			return nil, udberr.New(udberr.CodeStoreEmbeddingDecodeCorrupt, "stored vector contains a non-finite value",
				udberr.FieldRecordID(c.RecordID))
		}
		top.offer(Match{RecordID: c.RecordID, Similarity: e.metric.similarity(query, c.Vector)})
	}
	matches := top.sorted()
	e.metrics.ObserveSearch(kind, time.Since(start), len(candidates))
	return matches, nil
}

func checkK(k int) error {
	if k <= 0 {
		return udberr.Errorf(udberr.CodeSearchQueryInvalidInput, "k must be positive, got %d", k)
	}
	return nil
}
