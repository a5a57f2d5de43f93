// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package search

import (
	"context"
	"log/slog"

	"github.com/udbhav-health/udbhav/internal/embedding"
	"github.com/udbhav-health/udbhav/internal/store"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

// Hit is a match re-hydrated with its record.
type Hit struct {
	Record     *store.Record
	Similarity float64
}

// RecordGetter loads records for hydration.
type RecordGetter interface {
	GetRecord(ctx context.Context, id string) (*store.Record, error)
}

// Service is the caller-facing search API: text in, ranked records out.
type Service struct {
	provider embedding.Provider
	engine   *Engine
	records  RecordGetter
}

// NewService wires a provider, an engine and the record repository.
func NewService(provider embedding.Provider, engine *Engine, records RecordGetter) *Service {
	return &Service{provider: provider, engine: engine, records: records}
}

// Search embeds queryText and returns the k closest records inside scope.
func (s *Service) Search(ctx context.Context, queryText string, k int, scope string) ([]Hit, error) {
	if err := checkK(k); err != nil {
		return nil, err
	}
	vec, err := s.provider.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}
	matches, err := s.engine.Search(ctx, vec, k, scope)
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, matches)
}

// FindSimilar returns the k records closest to recordID, excluding itself.
func (s *Service) FindSimilar(ctx context.Context, recordID string, k int) ([]Hit, error) {
	matches, err := s.engine.FindSimilarTo(ctx, recordID, k)
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, matches)
}

// hydrate loads each match's record. Records deleted since the scan are
// dropped from the result.
func (s *Service) hydrate(ctx context.Context, matches []Match) ([]Hit, error) {
	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		rec, err := s.records.GetRecord(ctx, m.RecordID)
		if udberr.IsNotFound(err) {
			slog.Debug("search hit vanished before hydration", "record_id", m.RecordID)
			continue
		}
		if err != nil {
			return nil, err
		}
		hits = append(hits, Hit{Record: rec, Similarity: m.Similarity})
	}
	return hits, nil
}
