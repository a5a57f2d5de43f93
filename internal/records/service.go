// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

// Package records owns the record lifecycle: it keeps each record's embedding
// in step with its summary.
package records

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/udbhav-health/udbhav/internal/embedding"
	"github.com/udbhav-health/udbhav/internal/metrics"
	"github.com/udbhav-health/udbhav/internal/store"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

// NewOwner is the input for CreateOwner.
type NewOwner struct {
	Username string
	Email    string
}

// NewRecord is the input for CreateRecord. RecordDate defaults to now.
type NewRecord struct {
	OwnerID     string
	Description string
	Summary     string
	RecordDate  time.Time
	MimeType    string
}

// Saved is a record after a write, with the state of its embedding.
type Saved struct {
	Record *store.Record
	// Embedded is false when the record has no text or generation failed.
	// Reconciliation fills in the missing embedding later.
	Embedded bool
	// EmbedError is the generation or storage failure, if any.
	EmbedError error
}

// Service coordinates the record store, the embedding store and the provider.
type Service struct {
	records    store.RecordStore
	embeddings store.EmbeddingStore
	provider   embedding.Provider
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewService creates a Service. m may be nil.
func NewService(records store.RecordStore, embeddings store.EmbeddingStore, provider embedding.Provider, m *metrics.Metrics) *Service {
	return &Service{
		records:    records,
		embeddings: embeddings,
		provider:   provider,
		metrics:    m,
		now:        time.Now,
	}
}

func (s *Service) CreateOwner(ctx context.Context, in NewOwner) (*store.Owner, error) {
	owner := &store.Owner{
		ID:        newID(),
		Username:  strings.TrimSpace(in.Username),
		Email:     strings.TrimSpace(in.Email),
		CreatedAt: s.now().UTC(),
	}
	if err := s.records.CreateOwner(ctx, owner); err != nil {
		return nil, err
	}
	slog.Info("owner created", "owner_id", owner.ID)
	return owner, nil
}

func (s *Service) GetOwner(ctx context.Context, id string) (*store.Owner, error) {
	return s.records.GetOwner(ctx, id)
}

func (s *Service) ListOwners(ctx context.Context, opts store.ListOpts) ([]*store.Owner, error) {
	return s.records.ListOwners(ctx, opts)
}

// DeleteOwner removes an owner with all records and embeddings.
func (s *Service) DeleteOwner(ctx context.Context, id string) error {
	if err := s.records.DeleteOwner(ctx, id); err != nil {
		return err
	}
	// Backends cascade through foreign keys; pruning covers any that do not.
	if n, err := s.embeddings.PruneOrphans(ctx); err != nil {
		slog.Warn("pruning embeddings after owner delete failed", "owner_id", id, "error", err)
	} else if n > 0 {
		slog.Warn("pruned embeddings left behind by owner delete", "owner_id", id, "count", n)
	}
	slog.Info("owner deleted", "owner_id", id)
	return nil
}

// CreateRecord stores a record and, when it has a summary, its embedding.
// Embedding failures leave a valid record without an embedding and are
// reported in Saved, not as an error.
func (s *Service) CreateRecord(ctx context.Context, in NewRecord) (*Saved, error) {
	now := s.now().UTC()
	rec := &store.Record{
		ID:          newID(),
		OwnerID:     in.OwnerID,
		Description: in.Description,
		Summary:     strings.TrimSpace(in.Summary),
		RecordDate:  in.RecordDate,
		MimeType:    in.MimeType,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if rec.RecordDate.IsZero() {
		rec.RecordDate = now
	}
	if err := s.records.CreateRecord(ctx, rec); err != nil {
		return nil, err
	}
	slog.Info("record created", "record_id", rec.ID, "owner_id", rec.OwnerID)

	return s.embed(ctx, rec), nil
}

func (s *Service) GetRecord(ctx context.Context, id string) (*store.Record, error) {
	return s.records.GetRecord(ctx, id)
}

func (s *Service) ListRecords(ctx context.Context, ownerID string, opts store.ListOpts) ([]*store.Record, error) {
	if _, err := s.records.GetOwner(ctx, ownerID); err != nil {
		return nil, err
	}
	return s.records.ListRecords(ctx, ownerID, opts)
}

// UpdateSummary replaces a record's summary and re-embeds it. Clearing the
// summary removes the embedding.
func (s *Service) UpdateSummary(ctx context.Context, id, summary string) (*Saved, error) {
	rec, err := s.records.UpdateSummary(ctx, id, strings.TrimSpace(summary))
	if err != nil {
		return nil, err
	}
	if rec.Summary == "" {
		if err := s.embeddings.Delete(ctx, id); err != nil {
			return nil, err
		}
		return &Saved{Record: rec}, nil
	}
	return s.embed(ctx, rec), nil
}

// DeleteRecord removes a record and its embedding.
func (s *Service) DeleteRecord(ctx context.Context, id string) error {
	if err := s.records.DeleteRecord(ctx, id); err != nil {
		return err
	}
	if err := s.embeddings.Delete(ctx, id); err != nil {
		return udberr.With(err, udberr.FieldRecordID(id))
	}
	slog.Info("record deleted", "record_id", id)
	return nil
}

func (s *Service) embed(ctx context.Context, rec *store.Record) *Saved {
	saved := &Saved{Record: rec}
	if rec.Summary == "" {
		return saved
	}

	vec, err := s.provider.Embed(ctx, rec.Summary)
	if err == nil {
		err = s.embeddings.Put(ctx, &store.Embedding{
			RecordID:      rec.ID,
			Vector:        vec,
			Dimension:     len(vec),
			SourceVersion: rec.Version,
		})
	}
	switch {
	case err == nil:
		saved.Embedded = true
	case udberr.IsStale(err):
		// A concurrent update already stored a newer embedding.
		saved.Embedded = true
	default:
		saved.EmbedError = err
		s.metrics.RecordDegraded()
		slog.Warn("record saved without embedding", "record_id", rec.ID, "version", rec.Version, "error", err)
	}
	return saved
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
