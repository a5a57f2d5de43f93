// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package store

import "context"

// EmbeddingStore persists at most one embedding per record.
type EmbeddingStore interface {
	// Put inserts or replaces the embedding for e.RecordID in one statement.
	// It fails with a dimension mismatch when len(e.Vector) differs from
	// Dimension(), with not found when the record does not exist, and with a
	// stale error when a newer SourceVersion is already stored.
	Put(ctx context.Context, e *Embedding) error
	Get(ctx context.Context, recordID string) (*Embedding, error)
	// Delete is idempotent.
	Delete(ctx context.Context, recordID string) error
	Exists(ctx context.Context, recordID string) (bool, error)
	// Scan returns every embedding inside the query scope, ordered by record ID.
	// An embedding without a record is reported as a consistency error.
	Scan(ctx context.Context, q ScanQuery) ([]*Embedding, error)

	Dimension() int
	Count(ctx context.Context) (int64, error)
	Verify(ctx context.Context) (*VerifyReport, error)
	PruneOrphans(ctx context.Context) (int, error)
	Close() error
}

// RecordStore is the record repository the search subsystem collaborates with.
// Deleting a record or an owner cascades to embeddings.
type RecordStore interface {
	CreateOwner(ctx context.Context, owner *Owner) error
	GetOwner(ctx context.Context, id string) (*Owner, error)
	ListOwners(ctx context.Context, opts ListOpts) ([]*Owner, error)
	DeleteOwner(ctx context.Context, id string) error

	CreateRecord(ctx context.Context, record *Record) error
	GetRecord(ctx context.Context, id string) (*Record, error)
	// ListRecords returns an owner's records, newest RecordDate first.
	ListRecords(ctx context.Context, ownerID string, opts ListOpts) ([]*Record, error)
	// UpdateSummary replaces the summary and bumps Version when it changed.
	UpdateSummary(ctx context.Context, id, summary string) (*Record, error)
	DeleteRecord(ctx context.Context, id string) error

	GetText(ctx context.Context, id string) (*SourceText, error)
	// ListCandidates returns records with a non-empty summary that have no
	// embedding for their current version, or all of them when q.Force is set.
	ListCandidates(ctx context.Context, q CandidateQuery) ([]SourceText, error)
	Counts(ctx context.Context) (*Counts, error)

	Close() error
}
