// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package store

import "time"

// --- Owner / record types ---

// Owner is the scope that records belong to.
type Owner struct {
	ID        string
	Username  string
	Email     string
	CreatedAt time.Time
}

// Record is a stored document whose Summary is the text that gets embedded.
type Record struct {
	ID          string
	OwnerID     string
	Description string
	Summary     string
	RecordDate  time.Time
	MimeType    string
	// Version starts at 1 and is incremented whenever Summary changes.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SourceText is a snapshot of the embeddable text of a record.
type SourceText struct {
	RecordID string
	OwnerID  string
	Text     string
	Version  int64
}

// --- Embedding types ---

// Embedding is the single vector stored for a record.
type Embedding struct {
	RecordID string
	// OwnerID is filled in on reads from the owning record; it is ignored by Put.
	OwnerID       string
	Vector        []float32
	Dimension     int
	SourceVersion int64
	CreatedAt     time.Time
}

// VerifyReport lists integrity problems found in an embedding store.
type VerifyReport struct {
	Total int64
	// Orphans are embeddings whose record no longer exists.
	Orphans []string
	// Malformed are embeddings whose blob length or dimension disagrees
	// with the pinned deployment dimension.
	Malformed []string
}

// OK reports whether the store has no integrity problems.
func (r *VerifyReport) OK() bool {
	return len(r.Orphans) == 0 && len(r.Malformed) == 0
}

// --- Query options ---

// ListOpts provides pagination parameters for list operations.
type ListOpts struct {
	Limit  int
	Offset int
}

// ScanQuery restricts an embedding scan. An empty OwnerID scans everything.
type ScanQuery struct {
	OwnerID string
}

// CandidateQuery selects records that need (re-)embedding.
type CandidateQuery struct {
	// Force includes records that already have an up-to-date embedding.
	Force   bool
	OwnerID string
}

// Counts summarizes a record store.
type Counts struct {
	Owners  int64
	Records int64
	// Pending records have a summary but no embedding for their current version.
	Pending int64
}
