// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/udbhav-health/udbhav/internal/store"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

// Compile-time interface check.
var _ store.EmbeddingStore = (*EmbeddingStore)(nil)

// EmbeddingStore implements store.EmbeddingStore backed by SQLite. Vectors are
// kept as sqlite-vec float32 blobs in a plain table; search is done by the
// caller over Scan results.
type EmbeddingStore struct {
	db        *DB
	dimension int
}

// NewEmbeddingStore returns an embedding store over db and pins dimension in
// the meta table. Reopening a database with a different dimension fails.
func NewEmbeddingStore(ctx context.Context, db *DB, dimension int) (*EmbeddingStore, error) {
	if dimension <= 0 {
		return nil, udberr.Errorf(udberr.CodeStoreInvalidInput, "embedding dimension must be positive, got %d", dimension)
	}

	const pin = `INSERT INTO meta (key, value) VALUES ('dimension', ?) ON CONFLICT(key) DO NOTHING`
	if _, err := db.db.ExecContext(ctx, pin, strconv.Itoa(dimension)); err != nil {
		return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "pinning embedding dimension: %w", err)
	}

	var pinned string
	if err := db.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'dimension'`).Scan(&pinned); err != nil {
		return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "reading pinned dimension: %w", err)
	}
	if pinned != strconv.Itoa(dimension) {
		stored, _ := strconv.Atoi(pinned)
		return nil, udberr.New(udberr.CodeStoreDimensionPinnedMismatch,
			"database was created for a different embedding dimension",
			udberr.FieldDimension(stored, dimension))
	}

	return &EmbeddingStore{db: db, dimension: dimension}, nil
}

func (s *EmbeddingStore) Dimension() int {
	return s.dimension
}

// Close closes the shared database.
func (s *EmbeddingStore) Close() error {
	return s.db.Close()
}

func (s *EmbeddingStore) Put(ctx context.Context, e *store.Embedding) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if len(e.Vector) != s.dimension {
		return udberr.New(udberr.CodeStoreEmbeddingPutDimension, "embedding has the wrong dimension",
			udberr.FieldRecordID(e.RecordID), udberr.FieldDimension(s.dimension, len(e.Vector)))
	}

	blob, err := sqlite_vec.SerializeFloat32(e.Vector)
	if err != nil {
		return udberr.Errorf(udberr.CodeStoreDatabaseFailure, "serializing embedding %s: %w", e.RecordID, err)
	}

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	// The write lands only while the record still carries the snapshot's
	// version and a summary, and never over a newer embedding.
	const q = `INSERT INTO record_embeddings (record_id, vector, dimension, source_version, created_at)
SELECT r.id, ?, ?, ?, ?
FROM records r
WHERE r.id = ? AND r.version <= ? AND trim(r.summary) != ''
ON CONFLICT(record_id) DO UPDATE SET
	vector = excluded.vector,
	dimension = excluded.dimension,
	source_version = excluded.source_version,
	created_at = excluded.created_at
WHERE excluded.source_version >= record_embeddings.source_version`

	result, err := s.db.db.ExecContext(ctx, q,
		blob, len(e.Vector), e.SourceVersion, createdAt.Unix(), e.RecordID, e.SourceVersion)
	if isForeignKeyViolation(err) {
		return recordNotFound(e.RecordID)
	}
	if err != nil {
		return udberr.Errorf(udberr.CodeStoreDatabaseFailure, "upserting embedding %s: %w", e.RecordID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return udberr.Errorf(udberr.CodeStoreDatabaseFailure, "checking rows affected for embedding %s: %w", e.RecordID, err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := s.db.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM records WHERE id = ?)`, e.RecordID).Scan(&exists); err != nil {
		return udberr.Errorf(udberr.CodeStoreDatabaseFailure, "checking record %s: %w", e.RecordID, err)
	}
	if !exists {
		return recordNotFound(e.RecordID)
	}
	return udberr.New(udberr.CodeStoreEmbeddingPutStale, "record or embedding is newer than the source snapshot",
		udberr.FieldRecordID(e.RecordID), udberr.Field("source_version", e.SourceVersion))
}

func recordNotFound(id string) error {
	return udberr.New(udberr.CodeStoreRecordGetNotFound, "record "+id+" not found", udberr.FieldRecordID(id))
}

const embeddingSelect = `SELECT e.record_id, COALESCE(r.owner_id, ''), r.id IS NULL, e.vector, e.dimension, e.source_version, e.created_at
FROM record_embeddings e
LEFT JOIN records r ON r.id = e.record_id`

func (s *EmbeddingStore) Get(ctx context.Context, recordID string) (*store.Embedding, error) {
	row := s.db.db.QueryRowContext(ctx, embeddingSelect+` WHERE e.record_id = ?`, recordID)

	e, _, err := s.scanEmbedding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, udberr.New(udberr.CodeStoreEmbeddingGetNotFound, "no embedding for record "+recordID,
			udberr.FieldRecordID(recordID))
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *EmbeddingStore) Delete(ctx context.Context, recordID string) error {
	if _, err := s.db.db.ExecContext(ctx, `DELETE FROM record_embeddings WHERE record_id = ?`, recordID); err != nil {
		return udberr.Errorf(udberr.CodeStoreDatabaseFailure, "deleting embedding %s: %w", recordID, err)
	}
	return nil
}

func (s *EmbeddingStore) Exists(ctx context.Context, recordID string) (bool, error) {
	var one int
	err := s.db.db.QueryRowContext(ctx, `SELECT 1 FROM record_embeddings WHERE record_id = ?`, recordID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "checking embedding %s: %w", recordID, err)
	}
	return true, nil
}

// Scan returns the embeddings in scope ordered by record ID. Orphans are
// always selected so they surface as consistency errors regardless of scope.
func (s *EmbeddingStore) Scan(ctx context.Context, q store.ScanQuery) ([]*store.Embedding, error) {
	rows, err := s.db.db.QueryContext(ctx,
		embeddingSelect+` WHERE ? = '' OR r.owner_id = ? OR r.id IS NULL ORDER BY e.record_id`,
		q.OwnerID, q.OwnerID)
	if err != nil {
		return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "scanning embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*store.Embedding
	for rows.Next() {
		e, orphan, err := s.scanEmbedding(rows)
		if err != nil {
			return nil, err
		}
		if orphan {
			return nil, udberr.New(udberr.CodeStoreEmbeddingScanConsistency,
				"embedding references a record that does not exist", udberr.FieldRecordID(e.RecordID))
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "iterating embeddings: %w", err)
	}
	return out, nil
}

func (s *EmbeddingStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM record_embeddings`).Scan(&n); err != nil {
		return 0, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "counting embeddings: %w", err)
	}
	return n, nil
}

// Verify reports orphaned embeddings and rows whose stored vector does not
// hold exactly the pinned number of float32 values.
func (s *EmbeddingStore) Verify(ctx context.Context) (*store.VerifyReport, error) {
	total, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	report := &store.VerifyReport{Total: total}

	report.Orphans, err = s.queryIDs(ctx, `SELECT e.record_id FROM record_embeddings e
LEFT JOIN records r ON r.id = e.record_id
WHERE r.id IS NULL ORDER BY e.record_id`)
	if err != nil {
		return nil, err
	}

	// vec_length rejects blobs that are not whole float32 vectors, so guard it.
	report.Malformed, err = s.queryIDs(ctx, `SELECT record_id FROM record_embeddings
WHERE dimension != ?
   OR (CASE WHEN length(vector) > 0 AND length(vector) % 4 = 0 THEN vec_length(vector) ELSE -1 END) != ?
ORDER BY record_id`, s.dimension, s.dimension)
	if err != nil {
		return nil, err
	}

	return report, nil
}

// PruneOrphans deletes embeddings whose record is gone and returns how many.
func (s *EmbeddingStore) PruneOrphans(ctx context.Context) (int, error) {
	result, err := s.db.db.ExecContext(ctx,
		`DELETE FROM record_embeddings WHERE record_id NOT IN (SELECT id FROM records)`)
	if err != nil {
		return 0, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "pruning orphaned embeddings: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "checking pruned rows: %w", err)
	}
	return int(n), nil
}

func (s *EmbeddingStore) queryIDs(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := s.db.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "verifying embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "scanning record id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *EmbeddingStore) scanEmbedding(row rowScanner) (*store.Embedding, bool, error) {
	var (
		e         store.Embedding
		orphan    bool
		blob      []byte
		createdAt int64
	)
	if err := row.Scan(&e.RecordID, &e.OwnerID, &orphan, &blob, &e.Dimension, &e.SourceVersion, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, err
		}
		return nil, false, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "scanning embedding row: %w", err)
	}

	vec, err := store.DecodeVector(blob, s.dimension)
	if err != nil {
		return nil, false, udberr.With(err, udberr.FieldRecordID(e.RecordID))
	}
	e.Vector = vec
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &e, orphan, nil
}
