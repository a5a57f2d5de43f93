// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/udbhav-health/udbhav/internal/store"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

// Compile-time interface check.
var _ store.RecordStore = (*RecordStore)(nil)

// RecordStore implements store.RecordStore backed by SQLite.
type RecordStore struct {
	db *DB
}

// NewRecordStore returns a record store over an opened database.
func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db}
}

// Close closes the shared database.
func (s *RecordStore) Close() error {
	return s.db.Close()
}

// --- Owners ---

func (s *RecordStore) CreateOwner(ctx context.Context, owner *store.Owner) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	const q = `INSERT INTO owners (id, username, email, created_at) VALUES (?, ?, ?, ?)`
	_, err := s.db.db.ExecContext(ctx, q, owner.ID, owner.Username, owner.Email, formatTime(owner.CreatedAt))
	if isUniqueViolation(err) {
		return udberr.Errorf(udberr.CodeStoreOwnerCreateConflict, "owner %s (%s) already exists", owner.ID, owner.Username)
	}
	if err != nil {
		return udberr.Errorf(udberr.CodeStoreDatabaseFailure, "creating owner %s: %w", owner.ID, err)
	}
	return nil
}

func (s *RecordStore) GetOwner(ctx context.Context, id string) (*store.Owner, error) {
	const q = `SELECT id, username, email, created_at FROM owners WHERE id = ?`

	var o store.Owner
	var createdAt string
	err := s.db.db.QueryRowContext(ctx, q, id).Scan(&o.ID, &o.Username, &o.Email, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, udberr.New(udberr.CodeStoreOwnerGetNotFound, "owner "+id+" not found", udberr.FieldOwnerID(id))
	}
	if err != nil {
		return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "getting owner %s: %w", id, err)
	}
	o.CreatedAt = parseTime(createdAt)
	return &o, nil
}

func (s *RecordStore) ListOwners(ctx context.Context, opts store.ListOpts) ([]*store.Owner, error) {
	const q = `SELECT id, username, email, created_at FROM owners ORDER BY username LIMIT ? OFFSET ?`

	rows, err := s.db.db.QueryContext(ctx, q, listLimit(opts.Limit), opts.Offset)
	if err != nil {
		return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "listing owners: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var owners []*store.Owner
	for rows.Next() {
		var o store.Owner
		var createdAt string
		if err := rows.Scan(&o.ID, &o.Username, &o.Email, &createdAt); err != nil {
			return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "scanning owner row: %w", err)
		}
		o.CreatedAt = parseTime(createdAt)
		owners = append(owners, &o)
	}
	return owners, rows.Err()
}

// DeleteOwner removes an owner; its records and their embeddings cascade.
func (s *RecordStore) DeleteOwner(ctx context.Context, id string) error {
	result, err := s.db.db.ExecContext(ctx, `DELETE FROM owners WHERE id = ?`, id)
	if err != nil {
		return udberr.Errorf(udberr.CodeStoreDatabaseFailure, "deleting owner %s: %w", id, err)
	}
	return requireRow(result, udberr.CodeStoreOwnerGetNotFound, "owner "+id)
}

// --- Records ---

const recordColumns = `id, owner_id, description, summary, record_date, mime_type, version, created_at, updated_at`

func (s *RecordStore) CreateRecord(ctx context.Context, record *store.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}

	const q = `INSERT INTO records (` + recordColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.db.ExecContext(ctx, q,
		record.ID,
		record.OwnerID,
		record.Description,
		record.Summary,
		formatTime(record.RecordDate),
		record.MimeType,
		record.Version,
		formatTime(record.CreatedAt),
		formatTime(record.UpdatedAt),
	)
	switch {
	case isForeignKeyViolation(err):
		return udberr.New(udberr.CodeStoreOwnerGetNotFound, "owner "+record.OwnerID+" not found",
			udberr.FieldOwnerID(record.OwnerID), udberr.FieldRecordID(record.ID))
	case isUniqueViolation(err):
		return udberr.Errorf(udberr.CodeStoreRecordCreateConflict, "record %s already exists", record.ID)
	case err != nil:
		return udberr.Errorf(udberr.CodeStoreDatabaseFailure, "creating record %s: %w", record.ID, err)
	}
	return nil
}

func (s *RecordStore) GetRecord(ctx context.Context, id string) (*store.Record, error) {
	const q = `SELECT ` + recordColumns + ` FROM records WHERE id = ?`

	r, err := scanRecord(s.db.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, udberr.New(udberr.CodeStoreRecordGetNotFound, "record "+id+" not found", udberr.FieldRecordID(id))
	}
	if err != nil {
		return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "getting record %s: %w", id, err)
	}
	return r, nil
}

func (s *RecordStore) ListRecords(ctx context.Context, ownerID string, opts store.ListOpts) ([]*store.Record, error) {
	const q = `SELECT ` + recordColumns + ` FROM records WHERE owner_id = ?
ORDER BY record_date DESC, id ASC LIMIT ? OFFSET ?`

	rows, err := s.db.db.QueryContext(ctx, q, ownerID, listLimit(opts.Limit), opts.Offset)
	if err != nil {
		return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "listing records for owner %s: %w", ownerID, err)
	}
	defer func() { _ = rows.Close() }()

	var records []*store.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "scanning record row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *RecordStore) UpdateSummary(ctx context.Context, id, summary string) (*store.Record, error) {
	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT summary FROM records WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, udberr.New(udberr.CodeStoreRecordGetNotFound, "record "+id+" not found", udberr.FieldRecordID(id))
	}
	if err != nil {
		return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "reading summary of record %s: %w", id, err)
	}

	if current != summary {
		const q = `UPDATE records SET summary = ?, version = version + 1, updated_at = ? WHERE id = ?`
		if _, err := tx.ExecContext(ctx, q, summary, formatTime(time.Now()), id); err != nil {
			return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "updating summary of record %s: %w", id, err)
		}
	}

	r, err := scanRecord(tx.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id))
	if err != nil {
		return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "reloading record %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "committing summary update: %w", err)
	}
	return r, nil
}

// DeleteRecord removes a record; its embedding cascades.
func (s *RecordStore) DeleteRecord(ctx context.Context, id string) error {
	result, err := s.db.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return udberr.Errorf(udberr.CodeStoreDatabaseFailure, "deleting record %s: %w", id, err)
	}
	return requireRow(result, udberr.CodeStoreRecordGetNotFound, "record "+id)
}

// --- Reconciliation collaborator ---

func (s *RecordStore) GetText(ctx context.Context, id string) (*store.SourceText, error) {
	const q = `SELECT id, owner_id, summary, version FROM records WHERE id = ?`

	var st store.SourceText
	err := s.db.db.QueryRowContext(ctx, q, id).Scan(&st.RecordID, &st.OwnerID, &st.Text, &st.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, udberr.New(udberr.CodeStoreRecordGetNotFound, "record "+id+" not found", udberr.FieldRecordID(id))
	}
	if err != nil {
		return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "getting text of record %s: %w", id, err)
	}
	return &st, nil
}

func (s *RecordStore) ListCandidates(ctx context.Context, cq store.CandidateQuery) ([]store.SourceText, error) {
	const q = `SELECT r.id, r.owner_id, r.summary, r.version
FROM records r
LEFT JOIN record_embeddings e ON e.record_id = r.id
WHERE trim(r.summary) != ''
  AND (? OR e.record_id IS NULL OR e.source_version < r.version)
  AND (? = '' OR r.owner_id = ?)
ORDER BY r.id`

	rows, err := s.db.db.QueryContext(ctx, q, cq.Force, cq.OwnerID, cq.OwnerID)
	if err != nil {
		return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "listing embedding candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []store.SourceText
	for rows.Next() {
		var st store.SourceText
		if err := rows.Scan(&st.RecordID, &st.OwnerID, &st.Text, &st.Version); err != nil {
			return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "scanning candidate row: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *RecordStore) Counts(ctx context.Context) (*store.Counts, error) {
	const q = `SELECT
	(SELECT COUNT(*) FROM owners),
	(SELECT COUNT(*) FROM records),
	(SELECT COUNT(*) FROM records r LEFT JOIN record_embeddings e ON e.record_id = r.id
	 WHERE trim(r.summary) != '' AND (e.record_id IS NULL OR e.source_version < r.version))`

	var c store.Counts
	if err := s.db.db.QueryRowContext(ctx, q).Scan(&c.Owners, &c.Records, &c.Pending); err != nil {
		return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "counting records: %w", err)
	}
	return &c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*store.Record, error) {
	var r store.Record
	var recordDate, createdAt, updatedAt string
	if err := row.Scan(
		&r.ID,
		&r.OwnerID,
		&r.Description,
		&r.Summary,
		&recordDate,
		&r.MimeType,
		&r.Version,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	r.RecordDate = parseTime(recordDate)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

func requireRow(result sql.Result, code udberr.Code, what string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return udberr.Errorf(udberr.CodeStoreDatabaseFailure, "checking rows affected for %s: %w", what, err)
	}
	if rows == 0 {
		return udberr.New(code, what+" not found")
	}
	return nil
}
