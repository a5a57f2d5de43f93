// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/udbhav-health/udbhav/internal/store"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

var _ store.RecordStore = (*RecordStore)(nil)

// RecordStore implements store.RecordStore backed by PostgreSQL.
type RecordStore struct {
	db *DB
}

func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db}
}

func (s *RecordStore) Close() error {
	return s.db.Close()
}

func (s *RecordStore) CreateOwner(ctx context.Context, owner *store.Owner) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	_, err := s.db.db.ExecContext(ctx,
		`INSERT INTO owners (id, username, email, created_at) VALUES ($1, $2, $3, $4)`,
		owner.ID, owner.Username, owner.Email, owner.CreatedAt.UTC())
	if sqlState(err) == sqlstateUniqueViolation {
		return udberr.Errorf(udberr.CodeStoreOwnerCreateConflict, "owner %s (%s) already exists", owner.ID, owner.Username)
	}
	if err != nil {
		return udberr.Errorf(udberr.CodeStoreDatabaseFailure, "creating owner %s: %w", owner.ID, err)
	}
	return nil
}

func (s *RecordStore) GetOwner(ctx context.Context, id string) (*store.Owner, error) {
	var o store.Owner
	err := s.db.db.QueryRowContext(ctx,
		`SELECT id, username, email, created_at FROM owners WHERE id = $1`, id,
	).Scan(&o.ID, &o.Username, &o.Email, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, udberr.New(udberr.CodeStoreOwnerGetNotFound, "owner "+id+" not found", udberr.FieldOwnerID(id))
	}
	if err != nil {
		return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "getting owner %s: %w", id, err)
	}
	return &o, nil
}

func (s *RecordStore) ListOwners(ctx context.Context, opts store.ListOpts) ([]*store.Owner, error) {
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT id, username, email, created_at FROM owners ORDER BY username LIMIT $1 OFFSET $2`,
		listLimit(opts.Limit), opts.Offset)
	if err != nil {
		return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "listing owners: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var owners []*store.Owner
	for rows.Next() {
		var o store.Owner
		if err := rows.Scan(&o.ID, &o.Username, &o.Email, &o.CreatedAt); err != nil {
			return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "scanning owner row: %w", err)
		}
		owners = append(owners, &o)
	}
	return owners, rows.Err()
}

func (s *RecordStore) DeleteOwner(ctx context.Context, id string) error {
	result, err := s.db.db.ExecContext(ctx, `DELETE FROM owners WHERE id = $1`, id)
	if err != nil {
		return udberr.Errorf(udberr.CodeStoreDatabaseFailure, "deleting owner %s: %w", id, err)
	}
	return requireRow(result, udberr.CodeStoreOwnerGetNotFound, "owner "+id)
}

const recordColumns = `id, owner_id, description, summary, record_date, mime_type, version, created_at, updated_at`

func (s *RecordStore) CreateRecord(ctx context.Context, record *store.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}

	_, err := s.db.db.ExecContext(ctx,
		`INSERT INTO records (`+recordColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		record.ID, record.OwnerID, record.Description, record.Summary, record.RecordDate.UTC(),
		record.MimeType, record.Version, record.CreatedAt.UTC(), record.UpdatedAt.UTC())
	switch {
	case sqlState(err) == sqlstateForeignKeyViolation:
		return udberr.New(udberr.CodeStoreOwnerGetNotFound, "owner "+record.OwnerID+" not found",
			udberr.FieldOwnerID(record.OwnerID), udberr.FieldRecordID(record.ID))
	case sqlState(err) == sqlstateUniqueViolation:
		return udberr.Errorf(udberr.CodeStoreRecordCreateConflict, "record %s already exists", record.ID)
	case err != nil:
		return udberr.Errorf(udberr.CodeStoreDatabaseFailure, "creating record %s: %w", record.ID, err)
	}
	return nil
}

func (s *RecordStore) GetRecord(ctx context.Context, id string) (*store.Record, error) {
	r, err := scanRecord(s.db.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, udberr.New(udberr.CodeStoreRecordGetNotFound, "record "+id+" not found", udberr.FieldRecordID(id))
	}
	if err != nil {
		return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "getting record %s: %w", id, err)
	}
	return r, nil
}

func (s *RecordStore) ListRecords(ctx context.Context, ownerID string, opts store.ListOpts) ([]*store.Record, error) {
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE owner_id = $1
ORDER BY record_date DESC, id ASC LIMIT $2 OFFSET $3`,
		ownerID, listLimit(opts.Limit), opts.Offset)
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
	// IS DISTINCT FROM keeps the version stable when the text is unchanged.
	_, err := s.db.db.ExecContext(ctx,
		`UPDATE records SET summary = $1, version = version + 1, updated_at = $2
WHERE id = $3 AND summary IS DISTINCT FROM $1`,
		summary, time.Now().UTC(), id)
	if err != nil {
		return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "updating summary of record %s: %w", id, err)
	}
	return s.GetRecord(ctx, id)
}

func (s *RecordStore) DeleteRecord(ctx context.Context, id string) error {
	result, err := s.db.db.ExecContext(ctx, `DELETE FROM records WHERE id = $1`, id)
	if err != nil {
		return udberr.Errorf(udberr.CodeStoreDatabaseFailure, "deleting record %s: %w", id, err)
	}
	return requireRow(result, udberr.CodeStoreRecordGetNotFound, "record "+id)
}

func (s *RecordStore) GetText(ctx context.Context, id string) (*store.SourceText, error) {
	var st store.SourceText
	err := s.db.db.QueryRowContext(ctx,
		`SELECT id, owner_id, summary, version FROM records WHERE id = $1`, id,
	).Scan(&st.RecordID, &st.OwnerID, &st.Text, &st.Version)
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
WHERE btrim(r.summary) <> ''
  AND ($1::boolean OR e.record_id IS NULL OR e.source_version < r.version)
  AND ($2 = '' OR r.owner_id = $2)
ORDER BY r.id`

	rows, err := s.db.db.QueryContext(ctx, q, cq.Force, cq.OwnerID)
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
	 WHERE btrim(r.summary) <> '' AND (e.record_id IS NULL OR e.source_version < r.version))`

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
	if err := row.Scan(
		&r.ID, &r.OwnerID, &r.Description, &r.Summary, &r.RecordDate,
		&r.MimeType, &r.Version, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
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
