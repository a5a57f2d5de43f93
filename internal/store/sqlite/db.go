// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package sqlite

import (
	"database/sql"
	"errors"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/mattn/go-sqlite3"

	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// DB is a SQLite database shared by the record and embedding stores.
type DB struct {
	db *sql.DB

	closeOnce sync.Once
	closeErr  error
}

// Open opens (or creates) a SQLite database at dbPath and applies the schema.
// Foreign keys are on so record deletion cascades to embeddings.
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "pinging sqlite db: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, udberr.Errorf(udberr.CodeStoreMigrateFailure, "migrating sqlite db: %w", err)
	}

	return &DB{db: db}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS owners (
	id         TEXT PRIMARY KEY,
	username   TEXT NOT NULL UNIQUE,
	email      TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	summary     TEXT NOT NULL DEFAULT '',
	record_date TEXT NOT NULL DEFAULT '',
	mime_type   TEXT NOT NULL DEFAULT '',
	version     INTEGER NOT NULL DEFAULT 1,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	FOREIGN KEY (owner_id) REFERENCES owners(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_records_owner ON records(owner_id, record_date);

CREATE TABLE IF NOT EXISTS record_embeddings (
	record_id      TEXT PRIMARY KEY,
	vector         BLOB NOT NULL,
	dimension      INTEGER NOT NULL,
	source_version INTEGER NOT NULL DEFAULT 0,
	created_at     INTEGER NOT NULL,
	FOREIGN KEY (record_id) REFERENCES records(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying connection pool. Safe to call more than once.
func (d *DB) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.db.Close()
	})
	return d.closeErr
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime serialises a time.Time in UTC using timeLayout.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == code
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	return isConstraint(err, sqlite3.ErrConstraintForeignKey)
}

func isUniqueViolation(err error) bool {
	return isConstraint(err, sqlite3.ErrConstraintUnique) || isConstraint(err, sqlite3.ErrConstraintPrimaryKey)
}

func listLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
