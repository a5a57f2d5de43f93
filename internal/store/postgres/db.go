// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

// Package postgres provides a PostgreSQL storage backend using the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx PostgreSQL driver as "pgx"

	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

// SQLSTATE codes the stores translate into domain errors.
const (
	sqlstateForeignKeyViolation = "23503"
	sqlstateUniqueViolation     = "23505"
)

// DB is a PostgreSQL connection pool shared by the record and embedding stores.
type DB struct {
	db *sql.DB

	closeOnce sync.Once
	closeErr  error
}

// Open connects to PostgreSQL and applies the schema. connStr is either a
// keyword/value string or a postgres:// URI.
func Open(ctx context.Context, connStr string) (*DB, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "opening postgres db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, udberr.Errorf(udberr.CodeStoreDatabaseFailure, "pinging postgres db: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, udberr.Errorf(udberr.CodeStoreMigrateFailure, "migrating postgres db: %w", err)
	}

	return &DB{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS owners (
	id         TEXT PRIMARY KEY,
	username   TEXT NOT NULL UNIQUE,
	email      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS records (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL REFERENCES owners(id) ON DELETE CASCADE,
	description TEXT NOT NULL DEFAULT '',
	summary     TEXT NOT NULL DEFAULT '',
	record_date TIMESTAMPTZ NOT NULL,
	mime_type   TEXT NOT NULL DEFAULT '',
	version     BIGINT NOT NULL DEFAULT 1,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_records_owner ON records(owner_id, record_date)`,
		`CREATE TABLE IF NOT EXISTS record_embeddings (
	record_id      TEXT PRIMARY KEY REFERENCES records(id) ON DELETE CASCADE,
	vector         BYTEA NOT NULL,
	dimension      INTEGER NOT NULL,
	source_version BIGINT NOT NULL DEFAULT 0,
	created_at     BIGINT NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the pool. Safe to call more than once.
func (d *DB) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.db.Close()
	})
	return d.closeErr
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func listLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
