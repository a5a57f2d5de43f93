// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package sqlite_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/udbhav-health/udbhav/internal/store"
	"github.com/udbhav-health/udbhav/internal/store/sqlite"
)

// testDir creates a temp directory for a test and returns its path.
func testDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "udbhav-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(testDir(t), name+".db")
}

// openStores opens both stores over a fresh database.
func openStores(t *testing.T, path string, dimension int) (*sqlite.RecordStore, *sqlite.EmbeddingStore) {
	t.Helper()
	db, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	es, err := sqlite.NewEmbeddingStore(context.Background(), db, dimension)
	require.NoError(t, err)
	return sqlite.NewRecordStore(db), es
}

// rawDB opens the same file without foreign keys so tests can create states
// the stores themselves refuse to produce.
func rawDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=off")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedOwner(t *testing.T, rs store.RecordStore, id string) *store.Owner {
	t.Helper()
	o := &store.Owner{ID: id, Username: "user-" + id, Email: id + "@example.com", CreatedAt: time.Now()}
	require.NoError(t, rs.CreateOwner(context.Background(), o))
	return o
}

func seedRecord(t *testing.T, rs store.RecordStore, id, ownerID, summary string) *store.Record {
	t.Helper()
	now := time.Now()
	r := &store.Record{
		ID:         id,
		OwnerID:    ownerID,
		Summary:    summary,
		RecordDate: now,
		MimeType:   "application/pdf",
		Version:    1,
		CreatedAt:  now,
	}
	require.NoError(t, rs.CreateRecord(context.Background(), r))
	return r
}
