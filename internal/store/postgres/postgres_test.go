// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udbhav-health/udbhav/internal/store"
	_ "github.com/udbhav-health/udbhav/internal/store/postgres" // register postgres backend
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

// openStores connects to the database named by UDBHAV_TEST_POSTGRES_DSN or
// skips the test. Tables are emptied first so tests start clean.
func openStores(t *testing.T) *store.Stores {
	t.Helper()
	dsn := os.Getenv("UDBHAV_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("UDBHAV_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}

	ctx := context.Background()
	stores, err := store.Open(ctx, &store.StorageConfig{Backend: "postgres", DSN: dsn}, 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.Close() })

	owners, err := stores.Records.ListOwners(ctx, store.ListOpts{Limit: 1000})
	require.NoError(t, err)
	for _, o := range owners {
		require.NoError(t, stores.Records.DeleteOwner(ctx, o.ID))
	}
	return stores
}

func seed(t *testing.T, rs store.RecordStore, ownerID string, recordIDs ...string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, rs.CreateOwner(ctx, &store.Owner{ID: ownerID, Username: "user-" + ownerID, CreatedAt: now}))
	for _, id := range recordIDs {
		require.NoError(t, rs.CreateRecord(ctx, &store.Record{
			ID: id, OwnerID: ownerID, Summary: "summary " + id, Version: 1, RecordDate: now, CreatedAt: now,
		}))
	}
}

func TestPostgres_EmbeddingLifecycle(t *testing.T) {
	ctx := context.Background()
	stores := openStores(t)
	seed(t, stores.Records, "o1", "r1", "r2")
	seed(t, stores.Records, "o2", "r3")

	es := stores.Embeddings
	require.NoError(t, es.Put(ctx, &store.Embedding{RecordID: "r1", Vector: []float32{1, 0, 0}, SourceVersion: 1}))
	require.NoError(t, es.Put(ctx, &store.Embedding{RecordID: "r3", Vector: []float32{0, 0, 1}, SourceVersion: 1}))

	got, err := es.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, got.Vector)
	assert.Equal(t, "o1", got.OwnerID)

	assert.True(t, udberr.IsDimensionMismatch(es.Put(ctx, &store.Embedding{RecordID: "r2", Vector: []float32{1}})))
	assert.True(t, udberr.IsNotFound(es.Put(ctx, &store.Embedding{RecordID: "ghost", Vector: []float32{1, 1, 1}})))

	require.NoError(t, es.Put(ctx, &store.Embedding{RecordID: "r1", Vector: []float32{0, 1, 0}, SourceVersion: 3}))
	assert.True(t, udberr.IsStale(es.Put(ctx, &store.Embedding{RecordID: "r1", Vector: []float32{1, 1, 1}, SourceVersion: 2})))

	scoped, err := es.Scan(ctx, store.ScanQuery{OwnerID: "o2"})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "r3", scoped[0].RecordID)

	candidates, err := stores.Records.ListCandidates(ctx, store.CandidateQuery{})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "r2", candidates[0].RecordID)

	require.NoError(t, stores.Records.DeleteOwner(ctx, "o1"))
	ok, err := es.Exists(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, ok)

	report, err := es.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK())
}

func TestPostgres_UpdateSummaryVersion(t *testing.T) {
	ctx := context.Background()
	stores := openStores(t)
	seed(t, stores.Records, "o1", "r1")

	r, err := stores.Records.UpdateSummary(ctx, "r1", "new text")
	require.NoError(t, err)
	assert.Equal(t, int64(2), r.Version)

	r, err = stores.Records.UpdateSummary(ctx, "r1", "new text")
	require.NoError(t, err)
	assert.Equal(t, int64(2), r.Version)
}

func TestPostgres_PutFromOldSnapshotAfterSummaryCleared(t *testing.T) {
	ctx := context.Background()
	stores := openStores(t)
	seed(t, stores.Records, "o1", "r1")

	_, err := stores.Records.UpdateSummary(ctx, "r1", "")
	require.NoError(t, err)

	err = stores.Embeddings.Put(ctx, &store.Embedding{RecordID: "r1", Vector: []float32{1, 0, 0}, SourceVersion: 1})
	assert.True(t, udberr.IsStale(err), "got %v", err)

	exists, err := stores.Embeddings.Exists(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, exists)
}
