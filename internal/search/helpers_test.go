// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package search_test

import (
	"context"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/udbhav-health/udbhav/internal/store"
	_ "github.com/udbhav-health/udbhav/internal/store/sqlite"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

// openStores opens a sqlite-backed pair of stores in a temp directory.
func openStores(t *testing.T, dimension int) *store.Stores {
	t.Helper()
	cfg := &store.StorageConfig{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "search.db")}
	s, err := store.Open(context.Background(), cfg, dimension)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// seed creates owner (if needed), record and embedding in one go.
func seed(t *testing.T, s *store.Stores, ownerID, recordID string, vec []float32) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	if _, err := s.Records.GetOwner(ctx, ownerID); udberr.IsNotFound(err) {
		require.NoError(t, s.Records.CreateOwner(ctx, &store.Owner{ID: ownerID, Username: "u-" + ownerID, CreatedAt: now}))
	}
	require.NoError(t, s.Records.CreateRecord(ctx, &store.Record{
		ID: recordID, OwnerID: ownerID, Summary: "summary of " + recordID,
		RecordDate: now, Version: 1, CreatedAt: now,
	}))
	require.NoError(t, s.Embeddings.Put(ctx, &store.Embedding{
		RecordID: recordID, Vector: vec, Dimension: len(vec), SourceVersion: 1,
	}))
}

// memEmbeddings is an in-memory Embeddings for engine unit tests.
type memEmbeddings struct {
	dim    int
	owners map[string]string
	vecs   map[string][]float32
	err    error
}

func newMemEmbeddings(dim int) *memEmbeddings {
	return &memEmbeddings{dim: dim, owners: map[string]string{}, vecs: map[string][]float32{}}
}

func (m *memEmbeddings) add(owner, id string, vec ...float32) {
	m.owners[id] = owner
	m.vecs[id] = vec
}

func (m *memEmbeddings) Dimension() int { return m.dim }

func (m *memEmbeddings) Get(_ context.Context, id string) (*store.Embedding, error) {
	vec, ok := m.vecs[id]
	if !ok {
		return nil, udberr.New(udberr.CodeStoreEmbeddingGetNotFound, "no embedding", udberr.FieldRecordID(id))
	}
	return &store.Embedding{RecordID: id, OwnerID: m.owners[id], Vector: vec, Dimension: len(vec)}, nil
}

func (m *memEmbeddings) Scan(_ context.Context, q store.ScanQuery) ([]*store.Embedding, error) {
	if m.err != nil {
		return nil, m.err
	}
	ids := make([]string, 0, len(m.vecs))
	for id := range m.vecs {
		if q.OwnerID == "" || m.owners[id] == q.OwnerID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]*store.Embedding, 0, len(ids))
	for _, id := range ids {
		out = append(out, &store.Embedding{RecordID: id, OwnerID: m.owners[id], Vector: m.vecs[id], Dimension: len(m.vecs[id])})
	}
	return out, nil
}

