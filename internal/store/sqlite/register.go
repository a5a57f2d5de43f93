// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package sqlite

import (
	"context"

	"github.com/udbhav-health/udbhav/internal/store"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

func init() {
	store.RegisterBackend("sqlite", newStores)
}

func newStores(ctx context.Context, cfg *store.StorageConfig, dimension int) (store.RecordStore, store.EmbeddingStore, error) {
	if cfg.Path == "" {
		return nil, nil, udberr.New(udberr.CodeStoreInvalidInput, "sqlite backend requires storage.path")
	}

	db, err := Open(cfg.Path)
	if err != nil {
		return nil, nil, err
	}

	es, err := NewEmbeddingStore(ctx, db, dimension)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	return NewRecordStore(db), es, nil
}
