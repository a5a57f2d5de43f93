// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package postgres

import (
	"context"

	"github.com/udbhav-health/udbhav/internal/store"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

func init() {
	store.RegisterBackend("postgres", newStores)
}

func newStores(ctx context.Context, cfg *store.StorageConfig, dimension int) (store.RecordStore, store.EmbeddingStore, error) {
	if cfg.DSN == "" {
		return nil, nil, udberr.New(udberr.CodeStoreInvalidInput, "postgres backend requires storage.dsn")
	}

	db, err := Open(ctx, cfg.DSN)
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
