// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udbhav-health/udbhav/internal/store"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

func TestOpen_RequiresPath(t *testing.T) {
	_, err := store.Open(context.Background(), &store.StorageConfig{Backend: "sqlite"}, 3)
	assert.True(t, udberr.IsInvalidInput(err), "got %v", err)
}

func TestOpen_FailsWhenPathIsDirectory(t *testing.T) {
	dir := testDir(t)
	dbPath := filepath.Join(dir, "udbhav.db")
	require.NoError(t, os.Mkdir(dbPath, 0o755))

	_, err := store.Open(context.Background(), &store.StorageConfig{Backend: "sqlite", Path: dbPath}, 3)
	require.Error(t, err)
}

func TestOpen_SharedDatabaseClosesOnce(t *testing.T) {
	stores, err := store.Open(context.Background(), &store.StorageConfig{Path: testDBPath(t, "shared")}, 3)
	require.NoError(t, err)

	assert.NoError(t, stores.Close())
	assert.NoError(t, stores.Close())
}
