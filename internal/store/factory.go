// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

// BackendFactory opens the record and embedding stores of a backend. The
// embedding store pins dimension on first use.
type BackendFactory func(ctx context.Context, cfg *StorageConfig, dimension int) (RecordStore, EmbeddingStore, error)

var (
	factories   = map[string]BackendFactory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers the factory for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, factory BackendFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = factory
}

// Backends lists the registered backend names.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *StorageConfig) string {
	if cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// Stores bundles the stores of one backend.
type Stores struct {
	Backend    string
	Records    RecordStore
	Embeddings EmbeddingStore
}

// Open creates the stores for the configured backend.
func Open(ctx context.Context, cfg *StorageConfig, dimension int) (*Stores, error) {
	if dimension <= 0 {
		return nil, udberr.Errorf(udberr.CodeStoreInvalidInput, "embedding dimension must be positive, got %d", dimension)
	}

	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, udberr.Errorf(udberr.CodeStoreBackendUnsupported, "unsupported storage backend: %q", backend)
	}

	records, embeddings, err := factory(ctx, cfg, dimension)
	if err != nil {
		return nil, err
	}
	return &Stores{Backend: backend, Records: records, Embeddings: embeddings}, nil
}

// Close closes the embedding store and then the record store.
func (s *Stores) Close() error {
	var errs []error
	if err := s.Embeddings.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.Records.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
