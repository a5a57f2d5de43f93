// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package server

import (
	"context"

	"github.com/udbhav-health/udbhav/internal/reconcile"
	"github.com/udbhav-health/udbhav/internal/records"
	"github.com/udbhav-health/udbhav/internal/search"
	"github.com/udbhav-health/udbhav/internal/store"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
	"github.com/udbhav-health/udbhav/pkg/health"
)

// RecordService is the record lifecycle used by the handlers.
type RecordService interface {
	CreateOwner(ctx context.Context, in records.NewOwner) (*store.Owner, error)
	ListOwners(ctx context.Context, opts store.ListOpts) ([]*store.Owner, error)
	DeleteOwner(ctx context.Context, id string) error
	CreateRecord(ctx context.Context, in records.NewRecord) (*records.Saved, error)
	GetRecord(ctx context.Context, id string) (*store.Record, error)
	ListRecords(ctx context.Context, ownerID string, opts store.ListOpts) ([]*store.Record, error)
	UpdateSummary(ctx context.Context, id, summary string) (*records.Saved, error)
	DeleteRecord(ctx context.Context, id string) error
}

// SearchService ranks records by similarity.
type SearchService interface {
	Search(ctx context.Context, queryText string, k int, scope string) ([]search.Hit, error)
	FindSimilar(ctx context.Context, recordID string, k int) ([]search.Hit, error)
}

// Reconciler triggers embedding backfills.
type Reconciler interface {
	RunRequest(ctx context.Context, req reconcile.Request) (*reconcile.Result, error)
}

// StatusService reports store and provider state.
type StatusService interface {
	Status(ctx context.Context) (*Status, error)
}

// Status is the body of the status endpoint.
type Status struct {
	Store    health.Store   `json:"store"`
	Provider health.Metrics `json:"provider"`
}

// Services holds dependencies injected into route handlers.
// Each field is an interface so subsystems can be mocked in tests.
type Services struct {
	records    RecordService
	search     SearchService
	reconciler Reconciler
	status     StatusService
	defaultK   int
}

// NewServices creates a Services instance. Returns an error if any service is
// nil. defaultK is used when a search request omits k.
func NewServices(rs RecordService, ss SearchService, rc Reconciler, st StatusService, defaultK int) (*Services, error) {
	if rs == nil {
		return nil, udberr.New(udberr.CodeServerConfigInvalid, "record service is required")
	}
	if ss == nil {
		return nil, udberr.New(udberr.CodeServerConfigInvalid, "search service is required")
	}
	if rc == nil {
		return nil, udberr.New(udberr.CodeServerConfigInvalid, "reconciler is required")
	}
	if st == nil {
		return nil, udberr.New(udberr.CodeServerConfigInvalid, "status service is required")
	}
	if defaultK <= 0 {
		defaultK = 10
	}
	return &Services{records: rs, search: ss, reconciler: rc, status: st, defaultK: defaultK}, nil
}

// HealthReporter exposes provider health.
type HealthReporter interface {
	HealthMetrics() health.Metrics
}

type storeStatus struct {
	stores   *store.Stores
	provider HealthReporter
}

// NewStatusService reports counts from stores and health from provider.
func NewStatusService(stores *store.Stores, provider HealthReporter) StatusService {
	return &storeStatus{stores: stores, provider: provider}
}

func (s *storeStatus) Status(ctx context.Context) (*Status, error) {
	counts, err := s.stores.Records.Counts(ctx)
	if err != nil {
		return nil, err
	}
	report, err := s.stores.Embeddings.Verify(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{
		Store: health.Store{
			Backend:    s.stores.Backend,
			Dimension:  s.stores.Embeddings.Dimension(),
			Records:    counts.Records,
			Embeddings: report.Total,
			Pending:    counts.Pending,
			Orphans:    int64(len(report.Orphans)),
			Malformed:  int64(len(report.Malformed)),
		},
		Provider: s.provider.HealthMetrics(),
	}, nil
}
