// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/udbhav-health/udbhav/internal/reconcile"
	"github.com/udbhav-health/udbhav/internal/records"
	"github.com/udbhav-health/udbhav/internal/search"
	"github.com/udbhav-health/udbhav/internal/store"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	// Owner endpoints
	huma.Register(s.api, huma.Operation{
		OperationID:   "create-owner",
		Method:        http.MethodPost,
		Path:          "/api/v1/owners",
		Summary:       "Create an owner",
		Tags:          []string{"owners"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateOwner)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-owners",
		Method:      http.MethodGet,
		Path:        "/api/v1/owners",
		Summary:     "List owners",
		Tags:        []string{"owners"},
	}, s.handleListOwners)

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-owner",
		Method:        http.MethodDelete,
		Path:          "/api/v1/owners/{id}",
		Summary:       "Delete an owner with all records and embeddings",
		Tags:          []string{"owners"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteOwner)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-owner-records",
		Method:      http.MethodGet,
		Path:        "/api/v1/owners/{id}/records",
		Summary:     "List an owner's records",
		Tags:        []string{"records"},
	}, s.handleListRecords)

	// Record endpoints
	huma.Register(s.api, huma.Operation{
		OperationID:   "create-record",
		Method:        http.MethodPost,
		Path:          "/api/v1/records",
		Summary:       "Create a record and embed its summary",
		Tags:          []string{"records"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateRecord)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-record",
		Method:      http.MethodGet,
		Path:        "/api/v1/records/{id}",
		Summary:     "Get a record",
		Tags:        []string{"records"},
	}, s.handleGetRecord)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-record-summary",
		Method:      http.MethodPut,
		Path:        "/api/v1/records/{id}/summary",
		Summary:     "Replace a record's summary",
		Tags:        []string{"records"},
	}, s.handleUpdateSummary)

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-record",
		Method:        http.MethodDelete,
		Path:          "/api/v1/records/{id}",
		Summary:       "Delete a record and its embedding",
		Tags:          []string{"records"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteRecord)

	// Search endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "search",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Rank records by similarity to a query",
		Tags:        []string{"search"},
	}, s.handleSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "similar-records",
		Method:      http.MethodGet,
		Path:        "/api/v1/records/{id}/similar",
		Summary:     "Rank records by similarity to a record",
		Tags:        []string{"search"},
	}, s.handleSimilar)

	// Maintenance
	huma.Register(s.api, huma.Operation{
		OperationID: "reconcile",
		Method:      http.MethodPost,
		Path:        "/api/v1/reconcile",
		Summary:     "Backfill missing or outdated embeddings",
		Tags:        []string{"system"},
	}, s.handleReconcile)

	huma.Register(s.api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Store and provider status",
		Tags:        []string{"system"},
	}, s.handleStatus)
}

// --- Request/Response types for huma ---

// OwnerBody is the JSON form of an owner.
type OwnerBody struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordBody is the JSON form of a record.
type RecordBody struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Description string    `json:"description"`
	Summary     string    `json:"summary"`
	RecordDate  time.Time `json:"record_date"`
	MimeType    string    `json:"mime_type,omitempty"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SavedBody is a record after a write.
type SavedBody struct {
	Record     RecordBody `json:"record"`
	Embedded   bool       `json:"embedded" doc:"Whether the summary embedding is current"`
	EmbedError string     `json:"embed_error,omitempty"`
}

// HitBody is one ranked search result.
type HitBody struct {
	Record     RecordBody `json:"record"`
	Similarity float64    `json:"similarity"`
}

// ReconcileBody summarizes a reconciliation run.
type ReconcileBody struct {
	Candidates int      `json:"candidates"`
	Succeeded  int      `json:"succeeded"`
	Skipped    int      `json:"skipped"`
	Failed     []string `json:"failed"`
	Pruned     int      `json:"pruned"`
	Batches    int      `json:"batches"`
	DryRun     bool     `json:"dry_run"`
	DurationMS int64    `json:"duration_ms"`
}

type idInput struct {
	ID string `path:"id"`
}

type createOwnerInput struct {
	Body struct {
		Username string `json:"username" minLength:"1"`
		Email    string `json:"email,omitempty"`
	}
}
type ownerOutput struct {
	Body OwnerBody
}

type listInput struct {
	Limit  int `query:"limit" minimum:"0" doc:"Maximum results, 0 for all"`
	Offset int `query:"offset" minimum:"0"`
}
type listOwnersOutput struct {
	Body struct {
		Owners []OwnerBody `json:"owners"`
	}
}

type listRecordsInput struct {
	ID     string `path:"id"`
	Limit  int    `query:"limit" minimum:"0"`
	Offset int    `query:"offset" minimum:"0"`
}
type listRecordsOutput struct {
	Body struct {
		Records []RecordBody `json:"records"`
	}
}

type createRecordInput struct {
	Body struct {
		OwnerID     string     `json:"owner_id" minLength:"1"`
		Description string     `json:"description,omitempty"`
		Summary     string     `json:"summary,omitempty"`
		RecordDate  *time.Time `json:"record_date,omitempty"`
		MimeType    string     `json:"mime_type,omitempty"`
	}
}
type savedOutput struct {
	Body SavedBody
}

type recordOutput struct {
	Body RecordBody
}

type updateSummaryInput struct {
	ID   string `path:"id"`
	Body struct {
		Summary string `json:"summary" doc:"New summary, empty to clear"`
	}
}

type searchInput struct {
	Query string `query:"q" doc:"Free-text query"`
	K     int    `query:"k" minimum:"0" doc:"Result limit, 0 for the server default"`
	Owner string `query:"owner" doc:"Restrict results to one owner"`
}
type similarInput struct {
	ID string `path:"id"`
	K  int    `query:"k" minimum:"0"`
}
type hitsOutput struct {
	Body struct {
		Results []HitBody `json:"results"`
	}
}

type reconcileInput struct {
	Body struct {
		Force  bool   `json:"force,omitempty"`
		Owner  string `json:"owner,omitempty"`
		DryRun bool   `json:"dry_run,omitempty"`
	}
}
type reconcileOutput struct {
	Body ReconcileBody
}

type statusOutput struct {
	Body Status
}

// --- Handlers ---

func (s *Server) handleCreateOwner(ctx context.Context, input *createOwnerInput) (*ownerOutput, error) {
	owner, err := s.services.records.CreateOwner(ctx, records.NewOwner{
		Username: input.Body.Username,
		Email:    input.Body.Email,
	})
	if err != nil {
		return nil, apiError("creating owner", err)
	}
	return &ownerOutput{Body: toOwnerBody(owner)}, nil
}

func (s *Server) handleListOwners(ctx context.Context, input *listInput) (*listOwnersOutput, error) {
	owners, err := s.services.records.ListOwners(ctx, store.ListOpts{Limit: input.Limit, Offset: input.Offset})
	if err != nil {
		return nil, apiError("listing owners", err)
	}
	out := &listOwnersOutput{}
	out.Body.Owners = make([]OwnerBody, 0, len(owners))
	for _, o := range owners {
		out.Body.Owners = append(out.Body.Owners, toOwnerBody(o))
	}
	return out, nil
}

func (s *Server) handleDeleteOwner(ctx context.Context, input *idInput) (*struct{}, error) {
	if err := s.services.records.DeleteOwner(ctx, input.ID); err != nil {
		return nil, apiError("deleting owner", err)
	}
	return nil, nil
}

func (s *Server) handleListRecords(ctx context.Context, input *listRecordsInput) (*listRecordsOutput, error) {
	recs, err := s.services.records.ListRecords(ctx, input.ID, store.ListOpts{Limit: input.Limit, Offset: input.Offset})
	if err != nil {
		return nil, apiError("listing records", err)
	}
	out := &listRecordsOutput{}
	out.Body.Records = make([]RecordBody, 0, len(recs))
	for _, r := range recs {
		out.Body.Records = append(out.Body.Records, toRecordBody(r))
	}
	return out, nil
}

func (s *Server) handleCreateRecord(ctx context.Context, input *createRecordInput) (*savedOutput, error) {
	in := records.NewRecord{
		OwnerID:     input.Body.OwnerID,
		Description: input.Body.Description,
		Summary:     input.Body.Summary,
		MimeType:    input.Body.MimeType,
	}
	if input.Body.RecordDate != nil {
		in.RecordDate = *input.Body.RecordDate
	}
	saved, err := s.services.records.CreateRecord(ctx, in)
	if err != nil {
		return nil, apiError("creating record", err)
	}
	return &savedOutput{Body: toSavedBody(saved)}, nil
}

func (s *Server) handleGetRecord(ctx context.Context, input *idInput) (*recordOutput, error) {
	rec, err := s.services.records.GetRecord(ctx, input.ID)
	if err != nil {
		return nil, apiError("loading record", err)
	}
	return &recordOutput{Body: toRecordBody(rec)}, nil
}

func (s *Server) handleUpdateSummary(ctx context.Context, input *updateSummaryInput) (*savedOutput, error) {
	saved, err := s.services.records.UpdateSummary(ctx, input.ID, input.Body.Summary)
	if err != nil {
		return nil, apiError("updating summary", err)
	}
	return &savedOutput{Body: toSavedBody(saved)}, nil
}

func (s *Server) handleDeleteRecord(ctx context.Context, input *idInput) (*struct{}, error) {
	if err := s.services.records.DeleteRecord(ctx, input.ID); err != nil {
		return nil, apiError("deleting record", err)
	}
	return nil, nil
}

func (s *Server) handleSearch(ctx context.Context, input *searchInput) (*hitsOutput, error) {
	hits, err := s.services.search.Search(ctx, input.Query, s.services.k(input.K), input.Owner)
	if err != nil {
		return nil, apiError("searching", err)
	}
	return toHitsOutput(hits), nil
}

func (s *Server) handleSimilar(ctx context.Context, input *similarInput) (*hitsOutput, error) {
	hits, err := s.services.search.FindSimilar(ctx, input.ID, s.services.k(input.K))
	if err != nil {
		return nil, apiError("finding similar records", err)
	}
	return toHitsOutput(hits), nil
}

func (s *Server) handleReconcile(ctx context.Context, input *reconcileInput) (*reconcileOutput, error) {
	res, err := s.services.reconciler.RunRequest(ctx, reconcile.Request{
		Force:   input.Body.Force,
		OwnerID: input.Body.Owner,
		DryRun:  input.Body.DryRun,
	})
	if err != nil {
		return nil, apiError("reconciling", err)
	}
	return &reconcileOutput{Body: ReconcileBody{
		Candidates: res.Candidates,
		Succeeded:  res.Succeeded,
		Skipped:    res.Skipped,
		Failed:     res.FailedIDs(),
		Pruned:     res.Pruned,
		Batches:    res.Batches,
		DryRun:     res.DryRun,
		DurationMS: res.Duration.Milliseconds(),
	}}, nil
}

func (s *Server) handleStatus(ctx context.Context, _ *struct{}) (*statusOutput, error) {
	st, err := s.services.status.Status(ctx)
	if err != nil {
		return nil, apiError("reading status", err)
	}
	return &statusOutput{Body: *st}, nil
}

// k resolves a requested result limit; zero means the configured default.
func (svc *Services) k(requested int) int {
	if requested == 0 {
		return svc.defaultK
	}
	return requested
}

// apiError maps a coded error to an HTTP problem response. Internal failures
// are logged and reported without detail.
func apiError(action string, err error) error {
	status := udberr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "action", action, "code", udberr.CodeOf(err), "error", err)
		return huma.Error500InternalServerError(action + " failed")
	}
	return huma.NewError(status, err.Error())
}

func toOwnerBody(o *store.Owner) OwnerBody {
	return OwnerBody{ID: o.ID, Username: o.Username, Email: o.Email, CreatedAt: o.CreatedAt}
}

func toRecordBody(r *store.Record) RecordBody {
	return RecordBody{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Description: r.Description,
		Summary:     r.Summary,
		RecordDate:  r.RecordDate,
		MimeType:    r.MimeType,
		Version:     r.Version,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func toSavedBody(saved *records.Saved) SavedBody {
	body := SavedBody{Record: toRecordBody(saved.Record), Embedded: saved.Embedded}
	if saved.EmbedError != nil {
		body.EmbedError = saved.EmbedError.Error()
	}
	return body
}

func toHitsOutput(hits []search.Hit) *hitsOutput {
	out := &hitsOutput{}
	out.Body.Results = make([]HitBody, 0, len(hits))
	for _, h := range hits {
		out.Body.Results = append(out.Body.Results, HitBody{Record: toRecordBody(h.Record), Similarity: h.Similarity})
	}
	return out
}
