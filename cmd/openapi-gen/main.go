// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

// Command openapi-gen writes the OpenAPI document of the udbhav HTTP API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/udbhav-health/udbhav/internal/reconcile"
	"github.com/udbhav-health/udbhav/internal/records"
	"github.com/udbhav-health/udbhav/internal/search"
	"github.com/udbhav-health/udbhav/internal/server"
	"github.com/udbhav-health/udbhav/internal/store"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec registers every route against no-op services and returns the
// document huma derives from the handler types.
func generateSpec() ([]byte, error) {
	svc, err := server.NewServices(stubRecords{}, stubSearch{}, stubReconciler{}, stubStatus{}, 10)
	if err != nil {
		return nil, err
	}

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	if err != nil {
		return nil, udberr.Errorf(udberr.CodeCLISetupFailure, "creating server: %w", err)
	}
	defer func() { _ = srv.Close() }()
	srv.RegisterServices(svc)

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// No-op services for spec generation. Handlers are never invoked.

type stubRecords struct{}

func (stubRecords) CreateOwner(context.Context, records.NewOwner) (*store.Owner, error) {
	return nil, nil
}
func (stubRecords) ListOwners(context.Context, store.ListOpts) ([]*store.Owner, error) {
	return nil, nil
}
func (stubRecords) DeleteOwner(context.Context, string) error { return nil }
func (stubRecords) CreateRecord(context.Context, records.NewRecord) (*records.Saved, error) {
	return nil, nil
}
func (stubRecords) GetRecord(context.Context, string) (*store.Record, error) { return nil, nil }
func (stubRecords) ListRecords(context.Context, string, store.ListOpts) ([]*store.Record, error) {
	return nil, nil
}
func (stubRecords) UpdateSummary(context.Context, string, string) (*records.Saved, error) {
	return nil, nil
}
func (stubRecords) DeleteRecord(context.Context, string) error { return nil }

type stubSearch struct{}

func (stubSearch) Search(context.Context, string, int, string) ([]search.Hit, error) { return nil, nil }
func (stubSearch) FindSimilar(context.Context, string, int) ([]search.Hit, error)    { return nil, nil }

type stubReconciler struct{}

func (stubReconciler) RunRequest(context.Context, reconcile.Request) (*reconcile.Result, error) {
	return nil, nil
}

type stubStatus struct{}

func (stubStatus) Status(context.Context) (*server.Status, error) { return nil, nil }
