// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package store

import (
	"strings"

	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

// Validate checks that the Owner has all required fields set.
func (o Owner) Validate() error {
	if o.ID == "" {
		return udberr.New(udberr.CodeStoreInvalidInput, "owner: ID is required")
	}
	if strings.TrimSpace(o.Username) == "" {
		return udberr.New(udberr.CodeStoreInvalidInput, "owner: Username is required")
	}
	if o.CreatedAt.IsZero() {
		return udberr.New(udberr.CodeStoreInvalidInput, "owner: CreatedAt is required")
	}
	return nil
}

// Validate checks that the Record has all required fields set correctly.
func (r Record) Validate() error {
	if r.ID == "" {
		return udberr.New(udberr.CodeStoreInvalidInput, "record: ID is required")
	}
	if r.OwnerID == "" {
		return udberr.New(udberr.CodeStoreInvalidInput, "record: OwnerID is required", udberr.FieldRecordID(r.ID))
	}
	if r.Version < 1 {
		return udberr.Errorf(udberr.CodeStoreInvalidInput, "record: Version must be >= 1, got %d", r.Version)
	}
	if r.CreatedAt.IsZero() {
		return udberr.New(udberr.CodeStoreInvalidInput, "record: CreatedAt is required", udberr.FieldRecordID(r.ID))
	}
	return nil
}

// Validate checks the shape of an Embedding. It does not know the deployment
// dimension; stores compare against that separately.
func (e Embedding) Validate() error {
	if e.RecordID == "" {
		return udberr.New(udberr.CodeStoreInvalidInput, "embedding: RecordID is required")
	}
	if len(e.Vector) == 0 {
		return udberr.New(udberr.CodeStoreInvalidInput, "embedding: Vector is empty", udberr.FieldRecordID(e.RecordID))
	}
	if e.Dimension != 0 && e.Dimension != len(e.Vector) {
		return udberr.Errorf(udberr.CodeStoreInvalidInput,
			"embedding: Dimension %d does not match vector length %d", e.Dimension, len(e.Vector))
	}
	if i := NonFinite(e.Vector); i >= 0 {
		return udberr.New(udberr.CodeStoreInvalidInput, "embedding: Vector contains a non-finite value",
			udberr.FieldRecordID(e.RecordID), udberr.Field("index", i))
	}
	if e.SourceVersion < 0 {
		return udberr.Errorf(udberr.CodeStoreInvalidInput, "embedding: SourceVersion must be >= 0, got %d", e.SourceVersion)
	}
	return nil
}
