// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package health

import "time"

// Metrics is a point-in-time view of an embedding provider's health.
type Metrics struct {
	Provider      string     `json:"provider"`
	FailureCount  int64      `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	Available     bool       `json:"available"`
}

// Store summarizes the embedding store for the status endpoint.
type Store struct {
	Backend    string `json:"backend"`
	Dimension  int    `json:"dimension"`
	Records    int64  `json:"records"`
	Embeddings int64  `json:"embeddings"`
	// Pending counts records with a summary but no embedding yet.
	Pending int64 `json:"pending"`
	// Orphans and Malformed come from an integrity check of stored vectors.
	Orphans   int64 `json:"orphans"`
	Malformed int64 `json:"malformed"`
}
