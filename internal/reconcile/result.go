// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package reconcile

import "time"

// Failure is one record that could not be embedded.
type Failure struct {
	RecordID string
	Err      error
}

// Result summarizes one run.
type Result struct {
	// Candidates is the number of records selected for embedding.
	Candidates int
	Succeeded  int
	// Skipped items lost a race: a newer embedding was written concurrently
	// or the record was deleted mid-run.
	Skipped  int
	Failed   []Failure
	Pruned   int
	Batches  int
	DryRun   bool
	Duration time.Duration
}

// FailedIDs returns the IDs of failed records in processing order.
func (r *Result) FailedIDs() []string {
	ids := make([]string, len(r.Failed))
	for i, f := range r.Failed {
		ids[i] = f.RecordID
	}
	return ids
}
