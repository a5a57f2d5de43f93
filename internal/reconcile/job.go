// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

// Package reconcile backfills missing or outdated embeddings in batches.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/udbhav-health/udbhav/internal/embedding"
	"github.com/udbhav-health/udbhav/internal/metrics"
	"github.com/udbhav-health/udbhav/internal/store"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

const (
	DefaultBatchSize    = 32
	DefaultBatchTimeout = 2 * time.Minute
)

// Candidates lists records that need embedding.
type Candidates interface {
	ListCandidates(ctx context.Context, q store.CandidateQuery) ([]store.SourceText, error)
}

// Embeddings is the part of store.EmbeddingStore the job writes to.
type Embeddings interface {
	Put(ctx context.Context, e *store.Embedding) error
	PruneOrphans(ctx context.Context) (int, error)
}

// Config tunes a Job.
type Config struct {
	BatchSize int
	// BatchTimeout bounds each provider batch call, not the whole run.
	BatchTimeout time.Duration
}

// Request selects what a run processes.
type Request struct {
	Force   bool
	OwnerID string
	// DryRun only counts candidates.
	DryRun bool
}

// Job regenerates embeddings for records that lack an up-to-date one.
// Runs are serialized.
type Job struct {
	records    Candidates
	embeddings Embeddings
	provider   embedding.Provider
	cfg        Config
	metrics    *metrics.Metrics

	mu sync.Mutex
}

// New creates a job. m may be nil.
func New(records Candidates, embeddings Embeddings, provider embedding.Provider, cfg Config, m *metrics.Metrics) *Job {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultBatchTimeout
	}
	return &Job{records: records, embeddings: embeddings, provider: provider, cfg: cfg, metrics: m}
}

// Run processes every candidate record. force regenerates embeddings that are
// already current.
func (j *Job) Run(ctx context.Context, force bool) (*Result, error) {
	return j.RunRequest(ctx, Request{Force: force})
}

// RunRequest is Run with owner scoping and dry-run support. Only a failure to
// list candidates is returned as an error; per-record failures are reported
// in the result.
func (j *Job) RunRequest(ctx context.Context, req Request) (*Result, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	start := time.Now()
	res := &Result{DryRun: req.DryRun}

	if !req.DryRun {
		pruned, err := j.embeddings.PruneOrphans(ctx)
		if err != nil {
			slog.Warn("pruning orphaned embeddings failed", "error", err)
		}
		res.Pruned = pruned
	}

	candidates, err := j.records.ListCandidates(ctx, store.CandidateQuery{Force: req.Force, OwnerID: req.OwnerID})
	if err != nil {
		return nil, udberr.Wrap(err, udberr.CodeReconcileListFailure, "listing reconciliation candidates",
			udberr.FieldOwnerID(req.OwnerID))
	}
	res.Candidates = len(candidates)

	if !req.DryRun {
		for batch := range chunk(candidates, j.cfg.BatchSize) {
			if err := ctx.Err(); err != nil {
				j.failAll(res, batch, err)
				continue
			}
			res.Batches++
			j.processBatch(ctx, res, batch)
		}
	}

	res.Duration = time.Since(start)
	j.metrics.AddReconciled(metrics.OutcomeSuccess, res.Succeeded)
	j.metrics.AddReconciled(metrics.OutcomeSkipped, res.Skipped)
	j.metrics.AddReconciled(metrics.OutcomeFailure, len(res.Failed))

	slog.Info("reconciliation finished",
		"candidates", res.Candidates,
		"succeeded", res.Succeeded,
		"skipped", res.Skipped,
		"failed", len(res.Failed),
		"pruned", res.Pruned,
		"force", req.Force,
		"owner_id", req.OwnerID,
		"dry_run", req.DryRun,
		"took", res.Duration,
	)
	return res, nil
}

func (j *Job) processBatch(ctx context.Context, res *Result, batch []store.SourceText) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	bctx, cancel := context.WithTimeout(ctx, j.cfg.BatchTimeout)
	vecs, err := j.provider.EmbedBatch(bctx, texts)
	cancel()
	if err == nil {
		for i, c := range batch {
			j.store(ctx, res, c, vecs[i])
		}
		return
	}

	// Retry each item once on its own so one bad text cannot sink the batch.
	slog.Warn("embedding batch failed, retrying items individually",
		"size", len(batch), "first_record_id", batch[0].RecordID, "error", err)

	ictx, cancel := context.WithTimeout(ctx, j.cfg.BatchTimeout)
	defer cancel()
	for _, c := range batch {
		vec, err := j.provider.Embed(ictx, c.Text)
		if err != nil {
			res.Failed = append(res.Failed, Failure{RecordID: c.RecordID, Err: err})
			slog.Warn("embedding record failed", "record_id", c.RecordID, "error", err)
			continue
		}
		j.store(ctx, res, c, vec)
	}
}

func (j *Job) store(ctx context.Context, res *Result, c store.SourceText, vec []float32) {
	err := j.embeddings.Put(ctx, &store.Embedding{
		RecordID:      c.RecordID,
		Vector:        vec,
		Dimension:     len(vec),
		SourceVersion: c.Version,
	})
	switch {
	case err == nil:
		res.Succeeded++
	case udberr.IsStale(err), udberr.HasCode(err, udberr.CodeStoreRecordGetNotFound):
		slog.Debug("skipping superseded embedding", "record_id", c.RecordID, "version", c.Version, "reason", udberr.CodeOf(err))
		res.Skipped++
	default:
		res.Failed = append(res.Failed, Failure{RecordID: c.RecordID, Err: err})
		slog.Warn("storing embedding failed", "record_id", c.RecordID, "error", err)
	}
}

func (j *Job) failAll(res *Result, batch []store.SourceText, err error) {
	for _, c := range batch {
		res.Failed = append(res.Failed, Failure{RecordID: c.RecordID, Err: err})
	}
}

// Start runs the job immediately and then every interval until ctx is done.
// Errors are logged. A pass is skipped while the provider reports itself
// unavailable.
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if j.providerAvailable() {
			if _, err := j.Run(ctx, false); err != nil && ctx.Err() == nil {
				slog.Error("scheduled reconciliation failed", "error", err)
			}
		} else {
			slog.Info("skipping scheduled reconciliation while provider cools down", "provider", j.provider.Name())
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// availability is implemented by providers that track their own health,
// such as embedding.Instrumented.
type availability interface {
	Available() bool
}

func (j *Job) providerAvailable() bool {
	a, ok := j.provider.(availability)
	return !ok || a.Available()
}

// chunk yields consecutive slices of at most size items.
func chunk[T any](items []T, size int) func(yield func([]T) bool) {
	return func(yield func([]T) bool) {
		for start := 0; start < len(items); start += size {
			end := min(start+size, len(items))
			if !yield(items[start:end]) {
				return
			}
		}
	}
}
