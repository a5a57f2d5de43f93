// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package reconcile_test

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udbhav-health/udbhav/internal/embedding"
	"github.com/udbhav-health/udbhav/internal/embedding/hash"
	"github.com/udbhav-health/udbhav/internal/metrics"
	"github.com/udbhav-health/udbhav/internal/reconcile"
	"github.com/udbhav-health/udbhav/internal/store"
	_ "github.com/udbhav-health/udbhav/internal/store/sqlite"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

const testDim = 32

func openStores(t *testing.T) *store.Stores {
	t.Helper()
	cfg := &store.StorageConfig{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "reconcile.db")}
	s, err := store.Open(context.Background(), cfg, testDim)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedOwner(t *testing.T, s *store.Stores, id string) {
	t.Helper()
	require.NoError(t, s.Records.CreateOwner(context.Background(),
		&store.Owner{ID: id, Username: "u-" + id, CreatedAt: time.Now()}))
}

func seedRecord(t *testing.T, s *store.Stores, ownerID, id, summary string) {
	t.Helper()
	now := time.Now()
	require.NoError(t, s.Records.CreateRecord(context.Background(), &store.Record{
		ID: id, OwnerID: ownerID, Summary: summary, RecordDate: now, Version: 1, CreatedAt: now,
	}))
}

// scriptedProvider wraps the hash provider. Texts containing "poison" fail,
// which makes any batch holding one fail as a whole.
type scriptedProvider struct {
	*hash.Provider
	batchCalls  atomic.Int32
	singleCalls atomic.Int32
	onBatch     func()
	cooling     atomic.Bool
}

func newScriptedProvider(t *testing.T) *scriptedProvider {
	t.Helper()
	p, err := hash.New(testDim)
	require.NoError(t, err)
	return &scriptedProvider{Provider: p}
}

func (p *scriptedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.singleCalls.Add(1)
	if strings.Contains(text, "poison") {
		return nil, udberr.New(udberr.CodeProviderUpstreamFailure, "content rejected upstream")
	}
	return p.Provider.Embed(ctx, text)
}

func (p *scriptedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.batchCalls.Add(1)
	if p.onBatch != nil {
		p.onBatch()
	}
	for _, text := range texts {
		if strings.Contains(text, "poison") {
			return nil, udberr.New(udberr.CodeProviderUpstreamFailure, "batch rejected upstream")
		}
	}
	return p.Provider.EmbedBatch(ctx, texts)
}

// Available mirrors embedding.Instrumented during a failure cooldown.
func (p *scriptedProvider) Available() bool { return !p.cooling.Load() }

var _ embedding.Provider = (*scriptedProvider)(nil)

func TestRun_EmbedsAllCandidates(t *testing.T) {
	ctx := context.Background()
	s := openStores(t)
	seedOwner(t, s, "o1")
	for i := range 7 {
		seedRecord(t, s, "o1", fmt.Sprintf("r%d", i), fmt.Sprintf("summary number %d", i))
	}
	seedRecord(t, s, "o1", "blank", "   ")

	p := newScriptedProvider(t)
	job := reconcile.New(s.Records, s.Embeddings, p, reconcile.Config{BatchSize: 3}, nil)

	res, err := job.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Candidates)
	assert.Equal(t, 7, res.Succeeded)
	assert.Empty(t, res.Failed)
	assert.Equal(t, 3, res.Batches)
	assert.Equal(t, int32(3), p.batchCalls.Load())

	n, err := s.Embeddings.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	ok, err := s.Embeddings.Exists(ctx, "blank")
	require.NoError(t, err)
	assert.False(t, ok, "records without text are never candidates")
}

func TestRun_PartialFailureIsolation(t *testing.T) {
	ctx := context.Background()
	s := openStores(t)
	seedOwner(t, s, "o1")
	seedRecord(t, s, "o1", "a", "alpha text")
	seedRecord(t, s, "o1", "b", "bravo text")
	seedRecord(t, s, "o1", "c", "poison text")
	seedRecord(t, s, "o1", "d", "delta text")
	seedRecord(t, s, "o1", "e", "echo text")

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	p := newScriptedProvider(t)
	job := reconcile.New(s.Records, s.Embeddings, p, reconcile.Config{BatchSize: 5}, m)

	res, err := job.Run(ctx, false)
	require.NoError(t, err, "per-item failures never fail the run")
	assert.Equal(t, 4, res.Succeeded)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, []string{"c"}, res.FailedIDs())
	assert.True(t, udberr.IsProviderFailure(res.Failed[0].Err))
	assert.Equal(t, int32(5), p.singleCalls.Load(), "each item retried once individually")

	for _, id := range []string{"a", "b", "d", "e"} {
		got, err := s.Embeddings.Get(ctx, id)
		require.NoError(t, err, id)
		assert.Len(t, got.Vector, testDim)
	}
	ok, err := s.Embeddings.Exists(ctx, "c")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.ReconcileItems.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconcileItems.WithLabelValues("failure")))
}

func TestRun_FailedBatchDoesNotStopLaterBatches(t *testing.T) {
	ctx := context.Background()
	s := openStores(t)
	seedOwner(t, s, "o1")
	seedRecord(t, s, "o1", "a1", "poison one")
	seedRecord(t, s, "o1", "a2", "fine two")
	seedRecord(t, s, "o1", "b1", "fine three")
	seedRecord(t, s, "o1", "b2", "fine four")

	job := reconcile.New(s.Records, s.Embeddings, newScriptedProvider(t), reconcile.Config{BatchSize: 2}, nil)
	res, err := job.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Succeeded)
	assert.Equal(t, []string{"a1"}, res.FailedIDs())
	assert.Equal(t, 2, res.Batches)
}

func TestRun_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := openStores(t)
	seedOwner(t, s, "o1")
	seedRecord(t, s, "o1", "a", "first summary")
	seedRecord(t, s, "o1", "b", "second summary")

	job := reconcile.New(s.Records, s.Embeddings, newScriptedProvider(t), reconcile.Config{}, nil)

	first, err := job.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Succeeded)
	before, err := s.Embeddings.Scan(ctx, store.ScanQuery{})
	require.NoError(t, err)

	second, err := job.Run(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, second.Candidates)
	assert.Zero(t, second.Succeeded)
	assert.Empty(t, second.Failed)

	after, err := s.Embeddings.Scan(ctx, store.ScanQuery{})
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].Vector, after[i].Vector)
		assert.Equal(t, before[i].SourceVersion, after[i].SourceVersion)
	}

	forced, err := job.Run(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, forced.Succeeded, "force regenerates current embeddings")
	again, err := s.Embeddings.Scan(ctx, store.ScanQuery{})
	require.NoError(t, err)
	for i := range before {
		assert.Equal(t, before[i].Vector, again[i].Vector, "forced regeneration converges to the same vector")
	}
}

func TestRun_PicksUpEditedSummaries(t *testing.T) {
	ctx := context.Background()
	s := openStores(t)
	seedOwner(t, s, "o1")
	seedRecord(t, s, "o1", "a", "original text")

	job := reconcile.New(s.Records, s.Embeddings, newScriptedProvider(t), reconcile.Config{}, nil)
	_, err := job.Run(ctx, false)
	require.NoError(t, err)

	_, err = s.Records.UpdateSummary(ctx, "a", "edited text")
	require.NoError(t, err)

	res, err := job.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)

	got, err := s.Embeddings.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.SourceVersion)
}

func TestRun_NeverRegressesConcurrentNewerWrite(t *testing.T) {
	ctx := context.Background()
	s := openStores(t)
	seedOwner(t, s, "o1")
	seedRecord(t, s, "o1", "a", "old text")

	p := newScriptedProvider(t)
	var newer []float32
	// While the batch is in flight the record is edited and re-embedded.
	p.onBatch = func() {
		rec, err := s.Records.UpdateSummary(ctx, "a", "new text")
		require.NoError(t, err)
		newer, err = p.Provider.Embed(ctx, rec.Summary)
		require.NoError(t, err)
		require.NoError(t, s.Embeddings.Put(ctx, &store.Embedding{
			RecordID: "a", Vector: newer, Dimension: len(newer), SourceVersion: rec.Version,
		}))
	}

	job := reconcile.New(s.Records, s.Embeddings, p, reconcile.Config{}, nil)
	res, err := job.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Succeeded)
	assert.Empty(t, res.Failed)

	got, err := s.Embeddings.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, newer, got.Vector)
	assert.Equal(t, int64(2), got.SourceVersion)
}

func TestRun_SkipsRecordDeletedMidRun(t *testing.T) {
	ctx := context.Background()
	s := openStores(t)
	seedOwner(t, s, "o1")
	seedRecord(t, s, "o1", "a", "text a")
	seedRecord(t, s, "o1", "b", "text b")

	p := newScriptedProvider(t)
	p.onBatch = func() { require.NoError(t, s.Records.DeleteRecord(ctx, "b")) }

	job := reconcile.New(s.Records, s.Embeddings, p, reconcile.Config{}, nil)
	res, err := job.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Skipped)
}

func TestRunRequest_OwnerScopeAndDryRun(t *testing.T) {
	ctx := context.Background()
	s := openStores(t)
	seedOwner(t, s, "o1")
	seedOwner(t, s, "o2")
	seedRecord(t, s, "o1", "a", "one")
	seedRecord(t, s, "o2", "b", "two")
	seedRecord(t, s, "o2", "c", "three")

	p := newScriptedProvider(t)
	job := reconcile.New(s.Records, s.Embeddings, p, reconcile.Config{}, nil)

	dry, err := job.RunRequest(ctx, reconcile.Request{OwnerID: "o2", DryRun: true})
	require.NoError(t, err)
	assert.True(t, dry.DryRun)
	assert.Equal(t, 2, dry.Candidates)
	assert.Zero(t, dry.Succeeded)
	assert.Zero(t, p.batchCalls.Load())

	res, err := job.RunRequest(ctx, reconcile.Request{OwnerID: "o2"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Succeeded)

	ok, err := s.Embeddings.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok, "other owners are untouched")
}

type failingCandidates struct{}

func (failingCandidates) ListCandidates(context.Context, store.CandidateQuery) ([]store.SourceText, error) {
	return nil, udberr.New(udberr.CodeStoreDatabaseFailure, "database is locked")
}

func TestRun_ListFailureIsFatal(t *testing.T) {
	s := openStores(t)
	job := reconcile.New(failingCandidates{}, s.Embeddings, newScriptedProvider(t), reconcile.Config{}, nil)

	_, err := job.Run(context.Background(), false)
	require.Error(t, err)
	assert.True(t, udberr.HasCode(err, udberr.CodeStoreDatabaseFailure), "innermost code is kept")
	assert.Contains(t, err.Error(), "listing reconciliation candidates")
}

func TestRun_CancelledContextFailsRemainingItems(t *testing.T) {
	s := openStores(t)
	seedOwner(t, s, "o1")
	seedRecord(t, s, "o1", "a", "one")
	seedRecord(t, s, "o1", "b", "two")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := newScriptedProvider(t)
	p.onBatch = cancel

	job := reconcile.New(s.Records, s.Embeddings, p, reconcile.Config{BatchSize: 1}, nil)
	res, err := job.Run(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, res.Succeeded)
	assert.Equal(t, []string{"a", "b"}, res.FailedIDs())
	assert.Equal(t, 1, res.Batches, "no batch starts after cancellation")
}

func TestStart_RunsUntilCancelled(t *testing.T) {
	s := openStores(t)
	seedOwner(t, s, "o1")
	seedRecord(t, s, "o1", "a", "scheduled text")

	job := reconcile.New(s.Records, s.Embeddings, newScriptedProvider(t), reconcile.Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		ok, err := s.Embeddings.Exists(context.Background(), "a")
		return err == nil && ok
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancellation")
	}
}

func TestStart_SkipsPassesWhileProviderCoolsDown(t *testing.T) {
	s := openStores(t)
	seedOwner(t, s, "o1")
	seedRecord(t, s, "o1", "a", "scheduled text")

	p := newScriptedProvider(t)
	p.cooling.Store(true)
	job := reconcile.New(s.Records, s.Embeddings, p, reconcile.Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, 5*time.Millisecond)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, p.batchCalls.Load())
	ok, err := s.Embeddings.Exists(context.Background(), "a")
	require.NoError(t, err)
	assert.False(t, ok)

	p.cooling.Store(false)
	require.Eventually(t, func() bool {
		ok, err := s.Embeddings.Exists(context.Background(), "a")
		return err == nil && ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStart_HonoursInstrumentedCooldown(t *testing.T) {
	s := openStores(t)
	seedOwner(t, s, "o1")
	seedRecord(t, s, "o1", "a", "scheduled text")

	inner, err := hash.New(testDim)
	require.NoError(t, err)
	tracker, err := embedding.NewHealthTracker(inner.Name(), time.Hour)
	require.NoError(t, err)
	tracker.RecordFailure(udberr.New(udberr.CodeProviderUpstreamFailure, "down"))
	p := embedding.NewInstrumented(inner, nil, tracker)
	require.False(t, p.Available())

	job := reconcile.New(s.Records, s.Embeddings, p, reconcile.Config{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	job.Start(ctx, 5*time.Millisecond)

	ok, err := s.Embeddings.Exists(context.Background(), "a")
	require.NoError(t, err)
	assert.False(t, ok)
}
