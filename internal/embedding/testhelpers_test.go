// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package embedding_test

import (
	"context"
	"sync/atomic"

	"github.com/udbhav-health/udbhav/internal/embedding"
)

// fakeProvider returns constant vectors. Set err to fail every call, or block
// to wait for context cancellation.
type fakeProvider struct {
	name   string
	dim    int
	err    error
	block  bool
	calls  atomic.Int32
	closed atomic.Bool
}

var _ embedding.Provider = (*fakeProvider)(nil)

func newFakeProvider(dim int) *fakeProvider {
	return &fakeProvider{name: "fake", dim: dim}
}

func (f *fakeProvider) Name() string   { return f.name }
func (f *fakeProvider) Dimension() int { return f.dim }

func (f *fakeProvider) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}
