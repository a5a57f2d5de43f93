// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package hash_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udbhav-health/udbhav/internal/embedding"
	"github.com/udbhav-health/udbhav/internal/embedding/hash"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

var _ embedding.Provider = (*hash.Provider)(nil)

func mustNewProvider(t *testing.T, dim int) *hash.Provider {
	t.Helper()
	p, err := hash.New(dim)
	require.NoError(t, err)
	return p
}

func l2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func TestHashProvider_DefaultDimension(t *testing.T) {
	p := mustNewProvider(t, 0)
	assert.Equal(t, hash.DefaultDimension, p.Dimension())
	assert.Equal(t, "hash", p.Name())
	assert.NoError(t, p.Close())
}

func TestHashProvider_NegativeDimension(t *testing.T) {
	_, err := hash.New(-1)
	require.Error(t, err)
	assert.True(t, udberr.HasCode(err, udberr.CodeProviderConfigInvalid))
}

func TestHashProvider_Deterministic(t *testing.T) {
	p := mustNewProvider(t, 64)
	ctx := context.Background()

	a, err := p.Embed(ctx, "Blood pressure elevated")
	require.NoError(t, err)
	b, err := p.Embed(ctx, "blood PRESSURE, elevated!")
	require.NoError(t, err)

	require.Len(t, a, 64)
	assert.Equal(t, a, b, "case and punctuation should not change the vector")
}

func TestHashProvider_UnitLength(t *testing.T) {
	p := mustNewProvider(t, 32)
	vec, err := p.Embed(context.Background(), "fracture of the left radius")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestHashProvider_SharedWordsAreCloser(t *testing.T) {
	p := mustNewProvider(t, 256)
	ctx := context.Background()

	base, err := p.Embed(ctx, "chest x-ray shows mild pneumonia")
	require.NoError(t, err)
	near, err := p.Embed(ctx, "chest x-ray pneumonia follow up")
	require.NoError(t, err)
	far, err := p.Embed(ctx, "routine dental cleaning appointment")
	require.NoError(t, err)

	assert.Less(t, l2(base, near), l2(base, far))
}

func TestHashProvider_EmptyTextRejected(t *testing.T) {
	p := mustNewProvider(t, 16)

	_, err := p.Embed(context.Background(), "   \n\t")
	require.Error(t, err)
	assert.True(t, udberr.IsInvalidInput(err))

	_, err = p.EmbedBatch(context.Background(), []string{"ok", ""})
	require.Error(t, err)
	assert.True(t, udberr.IsInvalidInput(err))
}

func TestHashProvider_PunctuationOnlyText(t *testing.T) {
	p := mustNewProvider(t, 16)
	vec, err := p.Embed(context.Background(), "???")
	require.NoError(t, err)
	assert.Len(t, vec, 16)
}

func TestHashProvider_BatchMatchesSingle(t *testing.T) {
	p := mustNewProvider(t, 48)
	ctx := context.Background()
	texts := []string{"alpha beta", "gamma", "delta epsilon zeta"}

	batch, err := p.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))

	for i, text := range texts {
		single, err := p.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i], "batch output must keep input order")
	}
}

func TestHashProvider_CancelledContext(t *testing.T) {
	p := mustNewProvider(t, 16)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Embed(ctx, "text")
	require.Error(t, err)
	assert.True(t, udberr.IsProviderFailure(err))
}

func TestHashProvider_RegisteredByName(t *testing.T) {
	assert.Contains(t, embedding.Providers(), hash.Name)

	p, err := embedding.New(context.Background(), embedding.Config{Provider: hash.Name, Dimensions: 8}, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, p.Dimension())
	assert.Equal(t, "hash", p.Name())
}
