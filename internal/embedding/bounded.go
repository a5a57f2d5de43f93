// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package embedding

import (
	"context"
	"errors"
	"time"

	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

// Bounded applies a timeout to every call of the wrapped provider. It never
// retries.
type Bounded struct {
	inner   Provider
	timeout time.Duration
}

var _ Provider = (*Bounded)(nil)

// NewBounded wraps p. A non-positive timeout disables the bound.
func NewBounded(p Provider, timeout time.Duration) *Bounded {
	return &Bounded{inner: p, timeout: timeout}
}

func (b *Bounded) Name() string   { return b.inner.Name() }
func (b *Bounded) Dimension() int { return b.inner.Dimension() }
func (b *Bounded) Close() error   { return b.inner.Close() }

func (b *Bounded) Embed(ctx context.Context, text string) ([]float32, error) {
	cctx, cancel := b.withTimeout(ctx)
	defer cancel()

	vec, err := b.inner.Embed(cctx, text)
	if err != nil {
		return nil, b.timeoutError(ctx, cctx, OpEmbed, err)
	}
	return vec, nil
}

func (b *Bounded) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	cctx, cancel := b.withTimeout(ctx)
	defer cancel()

	vecs, err := b.inner.EmbedBatch(cctx, texts)
	if err != nil {
		return nil, b.timeoutError(ctx, cctx, OpEmbedBatch, err)
	}
	return vecs, nil
}

func (b *Bounded) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, b.timeout)
}

// timeoutError reports our own deadline as a provider timeout. Invalid input
// and other coded errors pass through.
func (b *Bounded) timeoutError(parent, cctx context.Context, op string, err error) error {
	ours := parent.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded)
	if !ours || udberr.IsInvalidInput(err) || udberr.IsTimeout(err) {
		return ClassifyError(b.inner.Name(), op, err)
	}

	fields := []udberr.Attr{
		udberr.FieldProvider(b.inner.Name()),
		udberr.Field("op", op),
		udberr.Field("timeout", b.timeout.String()),
	}
	if udberr.CodeOf(err) != "" {
		// The innermost code wins in a chain, so a coded cause is kept as a field.
		return udberr.New(udberr.CodeProviderUpstreamTimeout, "embedding call exceeded timeout",
			append(fields, udberr.Field("cause", err.Error()))...)
	}
	return udberr.Wrap(err, udberr.CodeProviderUpstreamTimeout, "embedding call exceeded timeout", fields...)
}
