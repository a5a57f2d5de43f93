// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package embedding

import (
	"context"

	"golang.org/x/time/rate"

	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

// RateLimited throttles calls to the wrapped provider with a token bucket.
// A batch costs one token.
type RateLimited struct {
	inner   Provider
	limiter *rate.Limiter
}

var _ Provider = (*RateLimited)(nil)

// NewRateLimited allows rps calls per second with the given burst.
func NewRateLimited(p Provider, rps float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{inner: p, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimited) Name() string   { return r.inner.Name() }
func (r *RateLimited) Dimension() int { return r.inner.Dimension() }
func (r *RateLimited) Close() error   { return r.inner.Close() }

func (r *RateLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, text)
}

func (r *RateLimited) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.EmbedBatch(ctx, texts)
}

func (r *RateLimited) wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return udberr.Wrap(err, udberr.CodeProviderUpstreamTimeout, "waiting for rate limiter",
			udberr.FieldProvider(r.inner.Name()))
	}
	return nil
}
