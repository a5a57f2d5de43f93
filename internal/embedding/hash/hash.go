// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

// Package hash provides a deterministic offline embedding provider based on
// feature hashing. Texts that share words land close together, which is
// enough for development, tests and air-gapped deployments.
package hash

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/udbhav-health/udbhav/internal/embedding"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

const (
	Name             = "hash"
	DefaultDimension = 256
)

func init() {
	embedding.Register(Name, func(_ context.Context, cfg embedding.Config) (embedding.Provider, error) {
		return New(cfg.Dimensions)
	})
}

// Provider hashes lowercase word tokens into a signed, L2-normalized vector.
type Provider struct {
	dimension int
}

var _ embedding.Provider = (*Provider)(nil)

// New creates a hash provider. Zero selects DefaultDimension.
func New(dimension int) (*Provider, error) {
	if dimension == 0 {
		dimension = DefaultDimension
	}
	if dimension < 0 {
		return nil, udberr.Errorf(udberr.CodeProviderConfigInvalid, "hash: dimension must be positive, got %d", dimension)
	}
	return &Provider{dimension: dimension}, nil
}

func (p *Provider) Name() string   { return Name }
func (p *Provider) Dimension() int { return p.dimension }
func (p *Provider) Close() error   { return nil }

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := embedding.ValidateText(Name, text); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, embedding.ClassifyError(Name, embedding.OpEmbed, err)
	}
	return p.vector(text), nil
}

func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := embedding.ValidateTexts(Name, texts); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, embedding.ClassifyError(Name, embedding.OpEmbedBatch, err)
		}
		out[i] = p.vector(text)
	}
	return out, nil
}

func (p *Provider) vector(text string) []float32 {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(tokens) == 0 {
		tokens = []string{strings.TrimSpace(text)}
	}

	vec := make([]float32, p.dimension)
	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(p.dimension))
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// Every token cancelled out; keep the vector well-defined.
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
