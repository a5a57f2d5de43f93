// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

// Package embedding turns record text into fixed-length vectors.
//
// Concrete providers live in subpackages (google, openai, hash) and register
// themselves by name from init. Build composes the configured provider with
// rate limiting, a per-call timeout and instrumentation.
package embedding

import "context"

// Provider generates embeddings for text.
//
// Every vector returned has exactly Dimension() entries. EmbedBatch returns
// one vector per input, in input order.
type Provider interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Close() error
}

// Operation labels used in metrics and logs.
const (
	OpEmbed      = "embed"
	OpEmbedBatch = "embed_batch"
)
