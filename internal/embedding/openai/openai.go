// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package openai

import (
	"context"
	"sort"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/udbhav-health/udbhav/internal/embedding"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

const (
	Name         = "openai"
	DefaultModel = "text-embedding-3-small"
)

// Native output sizes of the embedding models we know about.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

func init() {
	embedding.Register(Name, func(_ context.Context, cfg embedding.Config) (embedding.Provider, error) {
		return New(Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	})
}

// Config holds OpenAI embedding configuration.
type Config struct {
	APIKey     string
	BaseURL    string // optional, for compatible gateways and mock servers
	Model      string
	Dimensions int // optional; requests shortened vectors from v3 models
	// MaxRetries enables SDK-level retries. Nil means a single attempt.
	MaxRetries *int
}

// Provider implements embedding.Provider with the OpenAI Embeddings API.
type Provider struct {
	client    openaisdk.Client
	model     string
	dimension int
	shorten   bool
}

var _ embedding.Provider = (*Provider)(nil)

// New creates an OpenAI provider. Returns an error if the API key is missing
// or the dimension cannot be determined.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, udberr.New(udberr.CodeProviderConfigInvalid, "openai: missing api_key in config", udberr.FieldProvider(Name))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions < 0 {
		return nil, udberr.Errorf(udberr.CodeProviderConfigInvalid, "openai: dimensions must be positive, got %d", cfg.Dimensions)
	}

	dimension, shorten := cfg.Dimensions, cfg.Dimensions > 0
	if native, ok := modelDimensions[cfg.Model]; ok && (dimension == 0 || dimension == native) {
		dimension, shorten = native, false
	}
	if dimension == 0 {
		return nil, udberr.New(udberr.CodeProviderConfigInvalid, "openai: embedding.dimensions is required for unknown models",
			udberr.FieldProvider(Name), udberr.Field("model", cfg.Model))
	}

	retries := 0
	if cfg.MaxRetries != nil {
		if *cfg.MaxRetries < 0 {
			return nil, udberr.Errorf(udberr.CodeProviderConfigInvalid, "openai: max retries must not be negative, got %d", *cfg.MaxRetries)
		}
		retries = *cfg.MaxRetries
	}

	// The SDK retries twice by default; failures must surface to the caller.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(retries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		client:    openaisdk.NewClient(opts...),
		model:     cfg.Model,
		dimension: dimension,
		shorten:   shorten,
	}, nil
}

func (p *Provider) Name() string   { return Name }
func (p *Provider) Dimension() int { return p.dimension }
func (p *Provider) Close() error   { return nil }

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := embedding.ValidateText(Name, text); err != nil {
		return nil, err
	}
	vecs, err := p.request(ctx, embedding.OpEmbed, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := embedding.ValidateTexts(Name, texts); err != nil {
		return nil, err
	}
	return p.request(ctx, embedding.OpEmbedBatch, texts)
}

func (p *Provider) request(ctx context.Context, op string, texts []string) ([][]float32, error) {
	params := openaisdk.EmbeddingNewParams{
		Input:          openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:          openaisdk.EmbeddingModel(p.model),
		EncodingFormat: openaisdk.EmbeddingNewParamsEncodingFormatFloat,
	}
	if p.shorten {
		params.Dimensions = openaisdk.Int(int64(p.dimension))
	}

	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, embedding.ClassifyError(Name, op, err)
	}

	// The API documents data in input order but carries an explicit index.
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vecs := make([][]float32, len(data))
	for i, d := range data {
		vecs[i] = embedding.ToFloat32(d.Embedding)
	}
	if err := embedding.CheckBatch(Name, p.dimension, len(texts), vecs); err != nil {
		return nil, err
	}
	return vecs, nil
}
