// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

// Package google embeds text with the Gemini API through google.golang.org/genai.
package google

import (
	"context"

	"google.golang.org/genai"

	"github.com/udbhav-health/udbhav/internal/embedding"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

const (
	Name         = "google"
	DefaultModel = "text-embedding-004"
)

var modelDimensions = map[string]int{
	"text-embedding-004":   768,
	"gemini-embedding-001": 3072,
}

func init() {
	embedding.Register(Name, func(ctx context.Context, cfg embedding.Config) (embedding.Provider, error) {
		return New(ctx, Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	})
}

// Config holds Google provider configuration.
type Config struct {
	APIKey     string
	BaseURL    string // optional, useful for testing against a mock server
	Model      string
	Dimensions int
}

// Provider implements embedding.Provider using Gemini embedding models.
type Provider struct {
	client    *genai.Client
	model     string
	dimension int
	shorten   bool
}

var _ embedding.Provider = (*Provider)(nil)

// New creates a Google provider. Returns an error if the API key is missing.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, udberr.New(udberr.CodeProviderConfigInvalid, "google: missing api_key in config", udberr.FieldProvider(Name))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions < 0 {
		return nil, udberr.Errorf(udberr.CodeProviderConfigInvalid, "google: dimensions must be positive, got %d", cfg.Dimensions)
	}

	dimension, shorten := cfg.Dimensions, cfg.Dimensions > 0
	if native, ok := modelDimensions[cfg.Model]; ok && (dimension == 0 || dimension == native) {
		dimension, shorten = native, false
	}
	if dimension == 0 {
		return nil, udberr.New(udberr.CodeProviderConfigInvalid, "google: embedding.dimensions is required for unknown models",
			udberr.FieldProvider(Name), udberr.Field("model", cfg.Model))
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, udberr.Wrapf(err, udberr.CodeProviderConfigInvalid, "google: creating client")
	}

	return &Provider{
		client:    client,
		model:     cfg.Model,
		dimension: dimension,
		shorten:   shorten,
	}, nil
}

func (p *Provider) Name() string   { return Name }
func (p *Provider) Dimension() int { return p.dimension }

// Close is a no-op for the genai client.
func (p *Provider) Close() error { return nil }

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
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	var config *genai.EmbedContentConfig
	if p.shorten {
		dims := int32(p.dimension)
		config = &genai.EmbedContentConfig{OutputDimensionality: &dims}
	}

	resp, err := p.client.Models.EmbedContent(ctx, p.model, contents, config)
	if err != nil {
		return nil, embedding.ClassifyError(Name, op, err)
	}
	if resp == nil {
		return nil, udberr.New(udberr.CodeProviderResponseMalformed, "google: empty embedding response", udberr.FieldProvider(Name))
	}

	vecs := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e != nil {
			vecs[i] = e.Values
		}
	}
	if err := embedding.CheckBatch(Name, p.dimension, len(texts), vecs); err != nil {
		return nil, err
	}
	return vecs, nil
}
