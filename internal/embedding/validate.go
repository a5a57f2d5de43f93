// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package embedding

import (
	"context"
	"errors"
	"strings"

	"github.com/udbhav-health/udbhav/internal/store"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

// ValidateText rejects text that is empty after trimming whitespace.
func ValidateText(provider, text string) error {
	if strings.TrimSpace(text) == "" {
		return udberr.New(udberr.CodeEmbeddingGenerateInvalidInput, "text must not be empty",
			udberr.FieldProvider(provider))
	}
	return nil
}

// ValidateTexts applies ValidateText to every element of a batch.
func ValidateTexts(provider string, texts []string) error {
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return udberr.New(udberr.CodeEmbeddingGenerateInvalidInput, "batch contains empty text",
				udberr.FieldProvider(provider), udberr.Field("index", i))
		}
	}
	return nil
}

// CheckVector verifies that a provider returned a finite vector of the
// expected length.
func CheckVector(provider string, dimension int, vec []float32) error {
	if len(vec) != dimension {
		return udberr.New(udberr.CodeProviderResponseMalformed, "provider returned a vector of unexpected length",
			udberr.FieldProvider(provider), udberr.FieldDimension(dimension, len(vec)))
	}
	if i := store.NonFinite(vec); i >= 0 {
		return udberr.New(udberr.CodeProviderResponseMalformed, "provider returned a non-finite vector component",
			udberr.FieldProvider(provider), udberr.Field("component", i))
	}
	return nil
}

// CheckBatch verifies count and length of a batch response.
func CheckBatch(provider string, dimension, want int, vecs [][]float32) error {
	if len(vecs) != want {
		return udberr.New(udberr.CodeProviderResponseMalformed, "provider returned the wrong number of vectors",
			udberr.FieldProvider(provider), udberr.Field("want", want), udberr.Field("got", len(vecs)))
	}
	for i, vec := range vecs {
		if err := CheckVector(provider, dimension, vec); err != nil {
			return udberr.With(err, udberr.Field("index", i))
		}
	}
	return nil
}

// ClassifyError converts an SDK or transport error into a provider error.
// Errors that already carry a code are returned unchanged.
func ClassifyError(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	if udberr.CodeOf(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return udberr.Wrap(err, udberr.CodeProviderUpstreamTimeout, provider+": "+op+" timed out",
			udberr.FieldProvider(provider))
	}
	return udberr.Wrap(err, udberr.CodeProviderUpstreamFailure, provider+": "+op+" failed",
		udberr.FieldProvider(provider))
}

// ToFloat32 narrows SDK float64 vectors.
func ToFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
