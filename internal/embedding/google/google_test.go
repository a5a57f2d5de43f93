// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package google_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udbhav-health/udbhav/internal/embedding"
	"github.com/udbhav-health/udbhav/internal/embedding/google"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

var _ embedding.Provider = (*google.Provider)(nil)

// newGeminiServer answers embedContent and batchEmbedContents with one vector
// per request item, filled with the item's 1-based position.
func newGeminiServer(t *testing.T, dim int, status int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"code":500,"message":"backend unavailable","status":"INTERNAL"}}`))
			return
		}
		if !strings.Contains(strings.ToLower(r.URL.Path), "embedcontent") {
			http.NotFound(w, r)
			return
		}

		var body struct {
			Requests []json.RawMessage `json:"requests"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		n := len(body.Requests)
		if n == 0 {
			n = 1
		}

		embeddings := make([]map[string][]float32, n)
		for i := range embeddings {
			vec := make([]float32, dim)
			for j := range vec {
				vec[j] = float32(i + 1)
			}
			embeddings[i] = map[string][]float32{"values": vec}
		}
		if strings.HasSuffix(r.URL.Path, ":embedContent") {
			_ = json.NewEncoder(w).Encode(map[string]any{"embedding": embeddings[0]})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogleProvider_MissingAPIKey(t *testing.T) {
	_, err := google.New(context.Background(), google.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
	assert.True(t, udberr.HasCode(err, udberr.CodeProviderConfigInvalid))
}

func TestGoogleProvider_DefaultModelDimension(t *testing.T) {
	p, err := google.New(context.Background(), google.Config{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())
	assert.Equal(t, 768, p.Dimension())
	assert.NoError(t, p.Close())
}

func TestGoogleProvider_UnknownModelNeedsDimensions(t *testing.T) {
	_, err := google.New(context.Background(), google.Config{APIKey: "k", Model: "experimental-embedder"})
	require.Error(t, err)
	assert.True(t, udberr.HasCode(err, udberr.CodeProviderConfigInvalid))
}

func TestGoogleProvider_EmbedBatch(t *testing.T) {
	var calls atomic.Int32
	srv := newGeminiServer(t, 768, http.StatusOK, &calls)
	p, err := google.New(context.Background(), google.Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	vecs, err := p.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Len(t, vecs[0], 768)
	assert.Equal(t, float32(1), vecs[0][0])
	assert.Equal(t, float32(2), vecs[1][0])
	assert.Equal(t, int32(1), calls.Load())
}

func TestGoogleProvider_EmptyTextRejected(t *testing.T) {
	var calls atomic.Int32
	srv := newGeminiServer(t, 768, http.StatusOK, &calls)
	p, err := google.New(context.Background(), google.Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), "")
	require.Error(t, err)
	assert.True(t, udberr.IsInvalidInput(err))
	assert.Zero(t, calls.Load())
}

func TestGoogleProvider_UpstreamError(t *testing.T) {
	var calls atomic.Int32
	srv := newGeminiServer(t, 768, http.StatusInternalServerError, &calls)
	p, err := google.New(context.Background(), google.Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, udberr.IsProviderFailure(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGoogleProvider_DimensionMismatchIsMalformed(t *testing.T) {
	var calls atomic.Int32
	srv := newGeminiServer(t, 10, http.StatusOK, &calls)
	p, err := google.New(context.Background(), google.Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, udberr.HasCode(err, udberr.CodeProviderResponseMalformed))
}
