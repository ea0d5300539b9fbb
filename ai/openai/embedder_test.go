package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/poiesic/libindex/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// embeddingServer fakes the OpenAI /v1/embeddings endpoint, returning
// vectors of length dim whose first value is the input index.
func embeddingServer(t *testing.T, dim int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model string          `json:"model"`
			Input json.RawMessage `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var inputs []string
		if err := json.Unmarshal(req.Input, &inputs); err != nil {
			var single string
			if err := json.Unmarshal(req.Input, &single); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			inputs = []string{single}
		}

		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(inputs))
		for i := range inputs {
			vec := make([]float32, dim)
			vec[0] = float32(i)
			data[i] = item{Object: "embedding", Embedding: vec, Index: i}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProvider_EmbedTexts(t *testing.T) {
	var calls atomic.Int32
	srv := embeddingServer(t, 4, &calls)

	provider, err := NewProvider(ai.NewConfig(
		ai.WithEmbeddingHost(srv.URL),
		ai.WithEmbeddingModel("test-model"),
		ai.WithDimension(4),
	))
	require.NoError(t, err)
	defer provider.Close()

	vecs, err := provider.Embedder().EmbedTexts(context.Background(), []string{"first", "second", "third"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.Len(t, v, 4)
		assert.Equal(t, float32(i), v[0])
	}
	assert.Positive(t, calls.Load())
}

func TestProvider_DimensionMismatch(t *testing.T) {
	var calls atomic.Int32
	srv := embeddingServer(t, 3, &calls)

	provider, err := NewProvider(ai.NewConfig(
		ai.WithEmbeddingHost(srv.URL),
		ai.WithDimension(4),
	))
	require.NoError(t, err)

	_, err = provider.Embedder().EmbedTexts(context.Background(), []string{"x"})
	assert.True(t, ai.IsDimensionMismatch(err))
}

func TestProvider_ServiceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	provider, err := NewProvider(ai.NewConfig(ai.WithEmbeddingHost(srv.URL), ai.WithDimension(4)))
	require.NoError(t, err)

	_, err = provider.Embedder().EmbedTexts(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.False(t, ai.IsDimensionMismatch(err))
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	_, err := NewProvider(&ai.Config{EmbeddingHost: "http://h", EmbeddingModel: "m"})
	assert.Error(t, err)
}
