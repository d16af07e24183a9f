// Package embedding_test contains tests for embedding clients.
package embedding_test

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/raphaelgruber/docqa/internal/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOllamaClient(t *testing.T) {
	client, err := embedding.NewOllamaClient("", "", 0)
	require.NoError(t, err, "should create client with default model")
	assert.Equal(t, embedding.DefaultOllamaModel, client.Model())
	assert.Equal(t, embedding.DefaultOllamaDimension, client.Dimension())
}

func TestNewOllamaClientCustomModel(t *testing.T) {
	client, err := embedding.NewOllamaClient("http://localhost:11434", "nomic-embed-text", 768)
	require.NoError(t, err, "should create client with custom model")
	assert.Equal(t, "nomic-embed-text", client.Model())
	assert.Equal(t, 768, client.Dimension())
}

func TestEmbedBatchEmpty(t *testing.T) {
	client, err := embedding.NewOllamaClient("", "", 0)
	require.NoError(t, err, "should create client")

	embeddings, err := client.EmbedBatch(context.Background(), []string{})
	require.NoError(t, err, "should handle empty batch")
	assert.Len(t, embeddings, 0, "should return empty slice")
}

// fakeOllama answers /api/embed with vectors of the given width.
func fakeOllama(t *testing.T, width int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := make([][]float32, len(req.Input))
		for i := range out {
			out[i] = make([]float32, width)
			out[i][i%width] = 1
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "embeddings": out})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaEmbedBatch(t *testing.T) {
	srv := fakeOllama(t, 8)
	client, err := embedding.NewOllamaClient(srv.URL, "tiny", 8)
	require.NoError(t, err)

	vecs, err := client.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.Len(t, v, 8, "embedding %d", i)
	}

	one, err := client.Embed(context.Background(), "single")
	require.NoError(t, err)
	assert.Len(t, one, 8)
}

func TestOllamaDimensionMismatch(t *testing.T) {
	srv := fakeOllama(t, 4)
	client, err := embedding.NewOllamaClient(srv.URL, "tiny", 8)
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
}

func TestNewEmbedderFactory(t *testing.T) {
	tests := []struct {
		name      string
		cfg       embedding.Config
		wantModel string
		wantErr   bool
	}{
		{"ollama", embedding.Config{Provider: embedding.ProviderOllama}, embedding.DefaultOllamaModel, false},
		{"hash", embedding.Config{Provider: embedding.ProviderHash, ExpectedDimension: 64}, "hash", false},
		{"voyage", embedding.Config{Provider: embedding.ProviderVoyage, VoyageAPIKey: "vk"}, embedding.DefaultVoyageModel, false},
		{"openai", embedding.Config{Provider: embedding.ProviderOpenAI, OpenAIAPIKey: "sk"}, embedding.DefaultOpenAIModel, false},
		{"openai without key", embedding.Config{Provider: embedding.ProviderOpenAI}, "", true},
		{"voyage without key", embedding.Config{Provider: embedding.ProviderVoyage}, "", true},
		{"unknown", embedding.Config{Provider: "cohere"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := embedding.New(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantModel, e.Model())
		})
	}
}

// cosineSimilarity calculates cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)))
}
