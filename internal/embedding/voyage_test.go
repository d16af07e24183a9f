package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoyageClient_EmbedBatch(t *testing.T) {
	var gotAuth string
	var gotReq voyageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		// Reply out of order to exercise index placement.
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0,1,0],"index":1},{"embedding":[1,0,0],"index":0}],"usage":{"total_tokens":4}}`))
	}))
	defer srv.Close()

	client, err := newVoyageClient(srv.URL, "vk-test", "voyage-3-lite", 3)
	require.NoError(t, err)

	vecs, err := client.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer vk-test", gotAuth)
	assert.Equal(t, "voyage-3-lite", gotReq.Model)
	assert.Equal(t, "document", gotReq.InputType)
	assert.Equal(t, [][]float32{{1, 0, 0}, {0, 1, 0}}, vecs)
}

func TestVoyageClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := newVoyageClient(srv.URL, "bad", "", 0)
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestVoyageClient_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1,0],"index":0}]}`))
	}))
	defer srv.Close()

	client, err := newVoyageClient(srv.URL, "vk", "", 3)
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
}

type fakeLangchainEmbedder struct {
	width int
}

func (f fakeLangchainEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.width)
	}
	return out, nil
}

func (f fakeLangchainEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, f.width), nil
}

func TestOpenAIClient_ValidatesDimension(t *testing.T) {
	ok := newOpenAIClient(fakeLangchainEmbedder{width: 4}, "text-embedding-3-small", 4)
	vecs, err := ok.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)

	bad := newOpenAIClient(fakeLangchainEmbedder{width: 3}, "text-embedding-3-small", 4)
	_, err = bad.Embed(context.Background(), "a")
	require.Error(t, err)
	_, err = bad.EmbedBatch(context.Background(), []string{"a"})
	require.Error(t, err)
}
