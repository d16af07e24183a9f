package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	// DefaultOpenAIModel is the embedding model the document collection was built with.
	DefaultOpenAIModel = "text-embedding-3-large"

	// DefaultOpenAIDimension is the native dimension of text-embedding-3-large.
	DefaultOpenAIDimension = 3072
)

// OpenAIClient implements Embedder with langchaingo's OpenAI embedder.
type OpenAIClient struct {
	embedder  embeddings.Embedder
	model     string
	dimension int
}

var _ Embedder = (*OpenAIClient)(nil)

// NewOpenAIClient creates an OpenAI embedding client.
func NewOpenAIClient(apiKey, model string, expectedDimension int) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key required")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if expectedDimension == 0 {
		expectedDimension = DefaultOpenAIDimension
	}

	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create openai embedder: %w", err)
	}

	return newOpenAIClient(embedder, model, expectedDimension), nil
}

func newOpenAIClient(e embeddings.Embedder, model string, dimension int) *OpenAIClient {
	return &OpenAIClient{embedder: e, model: model, dimension: dimension}
}

// Model returns the embedding model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Dimension returns the expected embedding dimension.
func (c *OpenAIClient) Dimension() int {
	return c.dimension
}

// Embed generates an embedding vector for text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vec) != c.dimension {
		return nil, fmt.Errorf("dimension mismatch: got %d, want %d", len(vec), c.dimension)
	}
	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if err := checkDimensions(vectors, len(texts), c.dimension); err != nil {
		return nil, err
	}
	return vectors, nil
}
