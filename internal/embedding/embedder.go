// Package embedding provides text embedding generation with multiple backend support.
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/docqa/internal/metrics"
)

// Embedder defines the interface for text embedding providers.
type Embedder interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the name of the embedding model being used.
	Model() string

	// Dimension returns the embedding vector dimension.
	// Must match the vector size configured on the index backend.
	Dimension() int
}

// ProviderType identifies the embedding provider.
type ProviderType string

const (
	// ProviderOllama uses a local Ollama server.
	ProviderOllama ProviderType = "ollama"

	// ProviderOpenAI uses the OpenAI embeddings API through langchaingo.
	ProviderOpenAI ProviderType = "openai"

	// ProviderVoyage uses the Voyage AI embeddings API.
	ProviderVoyage ProviderType = "voyage"

	// ProviderHash uses local feature hashing; no network access.
	ProviderHash ProviderType = "hash"
)

// Config holds configuration for creating an Embedder.
type Config struct {
	Provider ProviderType

	// Model is the embedding model name (provider-specific).
	Model string

	// ExpectedDimension is the required output dimension.
	// Set to 0 to use provider's default.
	ExpectedDimension int

	OpenAIAPIKey string
	VoyageAPIKey string

	// OllamaHost overrides OLLAMA_HOST when set.
	OllamaHost string
}

// New creates an Embedder based on the provided configuration.
func New(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case ProviderOllama:
		return NewOllamaClient(cfg.OllamaHost, cfg.Model, cfg.ExpectedDimension)

	case ProviderOpenAI, "":
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.Model, cfg.ExpectedDimension)

	case ProviderVoyage:
		return NewVoyageClient(cfg.VoyageAPIKey, cfg.Model, cfg.ExpectedDimension)

	case ProviderHash:
		return NewHashEmbedder(cfg.ExpectedDimension), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// instrumented records timing for every call of the wrapped Embedder.
type instrumented struct {
	Embedder
	collector *metrics.Collector
	logger    *slog.Logger
}

// Instrument wraps e so every call is timed into collector and logged at debug.
func Instrument(e Embedder, collector *metrics.Collector, logger *slog.Logger) Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &instrumented{Embedder: e, collector: collector, logger: logger}
}

func (i *instrumented) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := i.Embedder.Embed(ctx, text)
	duration := time.Since(start)
	i.collector.RecordTiming(metrics.OpEmbedding, duration)

	if err != nil {
		i.logger.Warn("embedding failed", "model", i.Model(), "text_len", len(text), "duration_ms", duration.Milliseconds(), "error", err)
		return nil, err
	}
	i.logger.Debug("embedding complete", "model", i.Model(), "text_len", len(text), "duration_ms", duration.Milliseconds())
	return vec, nil
}

func (i *instrumented) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := i.Embedder.EmbedBatch(ctx, texts)
	duration := time.Since(start)
	i.collector.RecordTiming(metrics.OpEmbedding, duration)

	if err != nil {
		i.logger.Warn("batch embedding failed", "model", i.Model(), "count", len(texts), "duration_ms", duration.Milliseconds(), "error", err)
		return nil, err
	}
	i.logger.Debug("batch embedding complete", "model", i.Model(), "count", len(texts), "duration_ms", duration.Milliseconds())
	return vecs, nil
}

// checkDimensions verifies count and width of a batch result.
func checkDimensions(vectors [][]float32, want, dimension int) error {
	if len(vectors) != want {
		return fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), want)
	}
	for i, v := range vectors {
		if len(v) != dimension {
			return fmt.Errorf("embedding %d dimension mismatch: got %d, want %d", i, len(v), dimension)
		}
	}
	return nil
}
