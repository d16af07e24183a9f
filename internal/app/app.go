// Package app wires the configured components into one container. It is
// built once at startup and passed to the HTTP, MCP and CLI surfaces.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/docqa/internal/agent"
	"github.com/raphaelgruber/docqa/internal/config"
	"github.com/raphaelgruber/docqa/internal/embedding"
	"github.com/raphaelgruber/docqa/internal/evaluator"
	"github.com/raphaelgruber/docqa/internal/extract"
	"github.com/raphaelgruber/docqa/internal/index"
	"github.com/raphaelgruber/docqa/internal/llm"
	"github.com/raphaelgruber/docqa/internal/metrics"
	"github.com/raphaelgruber/docqa/internal/parser"
	"github.com/raphaelgruber/docqa/internal/service"
	"github.com/raphaelgruber/docqa/internal/tools"
)

// App holds every long-lived dependency.
type App struct {
	Config    config.Config
	Metrics   *metrics.Collector
	Index     index.Store
	Retrieval *tools.Retrieval
	Knowledge *tools.Knowledge
	Agent     *agent.Agent
	Evaluator *evaluator.Evaluator
	Ingest    *service.IngestService
	Query     *service.QueryService
	Logger    *slog.Logger
}

// Components are the externally backed pieces App is assembled from.
// Transcriber may be nil.
type Components struct {
	Index       index.Store
	Generator   llm.Generator
	Evaluator   llm.Generator
	PDF         extract.TextExtractor
	Transcriber extract.Transcriber
	Metrics     *metrics.Collector
}

// New builds the container from cfg, opening the embedder, index and models.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mc := metrics.NewCollector()

	embedder, err := embedding.New(embedding.Config{
		Provider:          embedding.ProviderType(cfg.Embedding.Provider),
		Model:             cfg.Embedding.Model,
		ExpectedDimension: cfg.Embedding.Dimension,
		OpenAIAPIKey:      cfg.Embedding.OpenAIAPIKey,
		VoyageAPIKey:      cfg.Embedding.VoyageAPIKey,
		OllamaHost:        cfg.Embedding.OllamaHost,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	embedder = embedding.Instrument(embedder, mc, logger)

	store, err := index.New(ctx, cfg.Index, embedder, mc, logger)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	gen, err := llm.NewModel(ctx, cfg.LLM, llm.Options{
		Temperature: cfg.LLM.Temperature,
		Collector:   mc,
		Logger:      logger,
	})
	if err != nil {
		store.Close(ctx)
		return nil, fmt.Errorf("create model: %w", err)
	}

	evalGen, err := llm.NewModel(ctx, cfg.LLM, llm.Options{
		Model:       cfg.LLM.EvalModel,
		Temperature: cfg.LLM.EvalTemperature,
		Collector:   mc,
		Logger:      logger,
	})
	if err != nil {
		store.Close(ctx)
		return nil, fmt.Errorf("create evaluation model: %w", err)
	}

	var transcriber extract.Transcriber
	if cfg.Transcription.APIKey != "" {
		transcriber, err = extract.NewWhisperTranscriber(cfg.Transcription.BaseURL, cfg.Transcription.APIKey, cfg.Transcription.Model)
		if err != nil {
			store.Close(ctx)
			return nil, fmt.Errorf("create transcriber: %w", err)
		}
	} else {
		logger.Warn("no transcription API key configured, audio uploads disabled")
	}

	logger.Info("components ready",
		"llm", cfg.LLM.Provider, "model", gen.Model(),
		"embedding", cfg.Embedding.Provider, "index", cfg.Index.Provider)

	return Assemble(cfg, Components{
		Index:       store,
		Generator:   gen,
		Evaluator:   evalGen,
		PDF:         extract.PDFExtractor{},
		Transcriber: transcriber,
		Metrics:     mc,
	}, logger), nil
}

// Assemble wires the pipeline around already-built components.
func Assemble(cfg config.Config, c Components, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	if c.Evaluator == nil {
		c.Evaluator = c.Generator
	}
	timeout := cfg.Agent.StepTimeout

	retrieval := tools.NewRetrieval(c.Index, cfg.Agent.TopK, timeout, logger)
	knowledge := tools.NewKnowledge(c.Generator, timeout, logger)
	ag := agent.New(retrieval, knowledge, c.Generator, agent.Options{
		StepTimeout: timeout,
		Collector:   c.Metrics,
		Logger:      logger,
	})
	ev := evaluator.New(c.Evaluator, timeout, c.Metrics, logger)

	policy := parser.ChunkPolicy{MaxSize: cfg.Chunking.MaxSize, Overlap: cfg.Chunking.Overlap}

	return &App{
		Config:    cfg,
		Metrics:   c.Metrics,
		Index:     c.Index,
		Retrieval: retrieval,
		Knowledge: knowledge,
		Agent:     ag,
		Evaluator: ev,
		Ingest:    service.NewIngestService(c.Index, c.PDF, c.Transcriber, policy, cfg.Ingest.StepTimeout, logger),
		Query:     service.NewQueryService(ag, ev, logger),
		Logger:    logger,
	}
}

// ToolDependencies returns the MCP tool dependencies.
func (a *App) ToolDependencies() *tools.Dependencies {
	return &tools.Dependencies{
		Retrieval: a.Retrieval,
		Knowledge: a.Knowledge,
		Logger:    a.Logger,
	}
}

// Close releases the index.
func (a *App) Close(ctx context.Context) error {
	if a.Index == nil {
		return nil
	}
	if err := a.Index.Close(ctx); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	return nil
}
