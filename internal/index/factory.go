package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/docqa/internal/config"
	"github.com/raphaelgruber/docqa/internal/db"
	"github.com/raphaelgruber/docqa/internal/embedding"
	"github.com/raphaelgruber/docqa/internal/metrics"
	"github.com/raphaelgruber/docqa/internal/models"
)

// New opens the backend selected by cfg.Provider and wraps it with timing
// and logging.
func New(ctx context.Context, cfg config.IndexConfig, embedder embedding.Embedder, collector *metrics.Collector, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		store Store
		err   error
	)
	switch cfg.Provider {
	case config.IndexChromem, "":
		store, err = NewChromemStore(ChromemConfig{
			Collection: cfg.Collection,
			Path:       cfg.Path,
			Compress:   cfg.Compress,
		}, embedder, logger)

	case config.IndexQdrant:
		store, err = NewQdrantStore(ctx, QdrantConfig{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			APIKey:     cfg.QdrantAPIKey,
			UseTLS:     cfg.QdrantTLS,
			Collection: cfg.Collection,
		}, embedder, logger)

	case config.IndexSurrealDB:
		store, err = NewSurrealStore(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, embedder, logger)

	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return Instrument(store, collector, logger), nil
}

// instrumented records timings for the wrapped Store.
type instrumented struct {
	Store
	collector *metrics.Collector
	logger    *slog.Logger
}

// Instrument wraps s so Add and Search are timed into collector.
func Instrument(s Store, collector *metrics.Collector, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &instrumented{Store: s, collector: collector, logger: logger}
}

func (i *instrumented) Add(ctx context.Context, passages []models.Passage) error {
	start := time.Now()
	err := i.Store.Add(ctx, passages)
	duration := time.Since(start)
	i.collector.RecordTiming(metrics.OpIndexAdd, duration)

	if err != nil {
		i.logger.Warn("index add failed", "passages", len(passages), "duration_ms", duration.Milliseconds(), "error", err)
		return err
	}
	i.logger.Info("index add", "passages", len(passages), "duration_ms", duration.Milliseconds())
	return nil
}

func (i *instrumented) Search(ctx context.Context, query string, k int) (Result, error) {
	start := time.Now()
	res, err := i.Store.Search(ctx, query, k)
	duration := time.Since(start)
	i.collector.RecordTiming(metrics.OpIndexSearch, duration)

	if err != nil {
		i.logger.Warn("index search failed", "k", k, "duration_ms", duration.Milliseconds(), "error", err)
		return res, err
	}
	i.logger.Debug("index search", "k", k, "matches", len(res.Matches), "duration_ms", duration.Milliseconds())
	return res, nil
}
