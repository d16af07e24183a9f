package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"github.com/raphaelgruber/docqa/internal/embedding"
	"github.com/raphaelgruber/docqa/internal/models"
)

// ChromemStore is an embedded index backed by chromem-go. With an empty
// path it lives in memory for the lifetime of the process; otherwise it is
// persisted as gob files under path.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embedding.Embedder
	logger     *slog.Logger
	seq        sequencer
}

var _ Store = (*ChromemStore)(nil)

// ChromemConfig configures NewChromemStore.
type ChromemConfig struct {
	Collection string
	Path       string
	Compress   bool
}

// NewChromemStore opens (or creates) the collection.
func NewChromemStore(cfg ChromemConfig, embedder embedding.Embedder, logger *slog.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder required", ErrInvalidConfig)
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("%w: collection name required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(cfg.Path, 0o700); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("open persistent index %s: %w", cfg.Path, err)
		}
	}

	embed := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}
	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", cfg.Collection, err)
	}

	s := &ChromemStore{
		db:         db,
		collection: collection,
		embedder:   embedder,
		logger:     logger,
	}
	// Passages are never deleted, so the count is the next free seq.
	s.seq.next = uint64(collection.Count())

	logger.Info("chromem index ready", "collection", cfg.Collection, "persistent", cfg.Path != "", "passages", collection.Count())
	return s, nil
}

// Add embeds passages first, then writes them in order under the write lock.
// Cancellation is honoured up to the first write; after that the batch is
// written in full or, on error, removed again.
func (s *ChromemStore) Add(ctx context.Context, passages []models.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	vectors, err := s.embedder.EmbedBatch(ctx, contents(passages))
	if err != nil {
		return fmt.Errorf("embed passages: %w", err)
	}

	s.seq.Lock()
	defer s.seq.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}

	first := s.seq.reserve(len(passages))
	writeCtx := context.WithoutCancel(ctx)
	written := make([]string, 0, len(passages))
	for i, p := range passages {
		doc := chromem.Document{
			ID:        uuid.NewString(),
			Content:   p.Content,
			Metadata:  stringMetadata(p.Metadata, first+uint64(i)),
			Embedding: vectors[i],
		}
		if err := s.collection.AddDocument(writeCtx, doc); err != nil {
			if len(written) > 0 {
				if derr := s.collection.Delete(writeCtx, nil, nil, written...); derr != nil {
					// The written documents keep their seqs, so the range stays reserved.
					s.logger.Error("failed to remove partial batch", "error", derr, "passages", len(written))
					return fmt.Errorf("add document %d: %w", i, err)
				}
			}
			s.seq.rollback(first, len(passages))
			return fmt.Errorf("add document %d: %w", i, err)
		}
		written = append(written, doc.ID)
	}

	s.logger.Debug("passages indexed", "count", len(passages), "first_seq", first)
	return nil
}

// Search ranks every stored passage so ties resolve by insertion order even
// at the k boundary.
func (s *ChromemStore) Search(ctx context.Context, query string, k int) (Result, error) {
	if strings.TrimSpace(query) == "" {
		return Result{}, ErrEmptyQuery
	}

	total := s.collection.Count()
	if total == 0 {
		return Rank(nil, k), nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("embed query: %w", err)
	}

	found, err := s.collection.QueryEmbedding(ctx, vec, total, nil, nil)
	if err != nil {
		return Result{}, fmt.Errorf("query collection: %w", err)
	}

	matches := make([]Match, len(found))
	for i, r := range found {
		meta, seq := anyMetadata(r.Metadata)
		matches[i] = Match{
			Content:  r.Content,
			Metadata: meta,
			Score:    r.Similarity,
			Seq:      seq,
		}
	}
	return Rank(matches, k), nil
}

// Count returns the number of stored passages.
func (s *ChromemStore) Count(_ context.Context) (int, error) {
	return s.collection.Count(), nil
}

// Close is a no-op; persistent writes are flushed per document.
func (s *ChromemStore) Close(_ context.Context) error {
	return nil
}
