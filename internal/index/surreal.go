package index

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/docqa/internal/db"
	"github.com/raphaelgruber/docqa/internal/embedding"
	"github.com/raphaelgruber/docqa/internal/models"
)

// SurrealStore keeps passages in the SurrealDB passage table.
type SurrealStore struct {
	client   *db.Client
	embedder embedding.Embedder
	logger   *slog.Logger
	seq      sequencer
}

var _ Store = (*SurrealStore)(nil)

// NewSurrealStore connects, initializes the schema for the embedder's
// dimension, and resumes the seq counter after the highest stored passage.
func NewSurrealStore(ctx context.Context, cfg db.Config, embedder embedding.Embedder, logger *slog.Logger) (*SurrealStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := db.NewClient(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect surrealdb: %w", err)
	}
	if err := client.InitSchema(ctx, embedder.Dimension()); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}

	maxSeq, err := client.QueryMaxSeq(ctx)
	if err != nil {
		_ = client.Close(ctx)
		return nil, err
	}

	s := &SurrealStore{client: client, embedder: embedder, logger: logger}
	s.seq.next = uint64(maxSeq + 1)
	return s, nil
}

// Add embeds passages first, then inserts them in one statement.
func (s *SurrealStore) Add(ctx context.Context, passages []models.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	vectors, err := s.embedder.EmbedBatch(ctx, contents(passages))
	if err != nil {
		return fmt.Errorf("embed passages: %w", err)
	}

	s.seq.Lock()
	defer s.seq.Unlock()

	first := s.seq.reserve(len(passages))
	records := make([]db.PassageRecord, len(passages))
	for i, p := range passages {
		records[i] = db.PassageRecord{
			Content:   p.Content,
			Metadata:  p.Clone().Metadata,
			Embedding: vectors[i],
			Seq:       int64(first) + int64(i),
		}
	}

	if err := s.client.QueryInsertPassages(ctx, records); err != nil {
		s.seq.rollback(first, len(passages))
		return err
	}
	return nil
}

// Search runs an HNSW query and ranks the candidates. A page that ends tied
// with the k-th score is fetched again with a doubled limit.
func (s *SurrealStore) Search(ctx context.Context, query string, k int) (Result, error) {
	if strings.TrimSpace(query) == "" {
		return Result{}, ErrEmptyQuery
	}
	if k <= 0 {
		k = DefaultK
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("embed query: %w", err)
	}

	limit := k + tieSlack
	for {
		rows, err := s.client.QuerySearchPassages(ctx, vec, limit)
		if err != nil {
			return Result{}, err
		}

		matches := make([]Match, len(rows))
		for i, r := range rows {
			matches[i] = Match{
				Content:  r.Content,
				Metadata: r.Metadata,
				Score:    float32(r.Score),
				Seq:      uint64(r.Seq),
			}
		}
		if !tiedAtCut(matches, limit, k) {
			return Rank(matches, k), nil
		}
		limit *= 2
	}
}

// Count returns the number of stored passages.
func (s *SurrealStore) Count(ctx context.Context) (int, error) {
	return s.client.QueryCountPassages(ctx)
}

// Close closes the SurrealDB connection.
func (s *SurrealStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}
