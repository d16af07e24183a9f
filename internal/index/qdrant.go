package index

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/raphaelgruber/docqa/internal/embedding"
	"github.com/raphaelgruber/docqa/internal/models"
)

// Payload keys on qdrant points. Passage metadata is stored under metaPrefix.
const (
	payloadContent = "content"
	payloadSeq     = "seq"
	metaPrefix     = "meta_"
)

// QdrantConfig configures NewQdrantStore.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// QdrantStore indexes passages in a Qdrant collection over gRPC.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	embedder   embedding.Embedder
	logger     *slog.Logger
	seq        sequencer
}

var _ Store = (*QdrantStore)(nil)

// NewQdrantStore connects and creates the collection (cosine distance,
// embedder dimension) when it does not exist yet.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig, embedder embedding.Embedder, logger *slog.Logger) (*QdrantStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder required", ErrInvalidConfig)
	}
	if cfg.Collection == "" || cfg.Host == "" {
		return nil, fmt.Errorf("%w: qdrant host and collection required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}

	s := &QdrantStore{
		client:     client,
		collection: cfg.Collection,
		embedder:   embedder,
		logger:     logger,
	}
	if err := s.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	count, err := s.Count(ctx)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	s.seq.next = uint64(count)

	logger.Info("qdrant index ready", "host", cfg.Host, "collection", cfg.Collection, "passages", count)
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", s.collection, err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.embedder.Dimension()),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}
	s.logger.Info("created qdrant collection", "collection", s.collection, "dimension", s.embedder.Dimension())
	return nil
}

// Add embeds passages first, then upserts them in one waited request.
func (s *QdrantStore) Add(ctx context.Context, passages []models.Passage) error {
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
	points := make([]*qdrant.PointStruct, len(passages))
	for i, p := range passages {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.NewString()),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrantPayload(p, first+uint64(i)),
		}
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		s.seq.rollback(first, len(passages))
		return fmt.Errorf("upsert points to %s: %w", s.collection, err)
	}
	return nil
}

// Search queries k+slack candidates and ranks them with seq tie-breaking.
// While a page ends tied with the k-th score, it re-queries exactly with that
// score as threshold and a doubled limit so no tied passage is left out.
func (s *QdrantStore) Search(ctx context.Context, query string, k int) (Result, error) {
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

	req := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          qdrant.PtrOf(uint64(k + tieSlack)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	for {
		points, err := s.client.Query(ctx, req)
		if err != nil {
			return Result{}, fmt.Errorf("query %s: %w", s.collection, err)
		}

		matches := make([]Match, 0, len(points))
		for _, p := range points {
			matches = append(matches, qdrantMatch(p))
		}
		limit := int(req.GetLimit())
		if !tiedAtCut(matches, limit, k) {
			return Rank(matches, k), nil
		}

		s.logger.Debug("widening tied search", "collection", s.collection, "limit", limit*2)
		req.ScoreThreshold = qdrant.PtrOf(matches[k-1].Score)
		req.Limit = qdrant.PtrOf(uint64(limit * 2))
		req.Params = &qdrant.SearchParams{Exact: qdrant.PtrOf(true)}
	}
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", s.collection, err)
	}
	return int(n), nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close(_ context.Context) error {
	return s.client.Close()
}

func qdrantPayload(p models.Passage, seq uint64) map[string]*qdrant.Value {
	payload := map[string]*qdrant.Value{
		payloadContent: {Kind: &qdrant.Value_StringValue{StringValue: p.Content}},
		payloadSeq:     {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(seq)}},
	}
	for k, v := range p.Metadata {
		key := metaPrefix + k
		switch val := v.(type) {
		case string:
			payload[key] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
		case int:
			payload[key] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
		case int64:
			payload[key] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
		case float64:
			payload[key] = &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
		case bool:
			payload[key] = &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
		default:
			payload[key] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: fmt.Sprint(val)}}
		}
	}
	return payload
}

func qdrantMatch(p *qdrant.ScoredPoint) Match {
	m := Match{Score: p.GetScore(), Metadata: map[string]any{}}
	for k, v := range p.GetPayload() {
		switch {
		case k == payloadContent:
			m.Content = v.GetStringValue()
		case k == payloadSeq:
			m.Seq = uint64(v.GetIntegerValue())
		case strings.HasPrefix(k, metaPrefix):
			name := strings.TrimPrefix(k, metaPrefix)
			switch kind := v.GetKind().(type) {
			case *qdrant.Value_StringValue:
				m.Metadata[name] = kind.StringValue
			case *qdrant.Value_IntegerValue:
				m.Metadata[name] = int(kind.IntegerValue)
			case *qdrant.Value_DoubleValue:
				m.Metadata[name] = kind.DoubleValue
			case *qdrant.Value_BoolValue:
				m.Metadata[name] = kind.BoolValue
			}
		}
	}
	return m
}
