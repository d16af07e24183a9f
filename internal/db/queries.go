package db

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
)

// PassageRecord is one row of the passage table.
type PassageRecord struct {
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding"`
	Seq       int64          `json:"seq"`
}

// ScoredPassage is a passage returned by a nearest neighbour query.
type ScoredPassage struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Seq      int64          `json:"seq"`
	Score    float64        `json:"score"`
}

type countRow struct {
	Count int `json:"count"`
}

// QueryInsertPassages writes all records in a single statement, so either
// every passage lands or none does.
func (c *Client) QueryInsertPassages(ctx context.Context, records []PassageRecord) error {
	if len(records) == 0 {
		return nil
	}
	for i := range records {
		if records[i].Metadata == nil {
			records[i].Metadata = map[string]any{}
		}
	}

	_, err := surrealdb.Query[any](ctx, c.db, `INSERT INTO passage $rows RETURN NONE`, map[string]any{
		"rows": records,
	})
	if err != nil {
		return fmt.Errorf("insert passages: %w", wrapQueryError(err))
	}
	return nil
}

// QuerySearchPassages returns up to limit passages nearest to embedding,
// ordered by cosine similarity descending then seq ascending.
// HNSW is searched with ef=max(40, limit).
func (c *Client) QuerySearchPassages(ctx context.Context, embedding []float32, limit int) ([]ScoredPassage, error) {
	if limit <= 0 {
		return []ScoredPassage{}, nil
	}

	sql := fmt.Sprintf(`
		SELECT content, metadata, seq,
			vector::similarity::cosine(embedding, $emb) AS score
		FROM passage
		WHERE embedding <|%d,%d|> $emb
		ORDER BY score DESC, seq ASC
	`, limit, max(40, limit))

	results, err := surrealdb.Query[[]ScoredPassage](ctx, c.db, sql, map[string]any{
		"emb": embedding,
	})
	if err != nil {
		return nil, fmt.Errorf("search passages: %w", wrapQueryError(err))
	}

	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return []ScoredPassage{}, nil
}

// QueryCountPassages returns the number of stored passages.
func (c *Client) QueryCountPassages(ctx context.Context) (int, error) {
	results, err := surrealdb.Query[[]countRow](ctx, c.db,
		`SELECT count() AS count FROM passage GROUP ALL`, nil)
	if err != nil {
		return 0, fmt.Errorf("count passages: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Count, nil
}

// QueryMaxSeq returns the highest stored seq, or -1 for an empty table.
func (c *Client) QueryMaxSeq(ctx context.Context) (int64, error) {
	results, err := surrealdb.Query[[]PassageRecord](ctx, c.db,
		`SELECT seq FROM passage ORDER BY seq DESC LIMIT 1`, nil)
	if err != nil {
		return 0, fmt.Errorf("max seq: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return -1, nil
	}
	return (*results)[0].Result[0].Seq, nil
}
