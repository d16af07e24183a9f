// Package index stores passage embeddings and answers similarity queries.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/raphaelgruber/docqa/internal/models"
)

// DefaultK is the number of passages returned when a caller passes k <= 0.
const DefaultK = 3

// metaSeq carries the insertion sequence on backends with string metadata.
const metaSeq = "seq"

var (
	// ErrEmptyQuery indicates a search with a blank query string.
	ErrEmptyQuery = errors.New("empty query")

	// ErrInvalidConfig indicates an index configuration that cannot be opened.
	ErrInvalidConfig = errors.New("invalid index config")
)

// Match is one passage returned by a search.
type Match struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float32        `json:"score"`
	// Seq is the insertion order of the passage within the index.
	Seq uint64 `json:"seq"`
}

// Result is the outcome of a search. Found is false iff Matches is empty.
type Result struct {
	Found   bool    `json:"found"`
	Matches []Match `json:"matches"`
}

// Contents returns the passage texts in rank order.
func (r Result) Contents() []string {
	out := make([]string, len(r.Matches))
	for i, m := range r.Matches {
		out[i] = m.Content
	}
	return out
}

// Store is a cumulative passage index. Add may be called concurrently with
// Search; implementations serialize writers and never expose a passage
// before it is fully written.
type Store interface {
	// Add embeds and stores passages. Nothing is written if embedding fails.
	Add(ctx context.Context, passages []models.Passage) error

	// Search returns at most k passages ranked by similarity descending,
	// ties broken by insertion order.
	Search(ctx context.Context, query string, k int) (Result, error)

	// Count returns the number of stored passages.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// Rank orders matches by score descending, then Seq ascending, and keeps at
// most k. k <= 0 means DefaultK.
func Rank(matches []Match, k int) Result {
	if k <= 0 {
		k = DefaultK
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Seq < matches[j].Seq
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	if len(matches) == 0 {
		return Result{Found: false, Matches: []Match{}}
	}
	return Result{Found: true, Matches: matches}
}

// tieSlack is how many candidates beyond k the remote backends fetch first.
const tieSlack = 4

// tiedAtCut reports whether a full page of score-descending candidates ends
// on the k-th score, in which case tied passages may lie beyond the page.
func tiedAtCut(page []Match, limit, k int) bool {
	if len(page) < limit || len(page) < k || k <= 0 {
		return false
	}
	return page[len(page)-1].Score == page[k-1].Score
}

// sequencer hands out insertion sequence numbers. Callers hold the store's
// write lock while reserving, so a batch gets a contiguous range.
type sequencer struct {
	mu   sync.Mutex
	next uint64
}

// Lock serializes writers.
func (s *sequencer) Lock() { s.mu.Lock() }

// Unlock releases the write lock.
func (s *sequencer) Unlock() { s.mu.Unlock() }

// reserve returns the first seq of a block of n. Must hold the lock.
func (s *sequencer) reserve(n int) uint64 {
	first := s.next
	s.next += uint64(n)
	return first
}

// rollback returns a reservation after a failed write. Must hold the lock.
func (s *sequencer) rollback(first uint64, n int) {
	if s.next == first+uint64(n) {
		s.next = first
	}
}

// stringMetadata flattens passage metadata for backends that only store strings.
func stringMetadata(meta map[string]any, seq uint64) map[string]string {
	out := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		switch val := v.(type) {
		case string:
			out[k] = val
		case int:
			out[k] = strconv.Itoa(val)
		case int64:
			out[k] = strconv.FormatInt(val, 10)
		case bool:
			out[k] = strconv.FormatBool(val)
		case float64:
			out[k] = strconv.FormatFloat(val, 'g', -1, 64)
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	out[metaSeq] = strconv.FormatUint(seq, 10)
	return out
}

// anyMetadata is the inverse of stringMetadata; it strips the seq key.
func anyMetadata(meta map[string]string) (map[string]any, uint64) {
	out := make(map[string]any, len(meta))
	var seq uint64
	for k, v := range meta {
		if k == metaSeq {
			seq, _ = strconv.ParseUint(v, 10, 64)
			continue
		}
		out[k] = v
	}
	return out, seq
}

func contents(passages []models.Passage) []string {
	out := make([]string, len(passages))
	for i, p := range passages {
		out[i] = p.Content
	}
	return out
}
