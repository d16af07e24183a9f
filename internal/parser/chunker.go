// Package parser splits extracted document text into overlapping passages.
package parser

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/raphaelgruber/docqa/internal/models"
)

// ChunkPolicy defines chunking parameters, measured in characters.
type ChunkPolicy struct {
	// MaxSize: maximum passage length
	MaxSize int
	// Overlap: characters repeated from the end of the previous passage
	Overlap int
}

// DefaultChunkPolicy returns the baseline policy of 500/50.
func DefaultChunkPolicy() ChunkPolicy {
	return ChunkPolicy{
		MaxSize: 500,
		Overlap: 50,
	}
}

// Validate checks 0 <= Overlap < MaxSize.
func (p ChunkPolicy) Validate() error {
	if p.MaxSize <= 0 {
		return fmt.Errorf("chunk max size must be positive, got %d", p.MaxSize)
	}
	if p.Overlap < 0 {
		return fmt.Errorf("chunk overlap must not be negative, got %d", p.Overlap)
	}
	if p.Overlap >= p.MaxSize {
		return fmt.Errorf("chunk overlap (%d) must be smaller than max size (%d)", p.Overlap, p.MaxSize)
	}
	return nil
}

// Split divides text into passages of at most policy.MaxSize characters.
// Each passage after the first starts with the trailing policy.Overlap
// characters of its predecessor. Boundaries prefer whitespace; a window with
// no whitespace past the overlap region is cut at MaxSize.
//
// Runs of two or more whitespace characters are collapsed to one (a newline
// if the run contains one, otherwise a space). The offset metadata is the
// rune index in the caller's text where the passage begins.
//
// Empty or whitespace-only text returns nil, which callers must treat as
// nothing ingested. An invalid policy falls back to DefaultChunkPolicy.
func Split(text string, policy ChunkPolicy) []models.Passage {
	runes, origin := normalize(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	if policy.Validate() != nil {
		policy = DefaultChunkPolicy()
	}

	var passages []models.Passage
	emit := func(from, to int) {
		content := string(runes[from:to])
		if strings.TrimSpace(content) == "" {
			return
		}
		passages = append(passages, models.Passage{
			Content: content,
			Metadata: map[string]any{
				models.MetaPosition: len(passages),
				models.MetaOffset:   origin[from],
			},
		})
	}

	start := 0
	for {
		end := start + policy.MaxSize
		if end >= n {
			emit(start, n)
			return passages
		}

		cut := boundary(runes, start+policy.Overlap+1, end)
		emit(start, cut)
		start = cut - policy.Overlap
	}
}

// normalize trims text and collapses whitespace runs. origin[i] is the index
// in the original runes of normalized rune i.
func normalize(text string) ([]rune, []int) {
	src := []rune(text)
	out := make([]rune, 0, len(src))
	origin := make([]int, 0, len(src))

	for i := 0; i < len(src); {
		if !unicode.IsSpace(src[i]) {
			out = append(out, src[i])
			origin = append(origin, i)
			i++
			continue
		}
		j, newline := i, false
		for j < len(src) && unicode.IsSpace(src[j]) {
			newline = newline || src[j] == '\n'
			j++
		}
		// Leading and trailing runs are dropped.
		if len(out) > 0 && j < len(src) {
			r := src[i]
			if j-i > 1 {
				r = ' '
				if newline {
					r = '\n'
				}
			}
			out = append(out, r)
			origin = append(origin, i)
		}
		i = j
	}
	return out, origin
}

// boundary returns the largest index in [lo, hi] that sits on whitespace,
// or hi when there is none. runes[hi] must exist.
func boundary(runes []rune, lo, hi int) int {
	for i := hi; i >= lo; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return hi
}
