package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/docqa/internal/index"
	"github.com/raphaelgruber/docqa/internal/models"
)

// Searcher is the read side of the passage index.
type Searcher interface {
	Search(ctx context.Context, query string, k int) (index.Result, error)
}

// RetrievalInput defines the input schema for the vector_search tool.
type RetrievalInput struct {
	Query string `json:"query" jsonschema:"The question or search text to look up in the uploaded documents"`
}

// Retrieval wraps the index behind the vector_search contract. It never
// returns an error: failures become a not-found result with a diagnostic.
type Retrieval struct {
	searcher Searcher
	k        int
	timeout  time.Duration
	logger   *slog.Logger
}

// NewRetrieval creates the retrieval tool. k <= 0 means index.DefaultK;
// timeout <= 0 disables the per-call deadline.
func NewRetrieval(searcher Searcher, k int, timeout time.Duration, logger *slog.Logger) *Retrieval {
	if k <= 0 {
		k = index.DefaultK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrieval{searcher: searcher, k: k, timeout: timeout, logger: logger}
}

// Run searches the index for input.Query.
func (r *Retrieval) Run(ctx context.Context, input RetrievalInput) models.RetrievalResult {
	if strings.TrimSpace(input.Query) == "" {
		return models.ToolFailure("query is empty")
	}

	callCtx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.searcher.Search(callCtx, input.Query, r.k)
	if err != nil {
		reason := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			reason = fmt.Sprintf("search timed out after %s", r.timeout)
		}
		r.logger.Warn("retrieval failed, treating as not found", "error", err)
		return models.ToolFailure(reason)
	}

	if !res.Found || len(res.Matches) == 0 {
		return models.NotFound()
	}
	return models.RetrievalResult{Found: true, Passages: res.Contents()}
}

// withTimeout applies d when positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
