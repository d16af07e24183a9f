package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/docqa/internal/llm"
	"github.com/raphaelgruber/docqa/internal/models"
)

// ErrEmptyAnswer indicates the model returned no usable text.
var ErrEmptyAnswer = errors.New("empty answer from model")

// KnowledgeInput defines the input schema for the general_knowledge tool.
type KnowledgeInput struct {
	Question string `json:"question" jsonschema:"The question to answer from general knowledge"`
}

// Knowledge answers questions from the model's own knowledge. Failures are
// returned to the caller; there are no retries.
type Knowledge struct {
	generator llm.Generator
	timeout   time.Duration
	logger    *slog.Logger
}

// NewKnowledge creates the knowledge tool; timeout <= 0 disables the deadline.
func NewKnowledge(generator llm.Generator, timeout time.Duration, logger *slog.Logger) *Knowledge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Knowledge{generator: generator, timeout: timeout, logger: logger}
}

// Run answers input.Question.
func (k *Knowledge) Run(ctx context.Context, input KnowledgeInput) (models.KnowledgeResult, error) {
	if strings.TrimSpace(input.Question) == "" {
		return models.KnowledgeResult{}, fmt.Errorf("general knowledge: question is empty")
	}

	callCtx, cancel := withTimeout(ctx, k.timeout)
	defer cancel()

	answer, err := k.generator.Generate(callCtx, input.Question)
	if err != nil {
		return models.KnowledgeResult{}, fmt.Errorf("general knowledge: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return models.KnowledgeResult{}, fmt.Errorf("general knowledge: %w", ErrEmptyAnswer)
	}

	return models.KnowledgeResult{Answer: answer, Source: models.SourceKnowledge}, nil
}
