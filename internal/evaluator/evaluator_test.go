package evaluator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raphaelgruber/docqa/internal/metrics"
	"github.com/raphaelgruber/docqa/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	output string
	err    error
	block  bool
	prompt string
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompt = prompt
	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return g.output, g.err
}

func (g *stubGenerator) GenerateWithSystem(ctx context.Context, _, prompt string) (string, error) {
	return g.Generate(ctx, prompt)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   models.Evaluation
		wantOK bool
	}{
		{
			name:   "well formed",
			raw:    `{"relevance": 5, "clarity": 4, "toolEffectiveness": 3, "feedback": "Good"}`,
			want:   models.Evaluation{Relevance: 5, Clarity: 4, ToolEffectiveness: 3, Feedback: "Good"},
			wantOK: true,
		},
		{
			name:   "fenced with prose",
			raw:    "Here you go:\n```json\n{\"relevance\": 2, \"clarity\": 1, \"toolEffectiveness\": 5, \"feedback\": \"meh\"}\n```",
			want:   models.Evaluation{Relevance: 2, Clarity: 1, ToolEffectiveness: 5, Feedback: "meh"},
			wantOK: true,
		},
		{
			name:   "out of range and non numeric default to neutral",
			raw:    `{"relevance": -2, "clarity": 9, "toolEffectiveness": "great", "feedback": "x"}`,
			want:   models.Evaluation{Relevance: 3, Clarity: 3, ToolEffectiveness: 3, Feedback: "x"},
			wantOK: true,
		},
		{
			name:   "fractions round",
			raw:    `{"relevance": 4.6, "clarity": 1.2, "toolEffectiveness": 2.5, "feedback": ""}`,
			want:   models.Evaluation{Relevance: 5, Clarity: 1, ToolEffectiveness: 3, Feedback: ""},
			wantOK: true,
		},
		{
			name:   "missing fields default",
			raw:    `{"relevance": 4}`,
			want:   models.Evaluation{Relevance: 4, Clarity: 3, ToolEffectiveness: 3},
			wantOK: true,
		},
		{
			name:   "snake case tool key",
			raw:    `{"relevance": 4, "clarity": 4, "tool_effectiveness": 1, "feedback": "ok"}`,
			want:   models.Evaluation{Relevance: 4, Clarity: 4, ToolEffectiveness: 1, Feedback: "ok"},
			wantOK: true,
		},
		{
			name: "not json",
			raw:  "The answer was pretty good overall.",
			want: models.DefaultEvaluation(),
		},
		{
			name: "broken json",
			raw:  `{"relevance": 5, "clarity": }`,
			want: models.DefaultEvaluation(),
		},
		{
			name: "unrelated object",
			raw:  `{"score": 5}`,
			want: models.DefaultEvaluation(),
		},
		{
			name: "empty",
			raw:  "",
			want: models.DefaultEvaluation(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid(), "scores must stay within bounds")
		})
	}
}

func TestEvaluate(t *testing.T) {
	t.Run("scores from model output", func(t *testing.T) {
		gen := &stubGenerator{output: `{"relevance": 5, "clarity": 5, "toolEffectiveness": 4, "feedback": "Clear"}`}
		e := New(gen, time.Second, nil, nil)

		got := e.Evaluate(context.Background(), "What is the capital of France?", "Paris", []string{"vector_search"})

		assert.Equal(t, models.Evaluation{Relevance: 5, Clarity: 5, ToolEffectiveness: 4, Feedback: "Clear"}, got)
		assert.Contains(t, gen.prompt, "Question: What is the capital of France?")
		assert.Contains(t, gen.prompt, "Answer: Paris")
		assert.Contains(t, gen.prompt, "Tools Used: vector_search")
	})

	t.Run("malformed output yields default", func(t *testing.T) {
		e := New(&stubGenerator{output: "not json at all"}, time.Second, nil, nil)
		got := e.Evaluate(context.Background(), "q", "a", []string{"vector_search"})
		assert.Equal(t, models.DefaultEvaluation(), got)
	})

	t.Run("generation error yields default", func(t *testing.T) {
		e := New(&stubGenerator{err: errors.New("rate limited")}, time.Second, nil, nil)
		got := e.Evaluate(context.Background(), "q", "a", nil)
		assert.Equal(t, models.DefaultEvaluation(), got)
	})

	t.Run("timeout yields default", func(t *testing.T) {
		e := New(&stubGenerator{block: true}, 20*time.Millisecond, nil, nil)
		got := e.Evaluate(context.Background(), "q", "a", nil)
		assert.Equal(t, models.DefaultEvaluation(), got)
	})

	t.Run("records timing", func(t *testing.T) {
		collector := metrics.NewCollector()
		e := New(&stubGenerator{output: "{}"}, 0, collector, nil)
		e.Evaluate(context.Background(), "q", "a", nil)

		snap := collector.Snapshot()
		require.NotNil(t, snap.Evaluation)
		assert.Equal(t, int64(1), snap.Evaluation.Count)
	})
}

func TestPrompt_JoinsTools(t *testing.T) {
	p := Prompt("q", "a", []string{"vector_search", "general_knowledge"})
	assert.Contains(t, p, "Tools Used: vector_search, general_knowledge")
	assert.Contains(t, p, "Evaluate the following AI response on a scale of 1-5 for each criterion:")
}
