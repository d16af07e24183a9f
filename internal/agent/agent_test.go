package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/raphaelgruber/docqa/internal/agent"
	"github.com/raphaelgruber/docqa/internal/embedding"
	"github.com/raphaelgruber/docqa/internal/index"
	"github.com/raphaelgruber/docqa/internal/metrics"
	"github.com/raphaelgruber/docqa/internal/models"
	"github.com/raphaelgruber/docqa/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRetriever struct {
	result models.RetrievalResult
	calls  int
}

func (s *stubRetriever) Run(_ context.Context, _ tools.RetrievalInput) models.RetrievalResult {
	s.calls++
	return s.result
}

type stubKnower struct {
	answer string
	err    error
	calls  int
}

func (s *stubKnower) Run(_ context.Context, input tools.KnowledgeInput) (models.KnowledgeResult, error) {
	s.calls++
	if s.err != nil {
		return models.KnowledgeResult{}, s.err
	}
	return models.KnowledgeResult{Answer: s.answer, Source: models.SourceKnowledge}, nil
}

// contextGenerator answers with the context section of the prompt, so tests
// can check which passages reached the model.
type contextGenerator struct {
	err     error
	block   bool
	prompts []string
}

func (g *contextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.GenerateWithSystem(ctx, "", prompt)
}

func (g *contextGenerator) GenerateWithSystem(ctx context.Context, _, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if g.err != nil {
		return "", g.err
	}
	ctxPart, _, _ := strings.Cut(strings.TrimPrefix(prompt, "Context: "), "\n\nQuestion:")
	return ctxPart, nil
}

func TestAgentRun(t *testing.T) {
	tests := []struct {
		name          string
		retrieval     models.RetrievalResult
		knower        *stubKnower
		gen           *contextGenerator
		wantAnswer    string
		wantSource    models.Source
		wantTools     []string
		wantKnowCalls int
		wantErr       error
	}{
		{
			name:          "found passages answer from documents",
			retrieval:     models.RetrievalResult{Found: true, Passages: []string{"Paris is the capital."}},
			knower:        &stubKnower{answer: "unused"},
			gen:           &contextGenerator{},
			wantAnswer:    "Paris is the capital.",
			wantSource:    models.SourceDocuments,
			wantTools:     []string{"vector_search"},
			wantKnowCalls: 0,
		},
		{
			name:          "not found falls back to knowledge",
			retrieval:     models.NotFound(),
			knower:        &stubKnower{answer: "Paris"},
			gen:           &contextGenerator{},
			wantAnswer:    "Paris",
			wantSource:    models.SourceKnowledge,
			wantTools:     []string{"vector_search", "general_knowledge"},
			wantKnowCalls: 1,
		},
		{
			name:          "retrieval failure falls back to knowledge",
			retrieval:     models.ToolFailure("connection refused"),
			knower:        &stubKnower{answer: "Paris"},
			gen:           &contextGenerator{},
			wantAnswer:    "Paris",
			wantSource:    models.SourceKnowledge,
			wantTools:     []string{"vector_search", "general_knowledge"},
			wantKnowCalls: 1,
		},
		{
			name:          "both tools failing yields unknown source",
			retrieval:     models.ToolFailure("timeout"),
			knower:        &stubKnower{err: errors.New("model down")},
			gen:           &contextGenerator{},
			wantSource:    models.SourceUnknown,
			wantTools:     []string{"vector_search", "general_knowledge"},
			wantKnowCalls: 1,
			wantErr:       agent.ErrGeneration,
		},
		{
			name:          "synthesis failure does not fall back",
			retrieval:     models.RetrievalResult{Found: true, Passages: []string{"p"}},
			knower:        &stubKnower{answer: "unused"},
			gen:           &contextGenerator{err: errors.New("500")},
			wantSource:    models.SourceDocuments,
			wantTools:     []string{"vector_search"},
			wantKnowCalls: 0,
			wantErr:       agent.ErrGeneration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retriever := &stubRetriever{result: tt.retrieval}
			a := agent.New(retriever, tt.knower, tt.gen, agent.Options{StepTimeout: time.Second})

			resp, err := a.Run(context.Background(), "What is the capital of France?")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.NotNil(t, resp)

			assert.Equal(t, tt.wantAnswer, resp.Answer)
			assert.Equal(t, tt.wantSource, resp.Source)
			assert.Equal(t, tt.wantTools, resp.ToolsUsed)
			assert.Equal(t, agent.StateDone, resp.State)
			assert.Equal(t, 1, retriever.calls, "retrieval runs exactly once")
			assert.Equal(t, tt.wantKnowCalls, tt.knower.calls)
			assert.Equal(t, "vector_search", resp.ToolsUsed[0], "retrieval always comes first")
		})
	}
}

func TestAgentRun_EmptyQuestion(t *testing.T) {
	retriever := &stubRetriever{}
	a := agent.New(retriever, &stubKnower{}, &contextGenerator{}, agent.Options{})

	_, err := a.Run(context.Background(), "  \t")

	require.ErrorIs(t, err, agent.ErrEmptyQuestion)
	assert.Zero(t, retriever.calls)
}

func TestAgentRun_SynthesisTimeout(t *testing.T) {
	retriever := &stubRetriever{result: models.RetrievalResult{Found: true, Passages: []string{"p"}}}
	knower := &stubKnower{answer: "unused"}
	a := agent.New(retriever, knower, &contextGenerator{block: true}, agent.Options{StepTimeout: 20 * time.Millisecond})

	resp, err := a.Run(context.Background(), "q")

	require.ErrorIs(t, err, agent.ErrGeneration)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, models.SourceDocuments, resp.Source)
	assert.Zero(t, knower.calls)
}

func TestAgentRun_RecordsMetrics(t *testing.T) {
	collector := metrics.NewCollector()
	a := agent.New(&stubRetriever{result: models.NotFound()}, &stubKnower{answer: "a"}, &contextGenerator{},
		agent.Options{Collector: collector})

	_, err := a.Run(context.Background(), "q")
	require.NoError(t, err)

	snap := collector.Snapshot()
	require.NotNil(t, snap.Query)
	assert.Equal(t, int64(1), snap.Query.Count)
	assert.Equal(t, int64(1), snap.Answers[string(models.SourceKnowledge)])
}

func TestTraceJSON(t *testing.T) {
	trace := agent.Trace{
		agent.RetrievalStep{Input: tools.RetrievalInput{Query: "q"}, Output: models.NotFound()},
		agent.KnowledgeStep{Input: tools.KnowledgeInput{Question: "q"}, Err: "boom"},
	}

	b, err := json.Marshal(trace)
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	require.Len(t, got, 2)

	assert.Equal(t, "vector_search", got[0]["action"])
	assert.Equal(t, map[string]any{"query": "q"}, got[0]["input"])
	assert.Equal(t, false, got[0]["output"].(map[string]any)["found"])

	assert.Equal(t, "general_knowledge", got[1]["action"])
	assert.Equal(t, map[string]any{"error": "boom"}, got[1]["output"])

	empty, err := json.Marshal(agent.Trace(nil))
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(empty))
}

func TestTraceToolsUsed_Deduplicates(t *testing.T) {
	trace := agent.Trace{
		agent.RetrievalStep{},
		agent.KnowledgeStep{},
		agent.RetrievalStep{},
	}
	assert.Equal(t, []string{"vector_search", "general_knowledge"}, trace.ToolsUsed())
}

func TestAgentEndToEnd(t *testing.T) {
	ctx := context.Background()
	embedder := embedding.NewHashEmbedder(128)

	t.Run("ShouldAnswerFromDocuments", func(t *testing.T) {
		store, err := index.NewChromemStore(index.ChromemConfig{Collection: "e2e"}, embedder, nil)
		require.NoError(t, err)
		require.NoError(t, store.Add(ctx, []models.Passage{{Content: "The capital of France is Paris."}}))

		knower := &stubKnower{answer: "unused"}
		a := agent.New(tools.NewRetrieval(store, 3, time.Second, nil), knower, &contextGenerator{}, agent.Options{})

		resp, err := a.Run(ctx, "What is the capital of France?")
		require.NoError(t, err)

		assert.Equal(t, models.SourceDocuments, resp.Source)
		assert.Contains(t, resp.Answer, "Paris")
		step, ok := resp.Trace[0].(agent.RetrievalStep)
		require.True(t, ok)
		assert.True(t, step.Output.Found)
		assert.Zero(t, knower.calls)
	})

	t.Run("ShouldFallBackOnEmptyIndex", func(t *testing.T) {
		store, err := index.NewChromemStore(index.ChromemConfig{Collection: "empty"}, embedder, nil)
		require.NoError(t, err)

		knower := &stubKnower{answer: "Paris"}
		a := agent.New(tools.NewRetrieval(store, 3, time.Second, nil), knower, &contextGenerator{}, agent.Options{})

		resp, err := a.Run(ctx, "What is the capital of France?")
		require.NoError(t, err)

		step, ok := resp.Trace[0].(agent.RetrievalStep)
		require.True(t, ok)
		assert.False(t, step.Output.Found)
		assert.Equal(t, models.SourceKnowledge, resp.Source)
		assert.Equal(t, 1, knower.calls)
	})
}
