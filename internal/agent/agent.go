// Package agent runs the per-query orchestration: retrieval first, then either
// a document-grounded answer or a general-knowledge fallback.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/docqa/internal/llm"
	"github.com/raphaelgruber/docqa/internal/metrics"
	"github.com/raphaelgruber/docqa/internal/models"
	"github.com/raphaelgruber/docqa/internal/tools"
)

var (
	// ErrEmptyQuestion indicates a blank question.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrGeneration indicates the answer could not be produced. It is fatal
	// to the current query and is never retried.
	ErrGeneration = errors.New("answer generation failed")
)

// Retriever is the retrieval tool contract.
type Retriever interface {
	Run(ctx context.Context, input tools.RetrievalInput) models.RetrievalResult
}

// Knower is the general knowledge tool contract.
type Knower interface {
	Run(ctx context.Context, input tools.KnowledgeInput) (models.KnowledgeResult, error)
}

// Response is the outcome of one query.
type Response struct {
	Answer    string        `json:"answer"`
	Trace     Trace         `json:"reasoning"`
	ToolsUsed []string      `json:"toolsUsed"`
	Source    models.Source `json:"source"`
	State     State         `json:"-"`
}

// Agent holds no per-query state and is safe for concurrent use.
type Agent struct {
	retriever Retriever
	knower    Knower
	generator llm.Generator
	timeout   time.Duration
	collector *metrics.Collector
	logger    *slog.Logger
}

// Options configures an Agent.
type Options struct {
	// StepTimeout bounds the answer synthesis call. Zero disables it.
	StepTimeout time.Duration
	Collector   *metrics.Collector
	Logger      *slog.Logger
}

// New creates an Agent. generator produces the context-conditioned answer.
func New(retriever Retriever, knower Knower, generator llm.Generator, opts Options) *Agent {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		retriever: retriever,
		knower:    knower,
		generator: generator,
		timeout:   opts.StepTimeout,
		collector: opts.Collector,
		logger:    logger,
	}
}

// Run answers question. On a generation failure the partial response is
// returned together with an error wrapping ErrGeneration.
func (a *Agent) Run(ctx context.Context, question string) (*Response, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	start := time.Now()
	defer a.collector.Time(metrics.OpQuery, start)

	r := &run{resp: &Response{State: StateStart}, logger: a.logger}

	r.enter(StateRetrieving)
	retrieved := a.retriever.Run(ctx, tools.RetrievalInput{Query: question})
	r.record(RetrievalStep{Input: tools.RetrievalInput{Query: question}, Output: retrieved})
	if retrieved.Failed() {
		a.logger.Warn("retrieval failed, falling back", "diagnostic", retrieved.Diagnostic)
	}

	var err error
	if retrieved.Found {
		r.enter(StateDocumentAnswer)
		err = a.answerFromDocuments(ctx, r, question, retrieved.Passages)
	} else {
		r.enter(StateFallbackKnowledge)
		err = a.answerFromKnowledge(ctx, r, question)
	}

	resp := r.finish()
	a.logger.Info("query completed",
		"source", resp.Source,
		"tools", resp.ToolsUsed,
		"duration_ms", time.Since(start).Milliseconds(),
		"failed", err != nil)
	if err != nil {
		return resp, err
	}
	a.collector.RecordAnswer(string(resp.Source))
	return resp, nil
}

func (a *Agent) answerFromDocuments(ctx context.Context, r *run, question string, passages []string) error {
	callCtx, cancel := stepContext(ctx, a.timeout)
	defer cancel()

	answer, err := llm.SynthesizeAnswer(callCtx, a.generator, question, passages)
	if err != nil {
		return fmt.Errorf("%w: synthesize from documents: %w", ErrGeneration, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return fmt.Errorf("%w: synthesize from documents: empty completion", ErrGeneration)
	}
	r.resp.Answer = answer
	return nil
}

func (a *Agent) answerFromKnowledge(ctx context.Context, r *run, question string) error {
	input := tools.KnowledgeInput{Question: question}
	result, err := a.knower.Run(ctx, input)
	if err != nil {
		r.record(KnowledgeStep{Input: input, Err: err.Error()})
		return fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	r.record(KnowledgeStep{Input: input, Output: result})
	r.resp.Answer = result.Answer
	return nil
}

// run accumulates a single query's trace and state.
type run struct {
	resp   *Response
	logger *slog.Logger
}

func (r *run) enter(s State) {
	r.logger.Debug("agent transition", "from", r.resp.State, "to", s)
	r.resp.State = s
}

func (r *run) record(s Step) {
	r.resp.Trace = append(r.resp.Trace, s)
}

func (r *run) finish() *Response {
	r.enter(StateDone)
	r.resp.ToolsUsed = r.resp.Trace.ToolsUsed()
	r.resp.Source = r.resp.Trace.Source()
	return r.resp
}

func stepContext(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
