package service

import (
	"context"
	"log/slog"

	"github.com/raphaelgruber/docqa/internal/agent"
	"github.com/raphaelgruber/docqa/internal/models"
)

// Answerer runs the agent for one question.
type Answerer interface {
	Run(ctx context.Context, question string) (*agent.Response, error)
}

// Scorer evaluates a finished answer. It never fails.
type Scorer interface {
	Evaluate(ctx context.Context, question, answer string, toolsUsed []string) models.Evaluation
}

// QueryService answers questions and scores the answers.
type QueryService struct {
	agent     Answerer
	evaluator Scorer
	logger    *slog.Logger
}

// NewQueryService creates a new query service.
func NewQueryService(answerer Answerer, scorer Scorer, logger *slog.Logger) *QueryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{agent: answerer, evaluator: scorer, logger: logger}
}

// ChatResponse is the combined answer and evaluation returned to callers.
type ChatResponse struct {
	Answer     string             `json:"answer"`
	Reasoning  agent.Trace        `json:"reasoning"`
	ToolsUsed  []string           `json:"toolsUsed"`
	Source     models.Source      `json:"source"`
	Evaluation *models.Evaluation `json:"evaluation,omitempty"`
}

// ChatOptions configures Chat.
type ChatOptions struct {
	// SkipEvaluation omits the scoring call.
	SkipEvaluation bool
}

// SubmitQuery runs the agent for text.
func (s *QueryService) SubmitQuery(ctx context.Context, text string) (*agent.Response, error) {
	return s.agent.Run(ctx, text)
}

// ScoreResponse evaluates a finished answer.
func (s *QueryService) ScoreResponse(ctx context.Context, question, answer string, toolsUsed []string) models.Evaluation {
	return s.evaluator.Evaluate(ctx, question, answer, toolsUsed)
}

// Chat answers message and, unless skipped, scores the answer. Evaluation
// problems never fail the call.
func (s *QueryService) Chat(ctx context.Context, message string, opts ChatOptions) (*ChatResponse, error) {
	resp, err := s.SubmitQuery(ctx, message)
	if err != nil {
		return nil, err
	}

	out := &ChatResponse{
		Answer:    resp.Answer,
		Reasoning: resp.Trace,
		ToolsUsed: resp.ToolsUsed,
		Source:    resp.Source,
	}
	if !opts.SkipEvaluation {
		eval := s.ScoreResponse(ctx, message, resp.Answer, resp.ToolsUsed)
		out.Evaluation = &eval
	}
	return out, nil
}
