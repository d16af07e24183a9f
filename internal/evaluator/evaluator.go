// Package evaluator scores finished answers against a fixed rubric using a
// second, independent generation call.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/raphaelgruber/docqa/internal/llm"
	"github.com/raphaelgruber/docqa/internal/metrics"
	"github.com/raphaelgruber/docqa/internal/models"
	"github.com/tidwall/gjson"
)

const rubricPrompt = `Evaluate the following AI response on a scale of 1-5 for each criterion:

Question: %s
Answer: %s
Tools Used: %s

Criteria:
1. Relevance: Does the answer address the question?
2. Clarity: Is the answer clear and well-structured?
3. Tool Effectiveness: Were the right tools used?

Respond in JSON format:
{
  "relevance": <score>,
  "clarity": <score>,
  "toolEffectiveness": <score>,
  "feedback": "<brief feedback>"
}`

// Evaluator is safe for concurrent use.
type Evaluator struct {
	generator llm.Generator
	timeout   time.Duration
	collector *metrics.Collector
	logger    *slog.Logger
}

// New creates an Evaluator. timeout <= 0 disables the per-call deadline.
func New(generator llm.Generator, timeout time.Duration, collector *metrics.Collector, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{generator: generator, timeout: timeout, collector: collector, logger: logger}
}

// Evaluate scores answer. It never fails: any generation or parse problem
// yields models.DefaultEvaluation.
func (e *Evaluator) Evaluate(ctx context.Context, question, answer string, toolsUsed []string) models.Evaluation {
	start := time.Now()
	defer e.collector.Time(metrics.OpEvaluation, start)

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	raw, err := e.generator.Generate(callCtx, Prompt(question, answer, toolsUsed))
	if err != nil {
		e.logger.Warn("evaluation generation failed", "error", err)
		return models.DefaultEvaluation()
	}

	eval, ok := Parse(raw)
	if !ok {
		e.logger.Warn("evaluation output unparseable", "output", truncate(raw, 200))
	}
	return eval
}

// Prompt renders the rubric for one answer.
func Prompt(question, answer string, toolsUsed []string) string {
	return fmt.Sprintf(rubricPrompt, question, answer, strings.Join(toolsUsed, ", "))
}

// Parse reads scoring output. Scores that are missing, non-numeric or
// outside [1,5] become 3; in-range fractions round to nearest. ok is false
// when no rubric object could be found, in which case the default
// evaluation is returned.
func Parse(raw string) (models.Evaluation, bool) {
	obj := extractObject(raw)
	if obj == "" || !gjson.Valid(obj) {
		return models.DefaultEvaluation(), false
	}

	fields := gjson.GetMany(obj, "relevance", "clarity", "toolEffectiveness", "tool_effectiveness", "feedback")
	recognized := false
	for _, f := range fields {
		if f.Exists() {
			recognized = true
			break
		}
	}
	if !recognized {
		return models.DefaultEvaluation(), false
	}

	tool := fields[2]
	if !tool.Exists() {
		tool = fields[3]
	}
	return models.Evaluation{
		Relevance:         score(fields[0]),
		Clarity:           score(fields[1]),
		ToolEffectiveness: score(tool),
		Feedback:          fields[4].String(),
	}, true
}

func score(r gjson.Result) int {
	if r.Type != gjson.Number {
		return models.NeutralScore
	}
	v := r.Float()
	if math.IsNaN(v) || v < models.MinScore || v > models.MaxScore {
		return models.NeutralScore
	}
	return int(math.Round(v))
}

// extractObject strips markdown fences and returns the span from the first
// '{' to the last '}'.
func extractObject(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
