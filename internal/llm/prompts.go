package llm

import (
	"context"
	"fmt"
	"strings"
)

const answerSystemPrompt = "Answer the question based on the provided context."

// SynthesizeAnswer produces a context-stuffed completion: the passages,
// separated by blank lines, followed by the question.
func SynthesizeAnswer(ctx context.Context, g Generator, question string, passages []string) (string, error) {
	userPrompt := fmt.Sprintf("Context: %s\n\nQuestion: %s", strings.Join(passages, "\n\n"), question)
	return g.GenerateWithSystem(ctx, answerSystemPrompt, userPrompt)
}
