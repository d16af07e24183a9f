package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/raphaelgruber/docqa/internal/agent"
	"github.com/raphaelgruber/docqa/internal/client"
	"github.com/raphaelgruber/docqa/internal/models"
	"github.com/raphaelgruber/docqa/internal/service"
	"github.com/spf13/cobra"
)

var (
	askJSON   bool
	askNoEval bool
	askTrace  bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the ingested documents",
	Long: `Ask a question about the ingested documents.

The index is searched first. If it holds relevant passages the answer is
grounded in them; otherwise the model answers from general knowledge. The
answer is then scored unless --no-eval is given.

Examples:
  docqa ask "What is the capital of France?"
  docqa ask "Summarize the meeting recording" --trace
  docqa ask "Who signed the contract?" --json --no-eval
  docqa ask "What changed in v2?" --server http://localhost:5175`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full response as JSON")
	askCmd.Flags().BoolVar(&askNoEval, "no-eval", false, "skip answer evaluation")
	askCmd.Flags().BoolVar(&askTrace, "trace", false, "show the reasoning trace")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.Join(args, " ")

	out := cmd.OutOrStdout()

	if serverURL != "" {
		resp, err := client.New(serverURL).Chat(ctx, question)
		if err != nil {
			return fmt.Errorf("ask: %w", err)
		}
		if askJSON {
			return writeJSON(out, resp)
		}
		renderChat(out, remoteView(resp), defaultTheme, askTrace)
		return nil
	}

	a, err := getApp(ctx)
	if err != nil {
		return err
	}

	resp, err := a.Query.Chat(ctx, question, service.ChatOptions{SkipEvaluation: askNoEval})
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	if askJSON {
		return writeJSON(out, resp)
	}
	renderChat(out, localView(resp), defaultTheme, askTrace)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// chatView is what renderChat prints, independent of where the answer came from.
type chatView struct {
	Answer     string
	Source     models.Source
	ToolsUsed  []string
	Evaluation *models.Evaluation
	Steps      []string
}

func localView(resp *service.ChatResponse) chatView {
	steps := make([]string, len(resp.Reasoning))
	for i, s := range resp.Reasoning {
		steps[i] = describeStep(s)
	}
	return chatView{
		Answer:     resp.Answer,
		Source:     resp.Source,
		ToolsUsed:  resp.ToolsUsed,
		Evaluation: resp.Evaluation,
		Steps:      steps,
	}
}

func remoteView(resp *client.ChatResponse) chatView {
	steps := make([]string, len(resp.Reasoning))
	for i, s := range resp.Reasoning {
		steps[i] = fmt.Sprintf("%s %v -> %v", s.Action, s.Input, s.Output)
	}
	return chatView{
		Answer:     resp.Answer,
		Source:     resp.Source,
		ToolsUsed:  resp.ToolsUsed,
		Evaluation: resp.Evaluation,
		Steps:      steps,
	}
}

// renderChat prints a chat response for humans.
func renderChat(w io.Writer, v chatView, theme Theme, showTrace bool) {
	fmt.Fprintln(w, theme.answerStyle().Render(v.Answer))
	fmt.Fprintf(w, "%s %s\n", theme.titleStyle().Render("Source:"), v.Source)
	fmt.Fprintf(w, "%s %s\n", theme.titleStyle().Render("Tools:"), strings.Join(v.ToolsUsed, ", "))

	if e := v.Evaluation; e != nil {
		fmt.Fprintf(w, "%s relevance %d/5, clarity %d/5, tool effectiveness %d/5\n",
			theme.titleStyle().Render("Evaluation:"), e.Relevance, e.Clarity, e.ToolEffectiveness)
		if e.Feedback != "" {
			fmt.Fprintln(w, theme.hintStyle().Render(e.Feedback))
		}
	}

	if showTrace {
		fmt.Fprintln(w, theme.titleStyle().Render("Reasoning:"))
		for i, step := range v.Steps {
			fmt.Fprintf(w, "  %d. %s\n", i+1, step)
		}
	}
}

func describeStep(step agent.Step) string {
	switch s := step.(type) {
	case agent.RetrievalStep:
		if s.Output.Failed() {
			return fmt.Sprintf("%s(%q) failed: %s", s.Tool(), s.Input.Query, s.Output.Diagnostic)
		}
		return fmt.Sprintf("%s(%q) found=%t passages=%d", s.Tool(), s.Input.Query, s.Output.Found, len(s.Output.Passages))
	case agent.KnowledgeStep:
		if s.Err != "" {
			return fmt.Sprintf("%s(%q) failed: %s", s.Tool(), s.Input.Question, s.Err)
		}
		return fmt.Sprintf("%s(%q) answered", s.Tool(), s.Input.Question)
	}
	return string(step.Tool())
}
