package cli

import (
	"fmt"
	"io"

	"github.com/raphaelgruber/docqa/internal/client"
	"github.com/raphaelgruber/docqa/internal/metrics"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index size and, with --server, runtime statistics",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if serverURL != "" {
		c := client.New(serverURL)
		health, err := c.Health(ctx)
		if err != nil {
			return fmt.Errorf("health: %w", err)
		}
		stats, err := c.Stats(ctx)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		fmt.Fprintf(out, "%s %s (%d passages)\n", defaultTheme.titleStyle().Render("Server:"), health.Status, health.Passages)
		printStats(out, stats)
		return nil
	}

	a, err := getApp(ctx)
	if err != nil {
		return err
	}
	n, err := a.Index.Count(ctx)
	if err != nil {
		return fmt.Errorf("count passages: %w", err)
	}
	fmt.Fprintf(out, "%s %s (%d passages)\n", defaultTheme.titleStyle().Render("Index:"), cfg.Index.Provider, n)
	return nil
}

func printStats(w io.Writer, s *metrics.Snapshot) {
	fmt.Fprintf(w, "Uptime: %.0fs\n", s.UptimeSeconds)
	ops := []struct {
		name string
		snap *metrics.OperationSnapshot
	}{
		{"query", s.Query},
		{"evaluation", s.Evaluation},
		{"llm_generate", s.LLMGenerate},
		{"embedding", s.Embedding},
		{"index_search", s.IndexSearch},
		{"index_add", s.IndexAdd},
	}
	for _, op := range ops {
		if op.snap == nil {
			continue
		}
		fmt.Fprintf(w, "  %-13s count=%d avg=%.0fms\n", op.name, op.snap.Count, op.snap.AvgTimeMs)
	}
	for source, n := range s.Answers {
		fmt.Fprintf(w, "  answers[%s]=%d\n", source, n)
	}
}
