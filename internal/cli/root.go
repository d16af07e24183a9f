// Package cli provides the command-line interface for docqa.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/raphaelgruber/docqa/internal/app"
	"github.com/raphaelgruber/docqa/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	configFile string
	indexPath  string
	serverURL  string

	cfg         *config.Config
	logger      *slog.Logger
	closeLogger func() error
	application *app.App
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Ask questions about your PDFs and recordings",
	Long: `docqa ingests PDFs, audio recordings and text files into a vector index
and answers questions about them. Questions the documents cannot answer fall
back to the model's general knowledge, and every answer is scored for
relevance, clarity and tool effectiveness.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.LoadWithFile(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.Log.SlogLevel()
		if verbose {
			level = slog.LevelDebug
		} else if level < slog.LevelWarn && cmd.Name() != "serve" && cmd.Name() != "mcp" {
			level = slog.LevelWarn
		}
		logger, closeLogger = config.SetupLogger(cfg.Log.File, level)
		slog.SetDefault(logger)

		if indexPath != "" {
			cfg.Index.Path = indexPath
		}
		if cfg.Index.Provider == config.IndexChromem && cfg.Index.Path == "" {
			cfg.Index.Path = defaultIndexPath()
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if application != nil {
			if err := application.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close index: %v\n", err)
			}
		}
		if closeLogger != nil {
			_ = closeLogger()
		}
	},
}

// defaultIndexPath keeps the CLI's chromem index across invocations so that
// ingest and ask share one corpus.
func defaultIndexPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "docqa", "index")
}

// getApp builds the container on first use.
func getApp(ctx context.Context) (*app.App, error) {
	if application != nil {
		return application, nil
	}
	a, err := app.New(ctx, *cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	application = a
	return a, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&indexPath, "index-path", "", "chromem index directory (overrides index.path)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "use a running docqa-server instead of the local index")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(statusCmd)
}
