// Package main provides the entry point for the docqa MCP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/raphaelgruber/docqa/internal/app"
	"github.com/raphaelgruber/docqa/internal/config"
	"github.com/raphaelgruber/docqa/internal/server"
)

const version = "0.1.0"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.Log.File, cfg.Log.SlogLevel())
	defer cleanup()

	logger.Info("docqa-mcp starting",
		"version", version,
		"index", cfg.Index.Provider,
		"embedding_model", cfg.Embedding.Model,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	a, err := app.New(ctx, *cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("closing index")
		_ = a.Close(context.Background())
	}()

	logger.Info("server ready, awaiting connections")

	// Blocks until disconnect or context cancelled
	if err := server.ServeMCP(ctx, a, version); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
