// Package main provides the docqa HTTP API server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/raphaelgruber/docqa/internal/app"
	"github.com/raphaelgruber/docqa/internal/config"
	"github.com/raphaelgruber/docqa/internal/server"
)

func main() {
	configFile := flag.String("config", "", "YAML config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadWithFile(*configFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, cleanup := config.SetupLogger(cfg.Log.File, cfg.Log.SlogLevel())
	defer cleanup()
	slog.SetDefault(logger)

	logger.Info("docqa-server starting",
		"addr", cfg.Server.Addr(),
		"llm", cfg.LLM.Provider,
		"index", cfg.Index.Provider,
	)

	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(initCtx, *cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			logger.Error("failed to close index", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.ServeHTTP(ctx, a); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
