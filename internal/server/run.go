package server

import (
	"context"
	"time"

	"github.com/raphaelgruber/docqa/internal/app"
)

// ServeHTTP runs the HTTP API for a until ctx is canceled, then shuts down
// gracefully within the configured timeout.
func ServeHTTP(ctx context.Context, a *app.App) error {
	srv := NewHTTP(HTTPDeps{
		Ingest:  a.Ingest,
		Chat:    a.Query,
		Index:   a.Index,
		Metrics: a.Metrics,
	}, a.Config.Server, a.Logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := a.Config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ServeMCP runs the MCP server on stdio until the client disconnects or ctx
// is canceled.
func ServeMCP(ctx context.Context, a *app.App, version string) error {
	return NewMCP(version, a.ToolDependencies(), a.Query, a.Logger).Run(ctx)
}
