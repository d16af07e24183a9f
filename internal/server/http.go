package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/raphaelgruber/docqa/internal/agent"
	"github.com/raphaelgruber/docqa/internal/config"
	"github.com/raphaelgruber/docqa/internal/metrics"
	"github.com/raphaelgruber/docqa/internal/service"
)

// Ingester adds uploaded documents to the index.
type Ingester interface {
	IngestPDF(ctx context.Context, data []byte, filename string) (int, error)
	IngestAudio(ctx context.Context, data []byte, filename string) (int, error)
}

// Counter reports the index size.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// HTTPDeps are the services behind the HTTP routes.
type HTTPDeps struct {
	Ingest  Ingester
	Chat    Chatter
	Index   Counter
	Metrics *metrics.Collector
}

// HTTPServer serves the chat and upload API.
type HTTPServer struct {
	echo   *echo.Echo
	deps   HTTPDeps
	cfg    config.ServerConfig
	logger *slog.Logger
}

// NewHTTP creates the HTTP server and registers routes.
func NewHTTP(deps HTTPDeps, cfg config.ServerConfig, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(RequestLogger(logger))
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	s := &HTTPServer{echo: e, deps: deps, cfg: cfg, logger: logger}
	s.registerRoutes()
	return s
}

func (s *HTTPServer) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/stats", s.handleStats)
	if s.deps.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}

	s.echo.POST("/chat", s.handleChat)
	s.echo.POST("/upload-pdf", s.handleUploadPDF)
	s.echo.POST("/upload-audio", s.handleUploadAudio)
}

// Handler exposes the router for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.echo
}

// Start listens on the configured address and blocks.
func (s *HTTPServer) Start() error {
	s.logger.Info("starting http server", "addr", s.cfg.Addr())
	err := s.echo.Start(s.cfg.Addr())
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// ChatRequest is the request body for POST /chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// UploadResponse is the response body for the upload routes.
type UploadResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Passages int    `json:"passages"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Passages int    `json:"passages"`
}

func (s *HTTPServer) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok", Passages: -1}
	if s.deps.Index != nil {
		n, err := s.deps.Index.Count(c.Request().Context())
		if err != nil {
			s.logger.Warn("index count failed", "error", err)
			return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Passages: -1})
		}
		resp.Passages = n
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Metrics.Snapshot())
}

func (s *HTTPServer) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
	}
	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Message is required"})
	}

	resp, err := s.deps.Chat.Chat(c.Request().Context(), req.Message, service.ChatOptions{})
	if err != nil {
		if errors.Is(err, agent.ErrEmptyQuestion) {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Message is required"})
		}
		s.logger.Error("chat failed", "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to process chat message"})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) handleUploadPDF(c echo.Context) error {
	return s.handleUpload(c, "pdf", "PDF", s.deps.Ingest.IngestPDF)
}

func (s *HTTPServer) handleUploadAudio(c echo.Context) error {
	return s.handleUpload(c, "audio", "Audio", s.deps.Ingest.IngestAudio)
}

type ingestFunc func(ctx context.Context, data []byte, filename string) (int, error)

// handleUpload reads the multipart field and hands its bytes to ingest.
func (s *HTTPServer) handleUpload(c echo.Context, field, label string, ingest ingestFunc) error {
	fh, err := c.FormFile(field)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("No %s file uploaded", field)})
	}
	data, err := readUpload(fh)
	if err != nil {
		s.logger.Warn("read upload failed", "field", field, "error", err)
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("Failed to read %s upload", field)})
	}

	n, err := ingest(c.Request().Context(), data, fh.Filename)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrNothingToIngest):
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: fmt.Sprintf("No text could be extracted from the %s", field)})
	case errors.Is(err, service.ErrTranscriptionUnavailable):
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Audio transcription is not configured"})
	default:
		s.logger.Error("upload failed", "field", field, "filename", fh.Filename, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: fmt.Sprintf("Failed to process %s", label)})
	}

	return c.JSON(http.StatusOK, UploadResponse{
		Status:   "success",
		Message:  label + " processed and added to knowledge base",
		Passages: n,
	})
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
