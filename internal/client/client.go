// Package client provides an HTTP client for a running docqa-server.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/raphaelgruber/docqa/internal/metrics"
	"github.com/raphaelgruber/docqa/internal/models"
)

// DefaultURL is used when neither an explicit URL nor DOCQA_SERVER_URL is set.
const DefaultURL = "http://localhost:5175"

// Client talks to the docqa HTTP API.
type Client struct {
	http *resty.Client
}

// New creates a client. If baseURL is empty, uses DOCQA_SERVER_URL or
// DefaultURL. Timeout can be configured via DOCQA_CLIENT_TIMEOUT (default 5m).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("DOCQA_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = DefaultURL
	}

	timeout := 5 * time.Minute
	if t := os.Getenv("DOCQA_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout),
	}
}

// ChatResponse mirrors the server's /chat response.
type ChatResponse struct {
	Answer     string             `json:"answer"`
	Reasoning  []TraceStep        `json:"reasoning"`
	ToolsUsed  []string           `json:"toolsUsed"`
	Source     models.Source      `json:"source"`
	Evaluation *models.Evaluation `json:"evaluation,omitempty"`
}

// TraceStep is one entry of the reasoning trace.
type TraceStep struct {
	Action string         `json:"action"`
	Input  map[string]any `json:"input"`
	Output map[string]any `json:"output"`
}

// UploadResponse mirrors the upload routes' success body.
type UploadResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Passages int    `json:"passages"`
}

// Health mirrors GET /health.
type Health struct {
	Status   string `json:"status"`
	Passages int    `json:"passages"`
}

type errorBody struct {
	Error string `json:"error"`
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error (status %d): %s", e.Status, e.Message)
}

// Chat sends a question to POST /chat.
func (c *Client) Chat(ctx context.Context, message string) (*ChatResponse, error) {
	var out ChatResponse
	var fail errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"message": message}).
		SetResult(&out).
		SetError(&fail).
		Post("/chat")
	if err := check(resp, err, fail); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadPDF sends a PDF to POST /upload-pdf.
func (c *Client) UploadPDF(ctx context.Context, data []byte, filename string) (*UploadResponse, error) {
	return c.upload(ctx, "/upload-pdf", "pdf", "application/pdf", data, filename)
}

// UploadAudio sends a recording to POST /upload-audio.
func (c *Client) UploadAudio(ctx context.Context, data []byte, filename, contentType string) (*UploadResponse, error) {
	return c.upload(ctx, "/upload-audio", "audio", contentType, data, filename)
}

func (c *Client) upload(ctx context.Context, path, field, contentType string, data []byte, filename string) (*UploadResponse, error) {
	var out UploadResponse
	var fail errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartField(field, filename, contentType, bytes.NewReader(data)).
		SetResult(&out).
		SetError(&fail).
		Post(path)
	if err := check(resp, err, fail); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/health")
	if err := check(resp, err, errorBody{}); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats calls GET /stats.
func (c *Client) Stats(ctx context.Context) (*metrics.Snapshot, error) {
	var out metrics.Snapshot
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/stats")
	if err := check(resp, err, errorBody{}); err != nil {
		return nil, err
	}
	return &out, nil
}

func check(resp *resty.Response, err error, fail errorBody) error {
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	if resp.IsError() {
		msg := fail.Error
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return &APIError{Status: resp.StatusCode(), Message: msg}
	}
	return nil
}

// IsUnavailable reports whether err means the server refused the request
// because a feature is not configured.
func IsUnavailable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable
}
