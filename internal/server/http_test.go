package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/raphaelgruber/docqa/internal/agent"
	"github.com/raphaelgruber/docqa/internal/config"
	"github.com/raphaelgruber/docqa/internal/metrics"
	"github.com/raphaelgruber/docqa/internal/models"
	"github.com/raphaelgruber/docqa/internal/server"
	"github.com/raphaelgruber/docqa/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger creates a logger that writes to stderr for test visibility.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type fakeChat struct {
	resp *service.ChatResponse
	err  error
	got  string
}

func (f *fakeChat) Chat(_ context.Context, message string, _ service.ChatOptions) (*service.ChatResponse, error) {
	f.got = message
	return f.resp, f.err
}

type fakeIngest struct {
	n        int
	err      error
	data     []byte
	filename string
}

func (f *fakeIngest) IngestPDF(_ context.Context, data []byte, filename string) (int, error) {
	f.data, f.filename = data, filename
	return f.n, f.err
}

func (f *fakeIngest) IngestAudio(ctx context.Context, data []byte, filename string) (int, error) {
	return f.IngestPDF(ctx, data, filename)
}

type fakeCounter struct {
	n   int
	err error
}

func (f fakeCounter) Count(context.Context) (int, error) { return f.n, f.err }

func newTestServer(deps server.HTTPDeps) http.Handler {
	cfg := config.Default().Server
	return server.NewHTTP(deps, cfg, testLogger()).Handler()
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestChatRoute(t *testing.T) {
	eval := models.Evaluation{Relevance: 5, Clarity: 4, ToolEffectiveness: 5, Feedback: "ok"}
	tests := []struct {
		name       string
		body       string
		chat       *fakeChat
		wantStatus int
		wantKey    string
		wantValue  any
	}{
		{
			name: "answer",
			body: `{"message": "What is the capital of France?"}`,
			chat: &fakeChat{resp: &service.ChatResponse{
				Answer:     "Paris",
				ToolsUsed:  []string{"vector_search"},
				Source:     models.SourceDocuments,
				Evaluation: &eval,
			}},
			wantStatus: http.StatusOK,
			wantKey:    "source",
			wantValue:  "documents",
		},
		{
			name:       "missing message",
			body:       `{}`,
			chat:       &fakeChat{},
			wantStatus: http.StatusBadRequest,
			wantKey:    "error",
			wantValue:  "Message is required",
		},
		{
			name:       "malformed body",
			body:       `{"message":`,
			chat:       &fakeChat{},
			wantStatus: http.StatusBadRequest,
			wantKey:    "error",
			wantValue:  "Invalid request body",
		},
		{
			name:       "generation failure",
			body:       `{"message": "q"}`,
			chat:       &fakeChat{err: agent.ErrGeneration},
			wantStatus: http.StatusInternalServerError,
			wantKey:    "error",
			wantValue:  "Failed to process chat message",
		},
		{
			name:       "blank question",
			body:       `{"message": "   "}`,
			chat:       &fakeChat{err: agent.ErrEmptyQuestion},
			wantStatus: http.StatusBadRequest,
			wantKey:    "error",
			wantValue:  "Message is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(server.HTTPDeps{Chat: tt.chat, Ingest: &fakeIngest{}})

			req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantValue, decode(t, rec)[tt.wantKey])
		})
	}
}

func TestUploadRoutes(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		field       string
		ingest      *fakeIngest
		wantStatus  int
		wantMessage string
		wantError   string
	}{
		{
			name:        "pdf",
			path:        "/upload-pdf",
			field:       "pdf",
			ingest:      &fakeIngest{n: 4},
			wantStatus:  http.StatusOK,
			wantMessage: "PDF processed and added to knowledge base",
		},
		{
			name:        "audio",
			path:        "/upload-audio",
			field:       "audio",
			ingest:      &fakeIngest{n: 1},
			wantStatus:  http.StatusOK,
			wantMessage: "Audio processed and added to knowledge base",
		},
		{
			name:       "wrong field",
			path:       "/upload-pdf",
			field:      "file",
			ingest:     &fakeIngest{},
			wantStatus: http.StatusBadRequest,
			wantError:  "No pdf file uploaded",
		},
		{
			name:       "nothing extracted",
			path:       "/upload-pdf",
			field:      "pdf",
			ingest:     &fakeIngest{err: service.ErrNothingToIngest},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "No text could be extracted from the pdf",
		},
		{
			name:       "transcription disabled",
			path:       "/upload-audio",
			field:      "audio",
			ingest:     &fakeIngest{err: service.ErrTranscriptionUnavailable},
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "Audio transcription is not configured",
		},
		{
			name:       "backend failure",
			path:       "/upload-audio",
			field:      "audio",
			ingest:     &fakeIngest{err: errors.New("boom")},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to process Audio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(server.HTTPDeps{Chat: &fakeChat{}, Ingest: tt.ingest})

			body, contentType := multipartBody(t, tt.field, "upload.bin", []byte("payload"))
			req := httptest.NewRequest(http.MethodPost, tt.path, body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			got := decode(t, rec)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, got["error"])
				return
			}
			assert.Equal(t, "success", got["status"])
			assert.Equal(t, tt.wantMessage, got["message"])
			assert.Equal(t, []byte("payload"), tt.ingest.data)
			assert.Equal(t, "upload.bin", tt.ingest.filename)
		})
	}
}

func TestUploadBodyLimit(t *testing.T) {
	cfg := config.Default().Server
	cfg.BodyLimit = "1K"
	h := server.NewHTTP(server.HTTPDeps{Chat: &fakeChat{}, Ingest: &fakeIngest{}}, cfg, testLogger()).Handler()

	body, contentType := multipartBody(t, "audio", "big.mp3", bytes.Repeat([]byte("x"), 4096))
	req := httptest.NewRequest(http.MethodPost, "/upload-audio", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHealthAndStats(t *testing.T) {
	collector := metrics.NewCollector()
	collector.RecordAnswer(string(models.SourceDocuments))

	h := newTestServer(server.HTTPDeps{
		Chat:    &fakeChat{},
		Ingest:  &fakeIngest{},
		Index:   fakeCounter{n: 7},
		Metrics: collector,
	})

	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		got := decode(t, rec)
		assert.Equal(t, "ok", got["status"])
		assert.Equal(t, float64(7), got["passages"])
	})

	t.Run("stats", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, map[string]any{"documents": float64(1)}, decode(t, rec)["answers"])
	})

	t.Run("prometheus", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `docqa_answers_total{source="documents"} 1`)
	})

	t.Run("degraded", func(t *testing.T) {
		h := newTestServer(server.HTTPDeps{Chat: &fakeChat{}, Ingest: &fakeIngest{}, Index: fakeCounter{err: errors.New("down")}})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
