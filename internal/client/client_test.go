package client_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/raphaelgruber/docqa/internal/client"
	"github.com/raphaelgruber/docqa/internal/config"
	"github.com/raphaelgruber/docqa/internal/metrics"
	"github.com/raphaelgruber/docqa/internal/models"
	"github.com/raphaelgruber/docqa/internal/server"
	"github.com/raphaelgruber/docqa/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChat struct{}

func (stubChat) Chat(_ context.Context, message string, _ service.ChatOptions) (*service.ChatResponse, error) {
	eval := models.DefaultEvaluation()
	return &service.ChatResponse{
		Answer:     "echo: " + message,
		ToolsUsed:  []string{"vector_search"},
		Source:     models.SourceDocuments,
		Evaluation: &eval,
	}, nil
}

type stubIngest struct{ audioErr error }

func (stubIngest) IngestPDF(_ context.Context, data []byte, _ string) (int, error) {
	return len(data), nil
}

func (s stubIngest) IngestAudio(_ context.Context, data []byte, _ string) (int, error) {
	return 1, s.audioErr
}

type stubCount struct{}

func (stubCount) Count(context.Context) (int, error) { return 3, nil }

func newClient(t *testing.T, ingest stubIngest) *client.Client {
	t.Helper()
	h := server.NewHTTP(server.HTTPDeps{
		Chat:    stubChat{},
		Ingest:  ingest,
		Index:   stubCount{},
		Metrics: metrics.NewCollector(),
	}, config.Default().Server, nil).Handler()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return client.New(srv.URL)
}

func TestClient(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, stubIngest{})

	t.Run("chat", func(t *testing.T) {
		resp, err := c.Chat(ctx, "hello")
		require.NoError(t, err)
		assert.Equal(t, "echo: hello", resp.Answer)
		assert.Equal(t, models.SourceDocuments, resp.Source)
		require.NotNil(t, resp.Evaluation)
		assert.Equal(t, models.DefaultFeedback, resp.Evaluation.Feedback)
	})

	t.Run("chat validation error", func(t *testing.T) {
		_, err := c.Chat(ctx, "")
		var apiErr *client.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 400, apiErr.Status)
		assert.Equal(t, "Message is required", apiErr.Message)
	})

	t.Run("upload pdf", func(t *testing.T) {
		resp, err := c.UploadPDF(ctx, []byte("%PDF-1.4"), "a.pdf")
		require.NoError(t, err)
		assert.Equal(t, "success", resp.Status)
		assert.Equal(t, "PDF processed and added to knowledge base", resp.Message)
		assert.Equal(t, 8, resp.Passages)
	})

	t.Run("health and stats", func(t *testing.T) {
		h, err := c.Health(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, h.Passages)

		_, err = c.Stats(ctx)
		require.NoError(t, err)
	})
}

func TestClient_Unavailable(t *testing.T) {
	c := newClient(t, stubIngest{audioErr: service.ErrTranscriptionUnavailable})

	_, err := c.UploadAudio(context.Background(), []byte("ID3"), "a.mp3", "audio/mpeg")
	require.Error(t, err)
	assert.True(t, client.IsUnavailable(err))
}
