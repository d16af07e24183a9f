package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
)

const (
	// DefaultWhisperModel is the transcription model used when none is set.
	DefaultWhisperModel = "whisper-1"

	// OpenAIBaseURL is the default transcription API root.
	OpenAIBaseURL = "https://api.openai.com/v1"
)

// WhisperTranscriber calls an OpenAI-compatible /audio/transcriptions API.
type WhisperTranscriber struct {
	http  *resty.Client
	model string
}

var _ Transcriber = (*WhisperTranscriber)(nil)

// NewWhisperTranscriber creates a transcriber. Empty baseURL and model fall
// back to OpenAIBaseURL and DefaultWhisperModel.
func NewWhisperTranscriber(baseURL, apiKey, model string) (*WhisperTranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key required for transcription")
	}
	if baseURL == "" {
		baseURL = OpenAIBaseURL
	}
	if model == "" {
		model = DefaultWhisperModel
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(5 * time.Minute).
		SetAuthToken(apiKey)

	return &WhisperTranscriber{http: client, model: model}, nil
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads the audio and returns the transcript.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyInput
	}
	mtype := mimetype.Detect(data)
	if filename == "" {
		filename = "audio" + mtype.Extension()
	}

	var out transcriptionResponse
	resp, err := w.http.R().
		SetContext(ctx).
		SetMultipartField("file", filename, mtype.String(), bytes.NewReader(data)).
		SetMultipartFormData(map[string]string{
			"model":           w.model,
			"response_format": "json",
		}).
		SetResult(&out).
		Post("/audio/transcriptions")
	if err != nil {
		return "", fmt.Errorf("send transcription request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("transcription API error (status %d): %s", resp.StatusCode(), resp.String())
	}
	return strings.TrimSpace(out.Text), nil
}
