// Package extract turns uploaded PDF and audio bytes into plain text.
package extract

import (
	"context"
	"errors"
)

// ErrEmptyInput indicates there were no bytes to extract from.
var ErrEmptyInput = errors.New("empty input")

// TextExtractor converts a PDF into text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// Transcriber converts audio into text. filename is a hint for the
// upstream service.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, filename string) (string, error)
}
