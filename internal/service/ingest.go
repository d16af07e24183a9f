// Package service composes extraction, chunking, indexing, the agent and the
// evaluator into the operations the HTTP, MCP and CLI surfaces call.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/raphaelgruber/docqa/internal/extract"
	"github.com/raphaelgruber/docqa/internal/models"
	"github.com/raphaelgruber/docqa/internal/parser"
)

var (
	// ErrNothingToIngest indicates the source produced no usable text.
	// Nothing is written to the index.
	ErrNothingToIngest = errors.New("no text to ingest")

	// ErrUnsupportedType indicates a file that is neither PDF, audio nor text.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrTranscriptionUnavailable indicates audio ingestion without a
	// configured transcriber.
	ErrTranscriptionUnavailable = errors.New("audio transcription not configured")
)

// Source kinds recorded in passage metadata.
const (
	KindPDF   = "pdf"
	KindAudio = "audio"
	KindText  = "text"
)

// DefaultIngestTimeout bounds a single extraction, transcription or index
// write when no timeout is configured.
const DefaultIngestTimeout = 5 * time.Minute

// Indexer is the write side of the passage index.
type Indexer interface {
	Add(ctx context.Context, passages []models.Passage) error
}

// IngestService turns uploads into indexed passages.
type IngestService struct {
	index       Indexer
	pdf         extract.TextExtractor
	transcriber extract.Transcriber
	policy      parser.ChunkPolicy
	timeout     time.Duration
	logger      *slog.Logger
}

// NewIngestService creates a new ingest service. transcriber may be nil,
// in which case audio ingestion fails with ErrTranscriptionUnavailable.
// timeout bounds each external call; <= 0 means DefaultIngestTimeout.
func NewIngestService(index Indexer, pdf extract.TextExtractor, transcriber extract.Transcriber, policy parser.ChunkPolicy, timeout time.Duration, logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultIngestTimeout
	}
	if pdf == nil {
		pdf = extract.PDFExtractor{}
	}
	return &IngestService{
		index:       index,
		pdf:         pdf,
		transcriber: transcriber,
		policy:      policy,
		timeout:     timeout,
		logger:      logger,
	}
}

// IngestText chunks text and adds the passages to the index. It returns the
// number of passages written.
func (s *IngestService) IngestText(ctx context.Context, text, kind, filename string) (int, error) {
	passages := parser.Split(text, s.policy)
	if len(passages) == 0 {
		return 0, ErrNothingToIngest
	}
	for i := range passages {
		passages[i].Metadata[models.MetaSource] = kind
		if filename != "" {
			passages[i].Metadata[models.MetaFilename] = filename
		}
	}

	addCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.index.Add(addCtx, passages); err != nil {
		return 0, fmt.Errorf("index passages: %w", err)
	}
	s.logger.Info("ingested document", "kind", kind, "filename", filename, "passages", len(passages))
	return len(passages), nil
}

// IngestPDF extracts the PDF's text layer and ingests it.
func (s *IngestService) IngestPDF(ctx context.Context, data []byte, filename string) (int, error) {
	extractCtx, cancel := context.WithTimeout(ctx, s.timeout)
	text, err := s.pdf.Extract(extractCtx, data)
	cancel()
	if err != nil {
		if errors.Is(err, extract.ErrEmptyInput) {
			return 0, ErrNothingToIngest
		}
		return 0, fmt.Errorf("extract pdf: %w", err)
	}
	return s.IngestText(ctx, text, KindPDF, filename)
}

// IngestAudio transcribes the recording and ingests the transcript.
func (s *IngestService) IngestAudio(ctx context.Context, data []byte, filename string) (int, error) {
	if s.transcriber == nil {
		return 0, ErrTranscriptionUnavailable
	}
	transcribeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	text, err := s.transcriber.Transcribe(transcribeCtx, data, filename)
	cancel()
	if err != nil {
		if errors.Is(err, extract.ErrEmptyInput) {
			return 0, ErrNothingToIngest
		}
		return 0, fmt.Errorf("transcribe audio: %w", err)
	}
	return s.IngestText(ctx, text, KindAudio, filename)
}

// DetectKind classifies file content as pdf, audio or text.
func DetectKind(data []byte) (string, error) {
	mtype := mimetype.Detect(data)
	switch {
	case mtype.Is("application/pdf"):
		return KindPDF, nil
	case strings.HasPrefix(mtype.String(), "audio/"), mtype.Is("video/mp4"), mtype.Is("video/webm"):
		// Whisper accepts mp4 and webm containers.
		return KindAudio, nil
	case strings.HasPrefix(mtype.String(), "text/"):
		return KindText, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
}

// IngestData routes data by detected kind.
func (s *IngestService) IngestData(ctx context.Context, data []byte, filename string) (int, error) {
	kind, err := DetectKind(data)
	if err != nil {
		return 0, err
	}
	switch kind {
	case KindPDF:
		return s.IngestPDF(ctx, data, filename)
	case KindAudio:
		return s.IngestAudio(ctx, data, filename)
	default:
		return s.IngestText(ctx, string(data), KindText, filename)
	}
}

// IngestFile reads a file from disk and ingests it.
func (s *IngestService) IngestFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read file: %w", err)
	}
	return s.IngestData(ctx, data, filepath.Base(path))
}

// IngestOptions configures batch ingestion.
type IngestOptions struct {
	// Recursive descends into subdirectories.
	Recursive bool
	// Concurrency sets number of parallel workers (default 4)
	Concurrency int
}

// IngestResult summarizes a batch ingestion.
type IngestResult struct {
	FilesProcessed int      `json:"filesProcessed"`
	FilesIngested  int      `json:"filesIngested"`
	PassagesAdded  int      `json:"passagesAdded"`
	Errors         []string `json:"errors,omitempty"`
}

var ingestibleExt = map[string]bool{
	".pdf": true, ".txt": true, ".md": true, ".markdown": true,
	".mp3": true, ".mp4": true, ".mpeg": true, ".mpga": true, ".m4a": true,
	".wav": true, ".webm": true, ".ogg": true, ".flac": true,
}

// CollectFiles expands paths: files are kept as given, directories are
// walked for ingestible extensions.
func CollectFiles(paths []string, recursive bool) ([]string, error) {
	var files []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}
		walkFn := func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && !recursive && path != root {
				return filepath.SkipDir
			}
			if !d.IsDir() && ingestibleExt[strings.ToLower(filepath.Ext(path))] {
				files = append(files, path)
			}
			return nil
		}
		if err := filepath.WalkDir(root, walkFn); err != nil {
			return nil, fmt.Errorf("scan directory: %w", err)
		}
	}
	return files, nil
}

// IngestFiles ingests files and directories with a worker pool. Per-file
// failures are collected in the result rather than aborting the batch.
func (s *IngestService) IngestFiles(ctx context.Context, paths []string, opts IngestOptions) (*IngestResult, error) {
	files, err := CollectFiles(paths, opts.Recursive)
	if err != nil {
		return nil, err
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	s.logger.Info("starting file processing", "files", len(files), "concurrency", concurrency)

	var (
		filesProcessed atomic.Int32
		filesIngested  atomic.Int32
		passagesAdded  atomic.Int32
		errorsMu       sync.Mutex
		errs           []string
	)

	fileChan := make(chan string, len(files))
	var wg sync.WaitGroup

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for file := range fileChan {
				if ctx.Err() != nil {
					return
				}

				processed := filesProcessed.Add(1)
				s.logger.Info("processing file", "worker", workerID, "file", filepath.Base(file), "progress", fmt.Sprintf("%d/%d", processed, len(files)))

				n, err := s.IngestFile(ctx, file)
				if err != nil {
					errorsMu.Lock()
					errs = append(errs, fmt.Sprintf("%s: %v", file, err))
					errorsMu.Unlock()
					continue
				}
				filesIngested.Add(1)
				passagesAdded.Add(int32(n))
			}
		}(i)
	}

	for _, file := range files {
		fileChan <- file
	}
	close(fileChan)
	wg.Wait()

	s.logger.Info("file processing complete", "files", filesIngested.Load(), "passages", passagesAdded.Load(), "errors", len(errs))

	return &IngestResult{
		FilesProcessed: int(filesProcessed.Load()),
		FilesIngested:  int(filesIngested.Load()),
		PassagesAdded:  int(passagesAdded.Load()),
		Errors:         errs,
	}, ctx.Err()
}
