package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/raphaelgruber/docqa/internal/client"
	"github.com/raphaelgruber/docqa/internal/service"
	"github.com/spf13/cobra"
)

var (
	ingestRecursive   bool
	ingestConcurrency int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Add PDFs, audio recordings or text files to the index",
	Long: `Add PDFs, audio recordings or text files to the index.

The file type is detected from its content. Directories are scanned for
.pdf, audio (.mp3, .wav, .m4a, ...) and text (.txt, .md) files. Audio is
transcribed first and requires a transcription API key.

Examples:
  docqa ingest report.pdf
  docqa ingest meeting.mp3 notes.md
  docqa ingest ./docs --recursive`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestRecursive, "recursive", "r", false, "descend into subdirectories")
	ingestCmd.Flags().IntVar(&ingestConcurrency, "concurrency", 4, "parallel workers")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if serverURL != "" {
		result, err := uploadRemote(ctx, client.New(serverURL), args)
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
		renderIngest(cmd.OutOrStdout(), result, defaultTheme)
		return nil
	}

	a, err := getApp(ctx)
	if err != nil {
		return err
	}

	result, err := a.Ingest.IngestFiles(ctx, args, service.IngestOptions{
		Recursive:   ingestRecursive,
		Concurrency: ingestConcurrency,
	})
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	renderIngest(cmd.OutOrStdout(), result, defaultTheme)
	if result.FilesIngested == 0 {
		return fmt.Errorf("nothing ingested")
	}
	return nil
}

// uploadRemote sends PDFs and recordings to a server, one at a time. The
// server has no plain-text route, so text files are reported as errors.
func uploadRemote(ctx context.Context, c *client.Client, paths []string) (*service.IngestResult, error) {
	files, err := service.CollectFiles(paths, ingestRecursive)
	if err != nil {
		return nil, err
	}

	result := &service.IngestResult{}
	for _, path := range files {
		result.FilesProcessed++
		n, err := uploadFile(ctx, c, path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		result.FilesIngested++
		result.PassagesAdded += n
	}
	return result, nil
}

func uploadFile(ctx context.Context, c *client.Client, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read file: %w", err)
	}
	kind, err := service.DetectKind(data)
	if err != nil {
		return 0, err
	}

	var resp *client.UploadResponse
	switch kind {
	case service.KindPDF:
		resp, err = c.UploadPDF(ctx, data, filepath.Base(path))
	case service.KindAudio:
		resp, err = c.UploadAudio(ctx, data, filepath.Base(path), mimetype.Detect(data).String())
		if client.IsUnavailable(err) {
			return 0, fmt.Errorf("server has no transcription configured")
		}
	default:
		return 0, fmt.Errorf("%w: text files can only be ingested locally", service.ErrUnsupportedType)
	}
	if err != nil {
		return 0, err
	}
	return resp.Passages, nil
}

func renderIngest(w io.Writer, result *service.IngestResult, theme Theme) {
	if result.FilesProcessed == 0 {
		fmt.Fprintln(w, theme.hintStyle().Render("No ingestible files found."))
		return
	}
	fmt.Fprintln(w, theme.successStyle().Render(fmt.Sprintf(
		"Ingested %d of %d files (%d passages)",
		result.FilesIngested, result.FilesProcessed, result.PassagesAdded)))
	for _, e := range result.Errors {
		fmt.Fprintf(w, "%s %s\n", theme.errorStyle().Render("✗"), e)
	}
}
