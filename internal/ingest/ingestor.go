package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"paperflow/internal/models"
	"paperflow/internal/util"
)

// ChunkSink receives finished chunks, typically the vector index.
type ChunkSink interface {
	Add(ctx context.Context, chunks []models.Chunk) error
}

// Ingestor drives PDF-to-chunk conversion with fixed window parameters.
type Ingestor struct {
	ChunkSize    int
	Overlap      int
	MaxPageChars int
	Logger       *zap.Logger
}

func NewIngestor(chunkSize, overlap, maxPageChars int, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{ChunkSize: chunkSize, Overlap: overlap, MaxPageChars: maxPageChars, Logger: logger}
}

// BuildChunks windows each page's text independently. ChunkIndex runs across
// the whole document in page order.
func (ing *Ingestor) BuildChunks(pages []Page, filename string) ([]models.Chunk, error) {
	now := time.Now().UTC()
	var chunks []models.Chunk
	for _, page := range pages {
		parts, err := util.ChunkText(page.Text, ing.ChunkSize, ing.Overlap)
		if err != nil {
			return nil, fmt.Errorf("chunk page %d of %s: %w", page.Number, filename, err)
		}
		for _, part := range parts {
			chunks = append(chunks, models.Chunk{
				Text:       part,
				Filename:   filename,
				Page:       page.Number,
				ChunkIndex: len(chunks),
				CreatedAt:  now,
			})
		}
	}
	return chunks, nil
}

// Ingest processes one PDF end to end: extract, chunk, hand to the sink.
func (ing *Ingestor) Ingest(ctx context.Context, path string, sink ChunkSink) (models.FileOutcome, error) {
	filename := filepath.Base(path)
	outcome := models.FileOutcome{Filename: filename}

	pages, skipped, err := ExtractPages(path, ing.MaxPageChars, ing.Logger)
	outcome.Skipped = skipped
	if err != nil {
		outcome.Err = err.Error()
		return outcome, err
	}
	outcome.Pages = len(pages)

	chunks, err := ing.BuildChunks(pages, filename)
	if err != nil {
		outcome.Err = err.Error()
		return outcome, err
	}
	if err := sink.Add(ctx, chunks); err != nil {
		outcome.Err = err.Error()
		return outcome, err
	}
	outcome.Chunks = len(chunks)
	ing.Logger.Info("ingested document",
		zap.String("file", filename),
		zap.Int("pages", outcome.Pages),
		zap.Int("skipped_pages", skipped),
		zap.Int("chunks", outcome.Chunks))
	return outcome, nil
}

// IngestDir processes every *.pdf in dir, in name order. Per-file failures
// are recorded and the batch continues; only an unreadable directory is
// fatal.
func (ing *Ingestor) IngestDir(ctx context.Context, dir string, sink ChunkSink) (models.IngestSummary, []models.FileOutcome, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return models.IngestSummary{}, nil, fmt.Errorf("read directory %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	var summary models.IngestSummary
	outcomes := make([]models.FileOutcome, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return summary, outcomes, err
		}
		outcome, err := ing.Ingest(ctx, path, sink)
		outcomes = append(outcomes, outcome)
		summary.Files++
		summary.Chunks += outcome.Chunks
		if err != nil {
			summary.FailedFiles++
			ing.Logger.Warn("document ingestion failed",
				zap.String("file", outcome.Filename),
				zap.Error(err))
		}
	}
	return summary, outcomes, nil
}
