package refs

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"paperflow/internal/ingest"
	"paperflow/internal/models"
	"paperflow/internal/util"
)

// Fetcher resolves and downloads one reference. Satisfied by Downloader.
type Fetcher interface {
	ResolveAndFetch(ctx context.Context, ref models.ReferenceRecord, downloadDir string) models.DownloadTask
}

// Reingest feeds a downloaded file back into the knowledge base so it
// becomes queryable.
type Reingest func(ctx context.Context, path string) error

// Manager orchestrates the extraction, consent, download, re-ingest cycle.
type Manager struct {
	extractor *Extractor
	fetcher   Fetcher
	consent   *ConsentLog
	reingest  Reingest
	logger    *zap.Logger
}

func NewManager(fetcher Fetcher, consent *ConsentLog, reingest Reingest, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		extractor: NewExtractor(),
		fetcher:   fetcher,
		consent:   consent,
		reingest:  reingest,
		logger:    logger,
	}
}

// Process extracts references from one PDF. A document without a reference
// section yields an empty list, not an error.
func (m *Manager) Process(ctx context.Context, pdfPath string) ([]models.ReferenceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pages, _, err := ingest.ExtractPages(pdfPath, 0, m.logger)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}
	section := m.extractor.FindReferenceSection(texts)
	if section == "" {
		m.logger.Warn("no reference section found", zap.String("file", pdfPath))
		return nil, nil
	}
	records := m.extractor.Extract(section)
	filename := filepath.Base(pdfPath)
	for i := range records {
		records[i].SourcePDF = filename
	}
	m.logger.Info("extracted references",
		zap.String("file", filename),
		zap.Int("count", len(records)))
	return records, nil
}

// Stats summarizes extracted references for display.
func (m *Manager) Stats(records []models.ReferenceRecord) models.ExtractionStats {
	return m.extractor.Stats(records)
}

// AddManualReference builds a user-entered record. Manual entry is trusted,
// so confidence is 1.0.
func (m *Manager) AddManualReference(authors, title, journal, year, doi string) models.ReferenceRecord {
	return models.ReferenceRecord{
		Authors:    authors,
		Title:      title,
		Journal:    journal,
		Year:       year,
		DOI:        doi,
		Confidence: 1.0,
		RawText:    title,
	}
}

// RequestConsent captures one consent decision in the audit log and returns
// the record. No download happens here.
func (m *Manager) RequestConsent(pdfFilename string, total, selected int, downloadPath string, consentGiven bool) (models.ConsentRecord, error) {
	record := models.ConsentRecord{
		Timestamp:          time.Now().UTC(),
		PDFFilename:        pdfFilename,
		TotalReferences:    total,
		SelectedReferences: selected,
		DownloadPath:       downloadPath,
		ConsentGiven:       consentGiven,
		SessionID:          uuid.NewString(),
	}
	if err := m.consent.Append(record); err != nil {
		return models.ConsentRecord{}, err
	}
	return record, nil
}

// ConsentHistory returns past consent decisions for audit display.
func (m *Manager) ConsentHistory(limit int) ([]models.ConsentRecord, error) {
	return m.consent.History(limit)
}

// DownloadSelected runs the selected references through the fetcher under a
// bounded worker pool, then re-ingests every file that arrived. Canceling
// the context lets in-flight tasks finish or time out; queued tasks are
// marked failed without starting. Failed downloads never block re-ingestion
// of the ones that succeeded.
func (m *Manager) DownloadSelected(ctx context.Context, records []models.ReferenceRecord, cfg models.DownloadConfig) ([]models.DownloadTask, models.DownloadSummary, error) {
	if err := util.EnsureDir(cfg.DownloadDir); err != nil {
		return nil, models.DownloadSummary{}, err
	}
	limit := cfg.MaxConcurrent
	if limit <= 0 {
		limit = 3
	}

	tasks := make([]models.DownloadTask, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, record := range records {
		i, record := i, record
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				tasks[i] = models.DownloadTask{
					TaskID:    uuid.NewString(),
					Reference: record,
					Status:    models.StatusFailed,
					LastError: "canceled before start",
				}
				return nil
			}
			tasks[i] = m.fetcher.ResolveAndFetch(gctx, record, cfg.DownloadDir)
			return nil
		})
	}
	_ = g.Wait()

	summary := models.DownloadSummary{Total: len(tasks)}
	for i := range tasks {
		switch tasks[i].Status {
		case models.StatusSucceeded:
			summary.Succeeded++
			if m.reingest != nil {
				if err := m.reingest(ctx, tasks[i].ResolvedPath); err != nil {
					m.logger.Warn("re-ingestion failed",
						zap.String("path", tasks[i].ResolvedPath),
						zap.Error(err))
					continue
				}
				summary.Reingested++
			}
		case models.StatusSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}
	m.logger.Info("download batch finished",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("reingested", summary.Reingested))
	return tasks, summary, nil
}
