// Package ingest turns PDFs into sanitized, chunked text ready for
// embedding. Extraction is per page so chunk provenance keeps page numbers.
package ingest

import (
	"fmt"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"paperflow/internal/util"
)

// Page is one page's sanitized plain text.
type Page struct {
	Number int
	Text   string
}

// ExtractPages opens a PDF and extracts text page by page. Pages that fail
// to decode or come back empty are skipped and counted, not fatal. An
// unopenable file returns ErrDocumentUnreadable; a file with zero usable
// pages returns ErrNoExtractableText.
func ExtractPages(path string, maxPageChars int, logger *zap.Logger) ([]Page, int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: open %s: %v", util.ErrDocumentUnreadable, path, err)
	}
	defer f.Close()

	skipped := 0
	pages := make([]Page, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			skipped++
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			logger.Warn("skipping unreadable page",
				zap.String("file", path),
				zap.Int("page", i),
				zap.Error(err))
			skipped++
			continue
		}
		text = util.SanitizeText(text)
		if text == "" {
			skipped++
			continue
		}
		pages = append(pages, Page{Number: i, Text: truncateRunes(text, maxPageChars)})
	}
	if len(pages) == 0 {
		return nil, skipped, fmt.Errorf("%w: %s", util.ErrNoExtractableText, path)
	}
	return pages, skipped, nil
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
