package models

import "time"

// Chunk is the unit of embedding and retrieval: a bounded window of one
// page's extracted text plus its provenance. Immutable once created.
type Chunk struct {
	Text       string    `json:"text"`
	Filename   string    `json:"filename"`
	Page       int       `json:"page"`
	ChunkIndex int       `json:"chunk_index"`
	CreatedAt  time.Time `json:"created_at"`
}

// ScoredChunk is a search hit: chunk metadata plus L2 distance to the query
// vector. Smaller distance means a closer match.
type ScoredChunk struct {
	Chunk    Chunk   `json:"chunk"`
	Distance float64 `json:"distance"`
}

// SourceRef identifies where an answer's grounding context came from.
type SourceRef struct {
	Filename string `json:"filename"`
	Page     int    `json:"page"`
}

// FileOutcome records the result of ingesting one file in a directory run.
type FileOutcome struct {
	Filename string `json:"filename"`
	Pages    int    `json:"pages"`
	Chunks   int    `json:"chunks"`
	Skipped  int    `json:"skipped_pages"`
	Err      string `json:"error,omitempty"`
}

// IngestSummary aggregates a whole-directory ingestion run.
type IngestSummary struct {
	Files       int `json:"files"`
	FailedFiles int `json:"failed_files"`
	Chunks      int `json:"chunks"`
}

// ReferenceRecord is structured bibliographic data for a cited work,
// produced by the extractor or entered manually (confidence 1.0).
type ReferenceRecord struct {
	Authors    string  `json:"authors"`
	Title      string  `json:"title"`
	Journal    string  `json:"journal,omitempty"`
	Year       string  `json:"year,omitempty"`
	DOI        string  `json:"doi,omitempty"`
	Confidence float64 `json:"confidence"`
	SourcePDF  string  `json:"source_pdf,omitempty"`
	RawText    string  `json:"raw_text,omitempty"`
}

// ExtractionStats summarizes one extraction pass for user display.
type ExtractionStats struct {
	Total          int     `json:"total_references"`
	HighConfidence int     `json:"high_confidence"`
	MedConfidence  int     `json:"medium_confidence"`
	LowConfidence  int     `json:"low_confidence"`
	WithDOI        int     `json:"with_doi"`
	WithYear       int     `json:"with_year"`
	AvgConfidence  float64 `json:"avg_confidence"`
}

type DownloadStatus string

const (
	StatusInProgress DownloadStatus = "in_progress"
	StatusSucceeded  DownloadStatus = "succeeded"
	StatusFailed     DownloadStatus = "failed"
	// StatusSkipped means the (title, year) dedup key already had a file in
	// the download directory; no network fetch happened.
	StatusSkipped DownloadStatus = "skipped"
)

// DownloadTask tracks one reference through resolve-and-fetch.
type DownloadTask struct {
	TaskID       string          `json:"task_id"`
	Reference    ReferenceRecord `json:"reference"`
	Status       DownloadStatus  `json:"status"`
	Attempts     int             `json:"attempts"`
	LastError    string          `json:"last_error,omitempty"`
	ResolvedPath string          `json:"resolved_path,omitempty"`
	Source       string          `json:"source,omitempty"`
}

// DownloadSummary aggregates a download batch.
type DownloadSummary struct {
	Total      int `json:"total"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped_duplicate"`
	Reingested int `json:"reingested"`
}

// DownloadConfig bounds a download batch.
type DownloadConfig struct {
	DownloadDir   string `json:"download_dir"`
	MaxConcurrent int    `json:"max_concurrent"`
}

// ConsentRecord is one append-only audit log entry, written once per
// extraction-download cycle and never mutated.
type ConsentRecord struct {
	Timestamp          time.Time `json:"timestamp"`
	PDFFilename        string    `json:"pdf_filename"`
	TotalReferences    int       `json:"total_references"`
	SelectedReferences int       `json:"selected_references"`
	DownloadPath       string    `json:"download_path"`
	ConsentGiven       bool      `json:"consent_given"`
	SessionID          string    `json:"session_id"`
}
