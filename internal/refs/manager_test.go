package refs

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"paperflow/internal/models"
)

// stubFetcher maps reference titles to a canned outcome.
type stubFetcher struct {
	outcomes map[string]models.DownloadTask
	inflight atomic.Int64
	peak     atomic.Int64
}

func (f *stubFetcher) ResolveAndFetch(ctx context.Context, ref models.ReferenceRecord, dir string) models.DownloadTask {
	cur := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		peak := f.peak.Load()
		if cur <= peak || f.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	task, ok := f.outcomes[ref.Title]
	if !ok {
		task = models.DownloadTask{Status: models.StatusFailed, LastError: "no download source found"}
	}
	task.TaskID = uuid.NewString()
	task.Reference = ref
	if task.Status == models.StatusSucceeded && task.ResolvedPath == "" {
		task.ResolvedPath = filepath.Join(dir, FilenameFor(ref))
	}
	return task
}

func consentLogAt(t *testing.T) *ConsentLog {
	t.Helper()
	return NewConsentLog(filepath.Join(t.TempDir(), "consent.jsonl"))
}

func TestDownloadSelectedSummaryScenario(t *testing.T) {
	// Three arXiv hits, one PubMed hit, one reference no source can serve.
	fetcher := &stubFetcher{outcomes: map[string]models.DownloadTask{
		"A": {Status: models.StatusSucceeded, Source: "arxiv"},
		"B": {Status: models.StatusSucceeded, Source: "arxiv"},
		"C": {Status: models.StatusSucceeded, Source: "arxiv"},
		"D": {Status: models.StatusSucceeded, Source: "pubmed"},
	}}
	var reingested atomic.Int64
	m := NewManager(fetcher, consentLogAt(t), func(ctx context.Context, path string) error {
		reingested.Add(1)
		return nil
	}, nil)

	records := []models.ReferenceRecord{
		{Title: "A"}, {Title: "B"}, {Title: "C"}, {Title: "D"}, {Title: "E"},
	}
	tasks, summary, err := m.DownloadSelected(context.Background(), records, models.DownloadConfig{
		DownloadDir:   t.TempDir(),
		MaxConcurrent: 2,
	})
	require.NoError(t, err)
	require.Len(t, tasks, 5)
	require.Equal(t, 4, summary.Succeeded)
	require.Equal(t, 1, summary.Failed)
	require.Equal(t, 4, summary.Reingested)
	require.Equal(t, int64(4), reingested.Load())
	require.LessOrEqual(t, fetcher.peak.Load(), int64(2))

	var failed *models.DownloadTask
	for i := range tasks {
		if tasks[i].Status == models.StatusFailed {
			failed = &tasks[i]
		}
	}
	require.NotNil(t, failed)
	require.Equal(t, "E", failed.Reference.Title)
	require.NotEmpty(t, failed.LastError)
}

func TestDownloadSelectedFailedReingestDoesNotCountOrBlock(t *testing.T) {
	fetcher := &stubFetcher{outcomes: map[string]models.DownloadTask{
		"A": {Status: models.StatusSucceeded, Source: "arxiv"},
		"B": {Status: models.StatusSucceeded, Source: "arxiv"},
	}}
	m := NewManager(fetcher, consentLogAt(t), func(ctx context.Context, path string) error {
		return os.ErrNotExist
	}, nil)

	_, summary, err := m.DownloadSelected(context.Background(),
		[]models.ReferenceRecord{{Title: "A"}, {Title: "B"}},
		models.DownloadConfig{DownloadDir: t.TempDir(), MaxConcurrent: 1})
	require.NoError(t, err)
	require.Equal(t, 2, summary.Succeeded)
	require.Zero(t, summary.Reingested)
}

func TestDownloadSelectedCanceledContextMarksTasksFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewManager(&stubFetcher{}, consentLogAt(t), nil, nil)

	tasks, summary, err := m.DownloadSelected(ctx,
		[]models.ReferenceRecord{{Title: "A"}, {Title: "B"}},
		models.DownloadConfig{DownloadDir: t.TempDir(), MaxConcurrent: 1})
	require.NoError(t, err)
	require.Equal(t, 2, summary.Failed)
	for _, task := range tasks {
		require.Equal(t, models.StatusFailed, task.Status)
	}
}

func TestRequestConsentWritesAuditRecord(t *testing.T) {
	log := consentLogAt(t)
	m := NewManager(&stubFetcher{}, log, nil, nil)

	record, err := m.RequestConsent("paper.pdf", 12, 5, "/tmp/downloads", true)
	require.NoError(t, err)
	require.NotEmpty(t, record.SessionID)
	require.True(t, record.ConsentGiven)

	history, err := m.ConsentHistory(10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "paper.pdf", history[0].PDFFilename)
	require.Equal(t, 12, history[0].TotalReferences)
	require.Equal(t, 5, history[0].SelectedReferences)
}

func TestAddManualReferenceFullConfidence(t *testing.T) {
	m := NewManager(&stubFetcher{}, consentLogAt(t), nil, nil)
	ref := m.AddManualReference("Doe, J.", "Manual Entry Paper", "Nature", "2022", "10.1/abc")
	require.Equal(t, 1.0, ref.Confidence)
	require.Equal(t, "Manual Entry Paper", ref.Title)
	require.Equal(t, "10.1/abc", ref.DOI)
}
