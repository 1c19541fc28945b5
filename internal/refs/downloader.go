package refs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"paperflow/internal/models"
	"paperflow/internal/providers"
	"paperflow/internal/retry"
	"paperflow/internal/util"
)

var filenameCleanRe = regexp.MustCompile(`[^\w\s-]`)
var filenameSpaceRe = regexp.MustCompile(`[-\s]+`)

// Downloader resolves one reference against the configured sources in
// priority order and fetches the first hit. Misses move on to the next
// source; a rate-limited source gets a cooldown instead of an immediate
// retry.
type Downloader struct {
	sources  []Source
	client   *http.Client
	policy   retry.Policy
	cooldown time.Duration
	logger   *zap.Logger
}

func NewDownloader(policy retry.Policy, timeout time.Duration, logger *zap.Logger) *Downloader {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := &http.Client{Timeout: timeout}
	return &Downloader{
		sources: []Source{
			newDOISource(client),
			newArxivSource(client),
			newPubmedSource(client),
			newScholarSource(client),
		},
		client:   client,
		policy:   policy,
		cooldown: policy.MaxInterval,
		logger:   logger,
	}
}

// NewDownloaderWithSources is for tests and callers that bring their own
// source chain.
func NewDownloaderWithSources(sources []Source, client *http.Client, policy retry.Policy, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Downloader{sources: sources, client: client, policy: policy, cooldown: policy.MaxInterval, logger: logger}
}

// FilenameFor builds the dedup key for a reference: lowercased sanitized
// title truncated to 50 characters, plus the year.
func FilenameFor(ref models.ReferenceRecord) string {
	title := filenameCleanRe.ReplaceAllString(ref.Title, "")
	title = filenameSpaceRe.ReplaceAllString(strings.TrimSpace(title), "_")
	title = strings.ToLower(title)
	if len(title) > 50 {
		title = title[:50]
	}
	year := ref.Year
	if year == "" {
		year = "unknown"
	}
	return fmt.Sprintf("%s_%s.pdf", title, year)
}

// ResolveAndFetch runs one reference through dedup, source resolution, and
// fetch. It always returns a task in a terminal state; errors are recorded
// on the task, not returned.
func (d *Downloader) ResolveAndFetch(ctx context.Context, ref models.ReferenceRecord, downloadDir string) models.DownloadTask {
	task := models.DownloadTask{
		TaskID:    uuid.NewString(),
		Reference: ref,
		Status:    models.StatusInProgress,
	}

	targetPath := util.SafeJoin(downloadDir, FilenameFor(ref))
	if _, err := os.Stat(targetPath); err == nil {
		task.Status = models.StatusSkipped
		task.ResolvedPath = targetPath
		return task
	}

	lookup := Lookup{Title: ref.Title, Authors: ref.Authors, Year: ref.Year, DOI: ref.DOI}
	var lastErr error
	for _, source := range d.orderedSources(ref) {
		if err := ctx.Err(); err != nil {
			task.Status = models.StatusFailed
			task.LastError = err.Error()
			return task
		}
		var fileURL string
		err := d.policy.Do(ctx, func(ctx context.Context) error {
			task.Attempts++
			resolved, resolveErr := source.Resolve(ctx, lookup)
			if resolveErr != nil {
				return resolveErr
			}
			fileURL = resolved
			return nil
		}, func(err error) bool {
			// Misses and rate limits move to the next source; only
			// transient network errors retry the same one.
			return providers.ClassifyError(err) == providers.ErrorTransient
		})
		if err != nil {
			lastErr = err
			if providers.ClassifyError(err) == providers.ErrorRate {
				d.logger.Warn("source rate limited, cooling down",
					zap.String("source", source.Name()),
					zap.Duration("cooldown", d.cooldown))
				d.sleep(ctx, d.cooldown)
			}
			continue
		}
		path, err := d.fetchPDF(ctx, fileURL, targetPath)
		if err != nil {
			lastErr = err
			d.logger.Warn("fetch failed",
				zap.String("source", source.Name()),
				zap.String("url", fileURL),
				zap.Error(err))
			continue
		}
		task.Status = models.StatusSucceeded
		task.ResolvedPath = path
		task.Source = source.Name()
		return task
	}

	task.Status = models.StatusFailed
	if lastErr == nil {
		lastErr = util.ErrReferenceResolution
	}
	task.LastError = lastErr.Error()
	return task
}

// orderedSources puts the DOI resolver first only when the reference
// actually carries a DOI.
func (d *Downloader) orderedSources(ref models.ReferenceRecord) []Source {
	if ref.DOI != "" {
		return d.sources
	}
	out := make([]Source, 0, len(d.sources))
	for _, s := range d.sources {
		if s.Name() != "doi" {
			out = append(out, s)
		}
	}
	return out
}

func (d *Downloader) fetchPDF(ctx context.Context, fileURL, targetPath string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "paperflow/1.0")
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", fileURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s: http %d", fileURL, resp.StatusCode)
	}
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "pdf") && !strings.HasSuffix(fileURL, ".pdf") {
		return "", fmt.Errorf("fetch %s: not a PDF (%s)", fileURL, contentType)
	}

	if err := util.EnsureDir(filepath.Dir(targetPath)); err != nil {
		return "", err
	}
	tmp := targetPath + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, targetPath); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return targetPath, nil
}

func (d *Downloader) sleep(ctx context.Context, dur time.Duration) {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
