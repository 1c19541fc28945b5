package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"paperflow/internal/config"
	"paperflow/internal/index"
	"paperflow/internal/ingest"
	"paperflow/internal/models"
	"paperflow/internal/providers"
	"paperflow/internal/query"
	"paperflow/internal/refs"
	"paperflow/internal/retry"
	"paperflow/internal/util"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Debug)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	switch os.Args[1] {
	case "build":
		runErr = runBuild(ctx, cfg, logger, os.Args[2:])
	case "ask":
		runErr = runAsk(ctx, cfg, logger, os.Args[2:])
	case "refs":
		runErr = runRefs(ctx, cfg, logger, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if runErr != nil {
		logger.Error("command failed", zap.Error(runErr))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: paperflow <command> [flags]

commands:
  build  -dir <pdf-dir>            ingest a directory of PDFs into the index
  ask    -q <question>             answer a question from the knowledge base
  refs   -pdf <file> [-download]   extract references, optionally download them`)
}

func newLogger(debug bool) *zap.Logger {
	var logger *zap.Logger
	var err error
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	return logger
}

func retryPolicy(cfg config.Config) retry.Policy {
	p := retry.DefaultPolicy()
	if cfg.RetryAttempts > 0 {
		p.MaxAttempts = cfg.RetryAttempts
	}
	if cfg.RetryBaseMS > 0 {
		p.InitialInterval = time.Duration(cfg.RetryBaseMS) * time.Millisecond
	}
	return p
}

func openStore(ctx context.Context, cfg config.Config) (index.Store, error) {
	switch cfg.IndexBackend {
	case "", "flat":
		return index.OpenFlatStore(cfg.IndexDir, cfg.IndexName)
	case "postgres":
		if cfg.PostgresURL == "" {
			return nil, fmt.Errorf("postgres backend selected but no postgres_url configured")
		}
		return index.OpenPGStore(ctx, cfg.PostgresURL, cfg.EmbedDim)
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.IndexBackend)
	}
}

func buildIndexManager(ctx context.Context, cfg config.Config, logger *zap.Logger) (*index.Manager, *providers.Manager, error) {
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	embedder := providers.NewEmbeddingClient(pm, cfg.EmbedBatch, cfg.EmbedDim, retryPolicy(cfg), logger)
	return index.NewManager(store, embedder, logger), pm, nil
}

func runBuild(ctx context.Context, cfg config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	dir := fs.String("dir", ".", "directory of PDFs to ingest")
	if err := fs.Parse(args); err != nil {
		return err
	}

	idx, _, err := buildIndexManager(ctx, cfg, logger)
	if err != nil {
		return err
	}
	ing := ingest.NewIngestor(cfg.ChunkSize, cfg.ChunkOverlap, cfg.MaxPageChars, logger)
	summary, outcomes, err := ing.IngestDir(ctx, *dir, idx)
	if err != nil {
		return err
	}
	for _, o := range outcomes {
		if o.Err != "" {
			fmt.Printf("  %-40s FAILED  %s\n", o.Filename, o.Err)
		} else {
			fmt.Printf("  %-40s %d pages, %d chunks\n", o.Filename, o.Pages, o.Chunks)
		}
	}
	fmt.Printf("ingested %d files (%d failed), %d chunks\n", summary.Files, summary.FailedFiles, summary.Chunks)
	return nil
}

func runAsk(ctx context.Context, cfg config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	question := fs.String("q", "", "question to answer")
	topK := fs.Int("k", cfg.TopK, "number of chunks to retrieve")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*question) == "" {
		return fmt.Errorf("ask: -q is required")
	}

	idx, pm, err := buildIndexManager(ctx, cfg, logger)
	if err != nil {
		return err
	}
	engine := query.NewEngine(idx, providers.NewGenerationClient(pm, logger), *topK, logger)
	answer, err := engine.Ask(ctx, *question)
	if err != nil {
		return err
	}
	fmt.Println(answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range answer.Sources {
			fmt.Printf("  %s, page %d\n", src.Filename, src.Page)
		}
	}
	return nil
}

func runRefs(ctx context.Context, cfg config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("refs", flag.ExitOnError)
	pdfPath := fs.String("pdf", "", "PDF to extract references from")
	download := fs.Bool("download", false, "download the extracted references")
	consent := fs.Bool("yes", false, "record consent and proceed without prompting")
	history := fs.Bool("history", false, "print the consent audit log and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	downloader := refs.NewDownloader(retryPolicy(cfg), time.Duration(cfg.HTTPTimeoutS)*time.Second, logger)
	consentLog := refs.NewConsentLog(cfg.ConsentLog)

	var manager *refs.Manager
	if *download {
		idx, _, err := buildIndexManager(ctx, cfg, logger)
		if err != nil {
			return err
		}
		ing := ingest.NewIngestor(cfg.ChunkSize, cfg.ChunkOverlap, cfg.MaxPageChars, logger)
		reingest := func(ctx context.Context, path string) error {
			_, err := ing.Ingest(ctx, path, idx)
			return err
		}
		manager = refs.NewManager(downloader, consentLog, reingest, logger)
	} else {
		manager = refs.NewManager(downloader, consentLog, nil, logger)
	}

	if *history {
		records, err := manager.ConsentHistory(100)
		if err != nil {
			return err
		}
		for _, r := range records {
			fmt.Printf("%s  %-30s consent=%t selected=%d/%d -> %s\n",
				r.Timestamp.Format(time.RFC3339), r.PDFFilename, r.ConsentGiven,
				r.SelectedReferences, r.TotalReferences, r.DownloadPath)
		}
		return nil
	}

	if *pdfPath == "" {
		return fmt.Errorf("refs: -pdf is required")
	}

	records, err := manager.Process(ctx, *pdfPath)
	if err != nil {
		return err
	}
	stats := manager.Stats(records)
	fmt.Printf("extracted %d references (%d high, %d medium, %d low confidence; %d with DOI)\n",
		stats.Total, stats.HighConfidence, stats.MedConfidence, stats.LowConfidence, stats.WithDOI)
	for i, r := range records {
		fmt.Printf("  [%d] %.2f  %s (%s). %s\n", i, r.Confidence, r.Authors, r.Year, util.DisplaySnippet(r.Title, 80))
	}
	if len(records) == 0 || !*download {
		return nil
	}

	pdfName := filepath.Base(*pdfPath)
	if !*consent {
		fmt.Println("pass -yes to consent to downloading these references")
		if _, err := manager.RequestConsent(pdfName, len(records), 0, cfg.DownloadDir, false); err != nil {
			return err
		}
		return nil
	}
	if _, err := manager.RequestConsent(pdfName, len(records), len(records), cfg.DownloadDir, true); err != nil {
		return err
	}

	tasks, summary, err := manager.DownloadSelected(ctx, records, models.DownloadConfig{
		DownloadDir:   cfg.DownloadDir,
		MaxConcurrent: cfg.MaxDownloads,
	})
	if err != nil {
		return err
	}
	for _, task := range tasks {
		switch task.Status {
		case models.StatusSucceeded:
			fmt.Printf("  ok      %-50s via %s\n", util.DisplaySnippet(task.Reference.Title, 50), task.Source)
		case models.StatusSkipped:
			fmt.Printf("  cached  %s\n", util.DisplaySnippet(task.Reference.Title, 50))
		default:
			fmt.Printf("  failed  %-50s %s\n", util.DisplaySnippet(task.Reference.Title, 50), task.LastError)
		}
	}
	fmt.Printf("downloads: %d succeeded, %d failed, %d cached, %d re-ingested\n",
		summary.Succeeded, summary.Failed, summary.Skipped, summary.Reingested)
	return nil
}
