package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	IndexDir      string `yaml:"index_dir"`
	IndexName     string `yaml:"index_name"`
	IndexBackend  string `yaml:"index_backend"` // flat | postgres
	PostgresURL   string `yaml:"postgres_url"`
	DownloadDir   string `yaml:"download_dir"`
	ConsentLog    string `yaml:"consent_log"`
	ChunkSize     int    `yaml:"chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap"`
	MaxPageChars  int    `yaml:"max_page_chars"`
	EmbedDim      int    `yaml:"embed_dim"`
	EmbedBatch    int    `yaml:"embed_batch"`
	TopK          int    `yaml:"top_k"`
	MaxDownloads  int    `yaml:"max_downloads"`
	RetryAttempts int    `yaml:"retry_attempts"`
	RetryBaseMS   int    `yaml:"retry_base_ms"`
	HTTPTimeoutS  int    `yaml:"http_timeout_s"`

	LLMProviders   string `yaml:"llm_providers"`
	EmbedProviders string `yaml:"embed_providers"`

	Debug bool `yaml:"debug"`
}

func defaults() Config {
	return Config{
		IndexDir:       "./vector_stores",
		IndexName:      "default_index",
		IndexBackend:   "flat",
		DownloadDir:    "./downloaded_references",
		ConsentLog:     "./logs/consent_log.jsonl",
		ChunkSize:      2000,
		ChunkOverlap:   200,
		MaxPageChars:   50000,
		EmbedDim:       768,
		EmbedBatch:     50,
		TopK:           3,
		MaxDownloads:   3,
		RetryAttempts:  3,
		RetryBaseMS:    1000,
		HTTPTimeoutS:   60,
		LLMProviders:   "ollama",
		EmbedProviders: "ollama",
	}
}

// Load resolves configuration in three layers: built-in defaults, then an
// optional YAML file (PAPERFLOW_CONFIG, default ./paperflow.yaml), then
// PAPERFLOW_* environment variables, strongest last.
func Load() (Config, error) {
	cfg := defaults()
	path := getenv("PAPERFLOW_CONFIG", "paperflow.yaml")
	if err := overlayFile(&cfg, path); err != nil {
		return Config{}, err
	}
	overlayEnv(&cfg)
	if cfg.ChunkOverlap <= 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return Config{}, fmt.Errorf("invalid chunking config: overlap=%d size=%d", cfg.ChunkOverlap, cfg.ChunkSize)
	}
	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func overlayEnv(cfg *Config) {
	setStr(&cfg.IndexDir, "PAPERFLOW_INDEX_DIR")
	setStr(&cfg.IndexName, "PAPERFLOW_INDEX_NAME")
	setStr(&cfg.IndexBackend, "PAPERFLOW_INDEX_BACKEND")
	setStr(&cfg.PostgresURL, "PAPERFLOW_POSTGRES_URL")
	setStr(&cfg.DownloadDir, "PAPERFLOW_DOWNLOAD_DIR")
	setStr(&cfg.ConsentLog, "PAPERFLOW_CONSENT_LOG")
	setInt(&cfg.ChunkSize, "PAPERFLOW_CHUNK_SIZE")
	setInt(&cfg.ChunkOverlap, "PAPERFLOW_CHUNK_OVERLAP")
	setInt(&cfg.MaxPageChars, "PAPERFLOW_MAX_PAGE_CHARS")
	setInt(&cfg.EmbedDim, "PAPERFLOW_EMBED_DIM")
	setInt(&cfg.EmbedBatch, "PAPERFLOW_EMBED_BATCH")
	setInt(&cfg.TopK, "PAPERFLOW_TOP_K")
	setInt(&cfg.MaxDownloads, "PAPERFLOW_MAX_DOWNLOADS")
	setInt(&cfg.RetryAttempts, "PAPERFLOW_RETRY_ATTEMPTS")
	setInt(&cfg.RetryBaseMS, "PAPERFLOW_RETRY_BASE_MS")
	setInt(&cfg.HTTPTimeoutS, "PAPERFLOW_HTTP_TIMEOUT_S")
	setStr(&cfg.LLMProviders, "PAPERFLOW_LLM_PROVIDERS")
	setStr(&cfg.EmbedProviders, "PAPERFLOW_EMBED_PROVIDERS")
	if os.Getenv("PAPERFLOW_DEBUG") != "" {
		cfg.Debug = true
	}
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func getenv(k, fallback string) string {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	return v
}
