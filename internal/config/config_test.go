package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PAPERFLOW_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 2000, cfg.ChunkSize)
	require.Equal(t, 200, cfg.ChunkOverlap)
	require.Equal(t, 768, cfg.EmbedDim)
	require.Equal(t, "flat", cfg.IndexBackend)
	require.Equal(t, "ollama", cfg.EmbedProviders)
}

func TestLoadFileThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "paperflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunk_size: 1000\ntop_k: 5\n"), 0o644))
	t.Setenv("PAPERFLOW_CONFIG", path)
	t.Setenv("PAPERFLOW_TOP_K", "7")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 1000, cfg.ChunkSize)
	// Environment beats the file.
	require.Equal(t, 7, cfg.TopK)
}

func TestLoadRejectsInvalidChunking(t *testing.T) {
	t.Setenv("PAPERFLOW_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("PAPERFLOW_CHUNK_OVERLAP", "2000")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunk_size: [not an int\n"), 0o644))
	t.Setenv("PAPERFLOW_CONFIG", path)
	_, err := Load()
	require.Error(t, err)
}
