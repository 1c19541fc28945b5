package index

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"paperflow/internal/models"
)

// Embedder turns text into vectors. Satisfied by providers.EmbeddingClient.
type Embedder interface {
	EmbedTexts(ctx context.Context, operation string, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Manager pairs an embedding client with a Store and serializes writes.
// Add embeds first and appends only a complete vector set, so a failed
// embedding run leaves the index at its previous consistent state.
type Manager struct {
	mu       sync.Mutex
	store    Store
	embedder Embedder
	logger   *zap.Logger
}

func NewManager(store Store, embedder Embedder, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, embedder: embedder, logger: logger}
}

// Add embeds the chunk texts and appends everything in one shot. Implements
// the ingestion chunk sink.
func (m *Manager) Add(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := m.embedder.EmbedTexts(ctx, "embed_chunks", texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Append(ctx, vectors, chunks); err != nil {
		return err
	}
	m.logger.Debug("appended chunks to index", zap.Int("count", len(chunks)))
	return nil
}

// Search embeds the query and returns the k nearest chunks, closest first.
func (m *Manager) Search(ctx context.Context, query string, k int) ([]models.ScoredChunk, error) {
	vector, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return m.store.Search(ctx, vector, k)
}

func (m *Manager) Count(ctx context.Context) (int, error) {
	return m.store.Count(ctx)
}
