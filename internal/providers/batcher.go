package providers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"paperflow/internal/retry"
	"paperflow/internal/util"
)

// EmbeddingClient embeds texts in configurable batches with bounded retry
// per batch. Output order and length always match the input; a batch that
// exhausts its retries fails the whole call.
type EmbeddingClient struct {
	manager   *Manager
	batchSize int
	dimension int
	policy    retry.Policy
	logger    *zap.Logger
}

func NewEmbeddingClient(manager *Manager, batchSize, dimension int, policy retry.Policy, logger *zap.Logger) *EmbeddingClient {
	if batchSize <= 0 {
		batchSize = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddingClient{
		manager:   manager,
		batchSize: batchSize,
		dimension: dimension,
		policy:    policy,
		logger:    logger,
	}
}

func (c *EmbeddingClient) Dimension() int { return c.dimension }

// EmbedTexts embeds all texts, batch by batch. Each batch retries per the
// client policy when the failure class is retryable; fallover walks the
// configured provider chain before giving up.
func (c *EmbeddingClient) EmbedTexts(ctx context.Context, operation string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]
		vectors, err := c.embedBatch(ctx, operation, batch)
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("%w: embedded %d of %d inputs", util.ErrEmbeddingUnavailable, len(out), len(texts))
	}
	return out, nil
}

// EmbedQuery embeds a single query string.
func (c *EmbeddingClient) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.EmbedTexts(ctx, "embed_query", []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *EmbeddingClient) embedBatch(ctx context.Context, operation string, batch []string) ([][]float32, error) {
	var lastErr error
	for i := 0; i < c.manager.EmbedCount(); i++ {
		provider, ref := c.manager.EmbedProviderByIndex(i)
		var vectors [][]float32
		err := c.policy.Do(ctx, func(ctx context.Context) error {
			got, info, embedErr := provider.Embed(ctx, EmbedRequest{
				Operation: operation,
				Inputs:    batch,
				Dimension: c.dimension,
			})
			if embedErr != nil {
				c.logger.Warn("embedding batch failed",
					zap.String("provider", info.Name),
					zap.String("model", info.Model),
					zap.Int("batch_size", len(batch)),
					zap.Error(embedErr))
				return embedErr
			}
			if len(got) != len(batch) {
				return fmt.Errorf("provider %s returned %d vectors for %d inputs", info.Name, len(got), len(batch))
			}
			vectors = got
			return nil
		}, Retryable)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("embedding provider exhausted, trying next",
			zap.String("provider", ref.Name),
			zap.String("class", string(ClassifyError(err))))
	}
	return nil, fmt.Errorf("%w: %v", util.ErrEmbeddingUnavailable, lastErr)
}
