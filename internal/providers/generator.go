package providers

import (
	"context"

	"go.uber.org/zap"
)

// GenerationClient walks the configured LLM chain: one attempt per
// provider, first success wins. A failed call produced no answer, so
// moving to the next provider is safe; the same provider is never
// retried.
type GenerationClient struct {
	manager *Manager
	logger  *zap.Logger
}

func NewGenerationClient(manager *Manager, logger *zap.Logger) *GenerationClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationClient{manager: manager, logger: logger}
}

func (c *GenerationClient) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	var lastErr error
	for i := 0; i < c.manager.LLMCount(); i++ {
		provider, ref := c.manager.LLMProviderByIndex(i)
		resp, info, err := provider.Generate(ctx, req)
		if err == nil {
			return resp, info, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return GenerateResponse{}, ProviderInfo{}, ctx.Err()
		}
		c.logger.Warn("generation provider failed, trying next",
			zap.String("provider", ref.Name),
			zap.String("class", string(ClassifyError(err))))
	}
	return GenerateResponse{}, ProviderInfo{}, lastErr
}
