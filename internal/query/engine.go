// Package query answers natural-language questions against the vector
// index using retrieval-augmented generation.
package query

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"paperflow/internal/models"
	"paperflow/internal/providers"
	"paperflow/internal/util"
)

// NoKnowledgeBaseAnswer is returned without calling the LLM when the index
// has nothing to retrieve from.
const NoKnowledgeBaseAnswer = "No documents have been added to the knowledge base yet. Ingest some PDFs first."

// Retriever is the slice of the index the engine needs.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]models.ScoredChunk, error)
	Count(ctx context.Context) (int, error)
}

// Answer is a generated response plus the provenance of its context.
type Answer struct {
	Text    string             `json:"text"`
	Sources []models.SourceRef `json:"sources"`
}

type Engine struct {
	retriever Retriever
	llm       providers.LLMProvider
	topK      int
	logger    *zap.Logger
}

func NewEngine(retriever Retriever, llm providers.LLMProvider, topK int, logger *zap.Logger) *Engine {
	if topK <= 0 {
		topK = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{retriever: retriever, llm: llm, topK: topK, logger: logger}
}

// Ask retrieves the top-k chunks for the question and asks the LLM to
// answer strictly from them. Generation failures are not retried; the
// caller can simply ask again.
func (e *Engine) Ask(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("empty question")
	}

	n, err := e.retriever.Count(ctx)
	if err != nil {
		return Answer{}, fmt.Errorf("check index: %w", err)
	}
	if n == 0 {
		return Answer{Text: NoKnowledgeBaseAnswer}, nil
	}

	hits, err := e.retriever.Search(ctx, question, e.topK)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieve context: %w", err)
	}

	prompt := buildPrompt(question, hits)
	resp, info, err := e.llm.Generate(ctx, providers.GenerateRequest{
		Operation: "answer_question",
		Prompt:    prompt,
	})
	if err != nil {
		return Answer{}, fmt.Errorf("%w: %v", util.ErrAnswerGeneration, err)
	}
	e.logger.Info("answered question",
		zap.String("provider", info.Name),
		zap.String("model", info.Model),
		zap.Int("context_chunks", len(hits)))

	return Answer{Text: resp.Text, Sources: sourceRefs(hits)}, nil
}

func buildPrompt(question string, hits []models.ScoredChunk) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the context below. ")
	b.WriteString("If the context does not contain the answer, say so.\n\n")
	for _, hit := range hits {
		fmt.Fprintf(&b, "Source: %s Page %d\n%s\n\n", hit.Chunk.Filename, hit.Chunk.Page, hit.Chunk.Text)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

func sourceRefs(hits []models.ScoredChunk) []models.SourceRef {
	seen := make(map[models.SourceRef]bool, len(hits))
	refs := make([]models.SourceRef, 0, len(hits))
	for _, hit := range hits {
		ref := models.SourceRef{Filename: hit.Chunk.Filename, Page: hit.Chunk.Page}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	return refs
}
