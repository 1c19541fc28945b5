package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// OllamaProvider supports local, free embeddings and generation via Ollama.
// Default models match a typical local setup: nomic-embed-text for
// embeddings, llama3.2 for generation.
type OllamaProvider struct {
	alias      string
	baseURL    string
	embedModel string
	chatModel  string
	client     *http.Client
}

func NewOllamaProvider(alias string) *OllamaProvider {
	baseURL := strings.TrimSpace(os.Getenv("PAPERFLOW_OLLAMA_BASE_URL"))
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaProvider{
		alias:      alias,
		baseURL:    strings.TrimRight(baseURL, "/"),
		embedModel: resolveOllamaModel("PAPERFLOW_OLLAMA_EMBED_MODEL", alias, "nomic-embed-text"),
		chatModel:  resolveOllamaModel("PAPERFLOW_OLLAMA_CHAT_MODEL", "", "llama3.2:latest"),
		client:     &http.Client{Timeout: 90 * time.Second},
	}
}

func (o *OllamaProvider) info() ProviderInfo {
	return ProviderInfo{Name: "ollama", Model: o.embedModel, Key: o.alias}
}

func (o *OllamaProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	if len(req.Inputs) == 0 {
		return nil, o.info(), fmt.Errorf("no embedding inputs")
	}
	out := make([][]float32, 0, len(req.Inputs))
	for _, text := range req.Inputs {
		payload, _ := json.Marshal(map[string]any{
			"model":  o.embedModel,
			"prompt": text,
		})
		body, err := o.post(ctx, "/api/embeddings", payload)
		if err != nil {
			return nil, o.info(), fmt.Errorf("ollama embedding request failed: %w", err)
		}
		var parsed struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, o.info(), fmt.Errorf("decode ollama embedding response: %w", err)
		}
		if len(parsed.Embedding) == 0 {
			return nil, o.info(), fmt.Errorf("ollama response missing embedding field")
		}
		out = append(out, parsed.Embedding)
	}
	return out, o.info(), nil
}

func (o *OllamaProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "ollama", Model: o.chatModel, Key: o.alias}
	prompt := req.Prompt
	if len(req.Context) > 0 {
		prompt += "\n\nContext:\n" + strings.Join(req.Context, "\n\n")
	}
	payload, _ := json.Marshal(map[string]any{
		"model": o.chatModel,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"stream": false,
	})
	body, err := o.post(ctx, "/api/chat", payload)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("ollama generate request failed: %w", err)
	}
	var parsed struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return GenerateResponse{}, info, fmt.Errorf("decode ollama chat response: %w", err)
	}
	if strings.TrimSpace(parsed.Message.Content) == "" {
		return GenerateResponse{}, info, fmt.Errorf("ollama returned empty message")
	}
	return GenerateResponse{Text: parsed.Message.Content}, info, nil
}

func (o *OllamaProvider) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(payload))
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("ollama error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func resolveOllamaModel(envKey, alias, fallback string) string {
	alias = strings.TrimSpace(alias)
	if alias != "" {
		if v := strings.TrimSpace(os.Getenv(envKey + "_" + sanitizeEnvToken(alias))); v != "" {
			return v
		}
		// Allow a direct model name in the provider list, e.g. ollama:bge-small-en-v1.5.
		if strings.Contains(alias, "-") || strings.Contains(alias, "/") || strings.Contains(alias, ".") {
			return alias
		}
	}
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	return fallback
}

func sanitizeEnvToken(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, ".", "_")
	s = strings.ReplaceAll(s, "/", "_")
	return s
}
