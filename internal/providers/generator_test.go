package providers

import (
	"context"
	"errors"
	"testing"
)

type scriptedLLMProvider struct {
	name  string
	err   error
	calls int
}

func (s *scriptedLLMProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	s.calls++
	info := ProviderInfo{Name: s.name, Model: s.name + "-v1"}
	if s.err != nil {
		return GenerateResponse{}, info, s.err
	}
	return GenerateResponse{Text: "answer from " + s.name}, info, nil
}

func managerWithLLMs(providers ...*scriptedLLMProvider) *Manager {
	m := &Manager{}
	for _, p := range providers {
		m.llmProviders = append(m.llmProviders, NamedLLMProvider{Ref: ProviderRef{Raw: p.name, Name: p.name}, Provider: p})
	}
	return m
}

func TestGenerateFallsOverToNextProvider(t *testing.T) {
	broken := &scriptedLLMProvider{name: "broken", err: errors.New("service unavailable")}
	working := &scriptedLLMProvider{name: "working"}
	c := NewGenerationClient(managerWithLLMs(broken, working), nil)

	resp, info, err := c.Generate(context.Background(), GenerateRequest{Operation: "answer_question", Prompt: "q"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Text != "answer from working" || info.Name != "working" {
		t.Fatalf("expected answer from fallback provider, got %q via %s", resp.Text, info.Name)
	}
	// One attempt per provider, no same-provider retry.
	if broken.calls != 1 || working.calls != 1 {
		t.Fatalf("unexpected call counts: broken=%d working=%d", broken.calls, working.calls)
	}
}

func TestGenerateReturnsLastErrorWhenChainExhausted(t *testing.T) {
	a := &scriptedLLMProvider{name: "a", err: errors.New("first failure")}
	b := &scriptedLLMProvider{name: "b", err: errors.New("second failure")}
	c := NewGenerationClient(managerWithLLMs(a, b), nil)

	_, _, err := c.Generate(context.Background(), GenerateRequest{Operation: "answer_question", Prompt: "q"})
	if err == nil || err.Error() != "second failure" {
		t.Fatalf("expected last provider error, got %v", err)
	}
}
