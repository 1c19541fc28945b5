package providers

import "testing"

func TestParseProviderList(t *testing.T) {
	refs := ParseProviderList("mock|openai:key1|openai:key2")
	if len(refs) != 3 {
		t.Fatalf("expected 3 providers got %d", len(refs))
	}
	if refs[1].Name != "openai" || refs[1].KeyAlias != "key1" {
		t.Fatalf("unexpected parse result: %+v", refs[1])
	}
}

func TestParseProviderListNormalizesCase(t *testing.T) {
	refs := ParseProviderList("Ollama | GROQ:primary ")
	if len(refs) != 2 || refs[0].Name != "ollama" || refs[1].Name != "groq" || refs[1].KeyAlias != "primary" {
		t.Fatalf("unexpected parse result: %+v", refs)
	}
}

func TestParseProviderListEmptyFallsBackToMock(t *testing.T) {
	refs := ParseProviderList("  ")
	if len(refs) != 1 || refs[0].Name != "mock" {
		t.Fatalf("expected mock fallback, got %+v", refs)
	}
}
