package providers

import "strings"

// ProviderRef is one entry from a provider list. Entries use "name" or
// "name:alias" syntax, pipe separated, e.g. "ollama|openai:primary|mock".
type ProviderRef struct {
	Raw      string
	Name     string
	KeyAlias string
}

// ParseProviderList parses a provider list string. Empty segments are
// skipped; an empty list falls back to the mock provider so the pipeline
// always has something to run against.
func ParseProviderList(raw string) []ProviderRef {
	parts := strings.Split(raw, "|")
	out := make([]ProviderRef, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		ref := ProviderRef{Raw: p}
		name, alias, hasAlias := strings.Cut(p, ":")
		ref.Name = strings.ToLower(strings.TrimSpace(name))
		if hasAlias {
			ref.KeyAlias = strings.TrimSpace(alias)
		}
		if ref.Name == "" {
			continue
		}
		out = append(out, ref)
	}
	if len(out) == 0 {
		out = append(out, ProviderRef{Raw: "mock", Name: "mock"})
	}
	return out
}
