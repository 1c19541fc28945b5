package util

import "strings"

// SanitizeText strips control characters from extracted page text. PDF
// extraction leaks NUL bytes and stray C0 controls, which the pgvector
// backend rejects outright and which corrupt the JSON metadata companion
// file. Newline, carriage return and tab survive; the result is trimmed.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		switch {
		case ch == '\n' || ch == '\r' || ch == '\t':
			b.WriteRune(ch)
		case ch < 0x20 || ch == 0x7f:
			// dropped
		default:
			b.WriteRune(ch)
		}
	}
	return strings.TrimSpace(b.String())
}
