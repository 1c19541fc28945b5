// Package refs extracts bibliographic references from document text,
// resolves them against external paper sources, and orchestrates
// consent-gated batch downloads.
package refs

import (
	"regexp"
	"strings"

	"paperflow/internal/models"
)

// Confidence tiers by how much structure a parse recovered. A DOI always
// wins over an otherwise identical parse without one.
const (
	confidenceDOI        = 0.9
	confidenceStructured = 0.75
	confidenceLoose      = 0.5
	confidenceMinimal    = 0.35
)

var (
	referenceHeaderRe = regexp.MustCompile(`(?im)^\s*(references?|bibliography|literature\s+cited|works\s+cited|citations?)\s*$`)
	numberedSectionRe = regexp.MustCompile(`\n\s*\d+\.\s+[A-Z][a-z]+\s+[a-z]`)

	doiRe        = regexp.MustCompile(`(?i)(?:https?://(?:dx\.)?doi\.org/|\bdoi:\s*)(10\.\S+?)[.,;]?(?:\s|$)`)
	structuredRe = regexp.MustCompile(`^(.{3,200}?)\s*\(((?:19|20)\d{2})\)\.\s*(.{5,300}?)\.\s*(.+)$`)
	yearRe       = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	quotedRe     = regexp.MustCompile(`"([^"]{5,300})"`)
	entryStartRe = regexp.MustCompile(`^(?:\[\d+\]\s*|\d+\.\s+)?[A-Z][a-zA-Z'-]+(?:,| and | et al\.)`)
	authorLeadRe = regexp.MustCompile(`^([A-Z][a-zA-Z'.-]+(?:[,\s]+(?:and\s+)?[A-Z][a-zA-Z'.-]*)*)\s*[.:]`)
	bracketNumRe = regexp.MustCompile(`^\[\d+\]\s*`)
	listNumRe    = regexp.MustCompile(`^\d+\.\s+`)
)

// Extractor is pure text-to-structured-data; it never touches the network.
type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

// FindReferenceSection locates the bibliography within the page texts. It
// starts collecting at the first page carrying a reference header line and
// stops when a later page opens a new numbered section. Returns "" when no
// header is found.
func (e *Extractor) FindReferenceSection(pageTexts []string) string {
	var b strings.Builder
	collecting := false
	for _, text := range pageTexts {
		if !collecting && referenceHeaderRe.MatchString(text) {
			collecting = true
		}
		if collecting {
			b.WriteString(text)
			b.WriteString("\n")
			if numberedSectionRe.MatchString(text) {
				break
			}
		}
	}
	return b.String()
}

// Extract parses citation entries out of reference-section text. Matchers
// run from most to least specific: DOI-bearing, then structured
// author-year-title-journal, then loose author/year recovery. Entries that
// parse the same title keep only the highest-confidence record.
func (e *Extractor) Extract(text string) []models.ReferenceRecord {
	entries := segmentEntries(text)
	byTitle := make(map[string]int)
	var out []models.ReferenceRecord
	for _, entry := range entries {
		rec, ok := parseEntry(entry)
		if !ok {
			continue
		}
		key := normalizeTitle(rec.Title)
		if prev, seen := byTitle[key]; seen {
			if rec.Confidence > out[prev].Confidence {
				out[prev] = rec
			}
			continue
		}
		byTitle[key] = len(out)
		out = append(out, rec)
	}
	return out
}

// Stats summarizes one extraction pass. High is confidence >= 0.8, medium
// is [0.5, 0.8), low is below 0.5.
func (e *Extractor) Stats(refs []models.ReferenceRecord) models.ExtractionStats {
	stats := models.ExtractionStats{Total: len(refs)}
	if len(refs) == 0 {
		return stats
	}
	var sum float64
	for _, r := range refs {
		switch {
		case r.Confidence >= 0.8:
			stats.HighConfidence++
		case r.Confidence >= 0.5:
			stats.MedConfidence++
		default:
			stats.LowConfidence++
		}
		if r.DOI != "" {
			stats.WithDOI++
		}
		if r.Year != "" {
			stats.WithYear++
		}
		sum += r.Confidence
	}
	stats.AvgConfidence = sum / float64(len(refs))
	return stats
}

// segmentEntries splits raw section text into one string per citation. A
// new entry opens on a line that looks like an author list or a numbered
// item; continuation lines are folded into the current entry.
func segmentEntries(text string) []string {
	var entries []string
	var current strings.Builder
	flush := func() {
		entry := strings.TrimSpace(current.String())
		current.Reset()
		if len(entry) >= 20 {
			entries = append(entries, entry)
		}
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if isHeaderLine(line) {
			continue
		}
		if entryStartRe.MatchString(line) {
			flush()
		} else if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(line)
	}
	flush()
	return entries
}

func isHeaderLine(line string) bool {
	switch strings.ToUpper(strings.TrimRight(line, ":")) {
	case "REFERENCES", "REFERENCE", "BIBLIOGRAPHY", "LITERATURE CITED", "WORKS CITED", "CITATIONS":
		return true
	}
	return false
}

func parseEntry(entry string) (models.ReferenceRecord, bool) {
	entry = stripEntryNumber(entry)
	rec := models.ReferenceRecord{RawText: entry}

	if m := doiRe.FindStringSubmatch(entry); m != nil {
		rec.DOI = strings.TrimRight(m[1], ".,;")
	}

	if m := structuredRe.FindStringSubmatch(entry); m != nil {
		rec.Authors = strings.TrimSpace(m[1])
		rec.Year = m[2]
		rec.Title = strings.TrimSpace(m[3])
		rec.Journal = strings.TrimSpace(strings.TrimRight(trailingDOIStripped(m[4]), "."))
		if rec.DOI != "" {
			rec.Confidence = confidenceDOI
		} else {
			rec.Confidence = confidenceStructured
		}
		return rec, true
	}

	// Loose recovery: pull out what can be found.
	if m := yearRe.FindString(entry); m != "" {
		rec.Year = m
	}
	if m := quotedRe.FindStringSubmatch(entry); m != nil {
		rec.Title = strings.TrimSpace(m[1])
	}
	if m := authorLeadRe.FindStringSubmatch(entry); m != nil {
		rec.Authors = strings.TrimSpace(m[1])
		if rec.Title == "" {
			rec.Title = firstSentenceAfter(entry, m[0])
		}
	}
	if rec.Title == "" || rec.Authors == "" {
		return models.ReferenceRecord{}, false
	}
	switch {
	case rec.DOI != "":
		rec.Confidence = confidenceDOI
	case rec.Year != "":
		rec.Confidence = confidenceLoose
	default:
		rec.Confidence = confidenceMinimal
	}
	return rec, true
}

func stripEntryNumber(entry string) string {
	entry = bracketNumRe.ReplaceAllString(entry, "")
	return listNumRe.ReplaceAllString(entry, "")
}

func trailingDOIStripped(s string) string {
	return strings.TrimSpace(doiRe.ReplaceAllString(s, ""))
}

// firstSentenceAfter takes the first substantial sentence following the
// author list as the title, skipping obvious venue phrases.
func firstSentenceAfter(entry, authorPrefix string) string {
	rest := strings.TrimSpace(strings.TrimPrefix(entry, authorPrefix))
	for _, sentence := range strings.FieldsFunc(rest, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) <= 10 {
			continue
		}
		lower := strings.ToLower(sentence)
		if strings.HasPrefix(lower, "in proceedings") || strings.HasPrefix(lower, "proceedings") ||
			strings.HasPrefix(lower, "journal") || strings.HasPrefix(lower, "arxiv") ||
			strings.HasPrefix(lower, "preprint") || strings.HasPrefix(lower, "published") {
			continue
		}
		return sentence
	}
	return ""
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}
