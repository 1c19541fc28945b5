package refs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sectionText = `References

Smith, J. (2019). Deep learning for protein folding. Nature Methods, 16(3), 315-322.
Jones, A. (2020). Attention mechanisms in genomics. Bioinformatics, 36(2), 100-110. https://doi.org/10.1093/bio/btz999
Brown, K. and Lee, M. "Graph networks for molecules". Journal of Chemistry, vol. 12, no. 4, 2021, pp. 44-59.
`

func TestExtractStructuredEntries(t *testing.T) {
	e := NewExtractor()
	refs := e.Extract(sectionText)
	require.NotEmpty(t, refs)

	byTitle := map[string]float64{}
	for _, r := range refs {
		byTitle[r.Title] = r.Confidence
	}
	require.Contains(t, byTitle, "Deep learning for protein folding")
	require.Equal(t, confidenceStructured, byTitle["Deep learning for protein folding"])
	require.Contains(t, byTitle, "Attention mechanisms in genomics")
	require.Equal(t, confidenceDOI, byTitle["Attention mechanisms in genomics"])
}

func TestExtractParsesDOI(t *testing.T) {
	e := NewExtractor()
	refs := e.Extract("Jones, A. (2020). Attention mechanisms in genomics. Bioinformatics, 36(2), 100-110. https://doi.org/10.1093/bio/btz999\n")
	require.Len(t, refs, 1)
	require.Equal(t, "10.1093/bio/btz999", refs[0].DOI)
	require.Equal(t, "2020", refs[0].Year)
	require.Equal(t, "Jones, A.", refs[0].Authors)
}

func TestDOIOutranksSameEntryWithoutDOI(t *testing.T) {
	e := NewExtractor()
	withDOI := e.Extract("Jones, A. (2020). Attention mechanisms in genomics. Bioinformatics, 36(2), 100-110. https://doi.org/10.1093/bio/btz999\n")
	withoutDOI := e.Extract("Jones, A. (2020). Attention mechanisms in genomics. Bioinformatics, 36(2), 100-110.\n")
	require.Len(t, withDOI, 1)
	require.Len(t, withoutDOI, 1)
	require.GreaterOrEqual(t, withDOI[0].Confidence, withoutDOI[0].Confidence)
	require.Greater(t, withDOI[0].Confidence, withoutDOI[0].Confidence)
}

func TestExtractMergesDuplicateTitlesKeepingBestParse(t *testing.T) {
	e := NewExtractor()
	text := `Jones, A. (2020). Attention mechanisms in genomics. Bioinformatics, 36(2), 100-110.
Jones, A. (2020). Attention mechanisms in genomics. Bioinformatics, 36(2), 100-110. https://doi.org/10.1093/bio/btz999
`
	refs := e.Extract(text)
	require.Len(t, refs, 1)
	require.Equal(t, confidenceDOI, refs[0].Confidence)
	require.Equal(t, "10.1093/bio/btz999", refs[0].DOI)
}

func TestExtractSkipsShortNoise(t *testing.T) {
	e := NewExtractor()
	refs := e.Extract("References\n\nPage 12\n\nFigure 3\n")
	require.Empty(t, refs)
}

func TestFindReferenceSection(t *testing.T) {
	e := NewExtractor()
	pages := []string{
		"Introduction and methods, no citations here.",
		"Results and discussion.",
		"References\nSmith, J. (2019). Deep learning for protein folding. Nature Methods, 16(3), 315-322.",
	}
	section := e.FindReferenceSection(pages)
	require.Contains(t, section, "Deep learning for protein folding")
	require.NotContains(t, section, "Introduction and methods")
}

func TestFindReferenceSectionAbsent(t *testing.T) {
	e := NewExtractor()
	require.Empty(t, e.FindReferenceSection([]string{"no bibliography here"}))
}

func TestStatsBuckets(t *testing.T) {
	e := NewExtractor()
	text := `Jones, A. (2020). Attention mechanisms in genomics. Bioinformatics, 36(2), 100-110. https://doi.org/10.1093/bio/btz999
Smith, J. (2019). Deep learning for protein folding. Nature Methods, 16(3), 315-322.
`
	refs := e.Extract(text)
	stats := e.Stats(refs)
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.HighConfidence)
	require.Equal(t, 1, stats.MedConfidence)
	require.Equal(t, 1, stats.WithDOI)
	require.Equal(t, 2, stats.WithYear)
	require.InDelta(t, (confidenceDOI+confidenceStructured)/2, stats.AvgConfidence, 1e-9)
}

func TestStatsEmpty(t *testing.T) {
	stats := NewExtractor().Stats(nil)
	require.Zero(t, stats.Total)
	require.Zero(t, stats.AvgConfidence)
}
