package refs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const arxivFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>Attention Is All You Need</title>
    <link href="http://arxiv.org/abs/1706.03762" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/1706.03762" rel="related" type="application/pdf"/>
  </entry>
  <entry>
    <title>Unrelated Paper About Something Else Entirely</title>
    <link title="pdf" href="http://arxiv.org/pdf/9999.00001" rel="related" type="application/pdf"/>
  </entry>
</feed>`

func fastLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Microsecond), 1)
}

func TestArxivSourceResolvesMatchingEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/query", r.URL.Path)
		require.Contains(t, r.URL.Query().Get("search_query"), "Attention Is All You Need")
		_, _ = w.Write([]byte(arxivFeedXML))
	}))
	defer srv.Close()

	s := &arxivSource{baseURL: srv.URL, client: srv.Client(), limiter: fastLimiter()}
	url, err := s.Resolve(context.Background(), Lookup{
		Title:   "Attention Is All You Need",
		Authors: "Ashish Vaswani, Noam Shazeer",
	})
	require.NoError(t, err)
	require.Equal(t, "http://arxiv.org/pdf/1706.03762", url)
}

func TestArxivSourceNoMatchIsMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
	}))
	defer srv.Close()

	s := &arxivSource{baseURL: srv.URL, client: srv.Client(), limiter: fastLimiter()}
	_, err := s.Resolve(context.Background(), Lookup{Title: "Some Paper", Authors: "Smith, J."})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPubmedSourceResolvesThroughPMC(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/esearch.fcgi", r.URL.Path)
		switch r.URL.Query().Get("db") {
		case "pubmed":
			_, _ = w.Write([]byte(`{"esearchresult":{"idlist":["12345"]}}`))
		case "pmc":
			require.Equal(t, "12345[pmid]", r.URL.Query().Get("term"))
			_, _ = w.Write([]byte(`{"esearchresult":{"idlist":["67890"]}}`))
		}
	}))
	defer srv.Close()

	s := &pubmedSource{baseURL: srv.URL, pmcURL: "https://example.org", client: srv.Client(), limiter: fastLimiter()}
	url, err := s.Resolve(context.Background(), Lookup{Title: "CRISPR screening", Authors: "Doe, J."})
	require.NoError(t, err)
	require.Equal(t, "https://example.org/pmc/articles/PMC67890/pdf/", url)
}

func TestDOISourceLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, "/graph/v1/paper/DOI:")
		_, _ = w.Write([]byte(`{"title":"Paper","openAccessPdf":{"url":"https://host/paper.pdf"}}`))
	}))
	defer srv.Close()

	s := &scholarSource{baseURL: srv.URL, client: srv.Client(), limiter: fastLimiter(), byDOI: true}
	url, err := s.Resolve(context.Background(), Lookup{DOI: "10.1093/bio/btz999"})
	require.NoError(t, err)
	require.Equal(t, "https://host/paper.pdf", url)

	_, err = s.Resolve(context.Background(), Lookup{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestScholarSearchSkipsClosedAccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/graph/v1/paper/search", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[
			{"title":"Graph Networks For Molecules","openAccessPdf":null},
			{"title":"Graph Networks for Molecules Revisited","openAccessPdf":{"url":"https://host/open.pdf"}}
		]}`))
	}))
	defer srv.Close()

	s := &scholarSource{baseURL: srv.URL, client: srv.Client(), limiter: fastLimiter()}
	url, err := s.Resolve(context.Background(), Lookup{Title: "Graph Networks for Molecules"})
	require.NoError(t, err)
	require.Equal(t, "https://host/open.pdf", url)
}

func TestSimilarTitleOverlapThreshold(t *testing.T) {
	require.True(t, similarTitle("deep learning for proteins", "Deep Learning for Protein Folding"))
	require.False(t, similarTitle("deep learning for proteins", "quantum chemistry basis sets"))
	require.False(t, similarTitle("", "anything"))
}
