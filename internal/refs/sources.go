package refs

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrNotFound means a source answered but had no fetchable file for the
// reference. It is a miss, not a failure; the next source is tried.
var ErrNotFound = errors.New("reference not found at source")

// Source resolves a reference to a candidate file URL. Implementations
// rate-limit themselves and honor the request context.
type Source interface {
	Name() string
	Resolve(ctx context.Context, ref Lookup) (string, error)
}

// Lookup is the subset of a reference record the sources search by.
type Lookup struct {
	Title   string
	Authors string
	Year    string
	DOI     string
}

func firstAuthorLastName(authors string) string {
	first := strings.TrimSpace(strings.Split(authors, ",")[0])
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// similarTitle is a word-overlap check: at least 30% of the reference's
// title words must appear in the candidate.
func similarTitle(refTitle, candidate string) bool {
	if refTitle == "" || candidate == "" {
		return false
	}
	refWords := strings.Fields(strings.ToLower(refTitle))
	if len(refWords) == 0 {
		return false
	}
	candWords := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(candidate)) {
		candWords[w] = true
	}
	matched := 0
	for _, w := range refWords {
		if candWords[w] {
			matched++
		}
	}
	return float64(matched)/float64(len(refWords)) >= 0.3
}

func getBody(ctx context.Context, client *http.Client, limiter *rate.Limiter, rawURL string) ([]byte, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "paperflow/1.0")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited (429): %s", rawURL)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http %d from %s", resp.StatusCode, rawURL)
	}
	return body, nil
}

// ---- arXiv -----------------------------------------------------------------

// arxivSource queries the arXiv Atom API by title and first author.
type arxivSource struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func newArxivSource(client *http.Client) *arxivSource {
	// arXiv asks for no more than one request every 3 seconds.
	return &arxivSource{
		baseURL: "http://export.arxiv.org",
		client:  client,
		limiter: rate.NewLimiter(rate.Every(3*time.Second), 1),
	}
}

func (s *arxivSource) Name() string { return "arxiv" }

type arxivFeed struct {
	Entries []struct {
		Title string `xml:"title"`
		Links []struct {
			Href  string `xml:"href,attr"`
			Title string `xml:"title,attr"`
			Type  string `xml:"type,attr"`
		} `xml:"link"`
	} `xml:"entry"`
}

func (s *arxivSource) Resolve(ctx context.Context, ref Lookup) (string, error) {
	var queryParts []string
	if ref.Title != "" {
		queryParts = append(queryParts, fmt.Sprintf(`ti:%q`, ref.Title))
	}
	if last := firstAuthorLastName(ref.Authors); last != "" {
		queryParts = append(queryParts, fmt.Sprintf(`au:%q`, last))
	}
	if len(queryParts) == 0 {
		return "", ErrNotFound
	}
	q := url.Values{}
	q.Set("search_query", strings.Join(queryParts, " AND "))
	q.Set("start", "0")
	q.Set("max_results", "5")
	q.Set("sortBy", "relevance")

	body, err := getBody(ctx, s.client, s.limiter, s.baseURL+"/api/query?"+q.Encode())
	if err != nil {
		return "", fmt.Errorf("arxiv query: %w", err)
	}
	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return "", fmt.Errorf("parse arxiv feed: %w", err)
	}
	for _, entry := range feed.Entries {
		if !similarTitle(ref.Title, entry.Title) {
			continue
		}
		for _, link := range entry.Links {
			if link.Title == "pdf" || link.Type == "application/pdf" {
				return link.Href, nil
			}
		}
	}
	return "", ErrNotFound
}

// ---- PubMed ----------------------------------------------------------------

// pubmedSource searches PubMed, then checks PubMed Central for an open PDF.
type pubmedSource struct {
	baseURL string // eutils endpoint
	pmcURL  string // article site for the final PDF link
	client  *http.Client
	limiter *rate.Limiter
}

func newPubmedSource(client *http.Client) *pubmedSource {
	return &pubmedSource{
		baseURL: "https://eutils.ncbi.nlm.nih.gov/entrez/eutils",
		pmcURL:  "https://www.ncbi.nlm.nih.gov",
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (s *pubmedSource) Name() string { return "pubmed" }

type esearchResponse struct {
	Result struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

func (s *pubmedSource) Resolve(ctx context.Context, ref Lookup) (string, error) {
	var queryParts []string
	if ref.Title != "" {
		queryParts = append(queryParts, fmt.Sprintf(`%q[Title]`, ref.Title))
	}
	if last := firstAuthorLastName(ref.Authors); last != "" {
		queryParts = append(queryParts, fmt.Sprintf(`%q[Author]`, last))
	}
	if len(queryParts) == 0 {
		return "", ErrNotFound
	}
	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("term", strings.Join(queryParts, " AND "))
	q.Set("retmode", "json")
	q.Set("retmax", "5")

	body, err := getBody(ctx, s.client, s.limiter, s.baseURL+"/esearch.fcgi?"+q.Encode())
	if err != nil {
		return "", fmt.Errorf("pubmed search: %w", err)
	}
	var search esearchResponse
	if err := json.Unmarshal(body, &search); err != nil {
		return "", fmt.Errorf("parse pubmed search: %w", err)
	}
	for _, pmid := range search.Result.IDList {
		pdfURL, err := s.findPMCPDF(ctx, pmid)
		if err != nil {
			continue
		}
		if pdfURL != "" {
			return pdfURL, nil
		}
	}
	return "", ErrNotFound
}

func (s *pubmedSource) findPMCPDF(ctx context.Context, pmid string) (string, error) {
	q := url.Values{}
	q.Set("db", "pmc")
	q.Set("term", pmid+"[pmid]")
	q.Set("retmode", "json")

	body, err := getBody(ctx, s.client, s.limiter, s.baseURL+"/esearch.fcgi?"+q.Encode())
	if err != nil {
		return "", err
	}
	var search esearchResponse
	if err := json.Unmarshal(body, &search); err != nil {
		return "", err
	}
	if len(search.Result.IDList) == 0 {
		return "", nil
	}
	return fmt.Sprintf("%s/pmc/articles/PMC%s/pdf/", s.pmcURL, search.Result.IDList[0]), nil
}

// ---- Semantic Scholar ------------------------------------------------------

// scholarSource serves two roles: direct DOI lookup and general scholarly
// search fallback, both through the Semantic Scholar Graph API.
type scholarSource struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	byDOI   bool
}

func newDOISource(client *http.Client) *scholarSource {
	return &scholarSource{
		baseURL: "https://api.semanticscholar.org",
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		byDOI:   true,
	}
}

func newScholarSource(client *http.Client) *scholarSource {
	return &scholarSource{
		baseURL: "https://api.semanticscholar.org",
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (s *scholarSource) Name() string {
	if s.byDOI {
		return "doi"
	}
	return "scholar"
}

type scholarPaper struct {
	Title         string `json:"title"`
	OpenAccessPDF *struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
}

func (s *scholarSource) Resolve(ctx context.Context, ref Lookup) (string, error) {
	if s.byDOI {
		return s.resolveDOI(ctx, ref)
	}
	return s.resolveSearch(ctx, ref)
}

func (s *scholarSource) resolveDOI(ctx context.Context, ref Lookup) (string, error) {
	if ref.DOI == "" {
		return "", ErrNotFound
	}
	rawURL := s.baseURL + "/graph/v1/paper/DOI:" + url.PathEscape(ref.DOI) + "?fields=title,openAccessPdf"
	body, err := getBody(ctx, s.client, s.limiter, rawURL)
	if err != nil {
		return "", fmt.Errorf("doi lookup: %w", err)
	}
	var paper scholarPaper
	if err := json.Unmarshal(body, &paper); err != nil {
		return "", fmt.Errorf("parse doi lookup: %w", err)
	}
	if paper.OpenAccessPDF == nil || paper.OpenAccessPDF.URL == "" {
		return "", ErrNotFound
	}
	return paper.OpenAccessPDF.URL, nil
}

func (s *scholarSource) resolveSearch(ctx context.Context, ref Lookup) (string, error) {
	if ref.Title == "" {
		return "", ErrNotFound
	}
	q := url.Values{}
	q.Set("query", ref.Title)
	q.Set("fields", "title,openAccessPdf")
	q.Set("limit", "5")

	body, err := getBody(ctx, s.client, s.limiter, s.baseURL+"/graph/v1/paper/search?"+q.Encode())
	if err != nil {
		return "", fmt.Errorf("scholar search: %w", err)
	}
	var result struct {
		Data []scholarPaper `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse scholar search: %w", err)
	}
	for _, paper := range result.Data {
		if paper.OpenAccessPDF == nil || paper.OpenAccessPDF.URL == "" {
			continue
		}
		if similarTitle(ref.Title, paper.Title) {
			return paper.OpenAccessPDF.URL, nil
		}
	}
	return "", ErrNotFound
}
