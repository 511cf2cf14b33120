package pubmed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sciencesimplified/content-service/internal/domain"
	"github.com/sciencesimplified/content-service/internal/observability"
)

const (
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the rate limit without an API key (3 requests/second).
	// With an API key, the limit increases to 10 requests/second.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum candidates per search.
	DefaultMaxResults = 100

	// MaxResultsLimit is the maximum results allowed per request by the API.
	MaxResultsLimit = 10000

	// sourceName identifies this upstream in error messages.
	sourceName = "pubmed"
)

// PaperRecord is the normalized candidate returned by a search.
// Fields other than PMID and Title may be empty when the upstream
// record is incomplete.
type PaperRecord struct {
	PMID     string
	Title    string
	Abstract string
	Authors  string
	Journal  string
	PubYear  int
	DOI      string
}

// Config holds the configuration for the PubMed client.
type Config struct {
	// BaseURL is the base URL for the E-utilities API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the NCBI API key for higher rate limits.
	// Optional but recommended for production use.
	APIKey string

	// Timeout is the request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit (3 req/sec) if zero.
	// With an API key, you can increase this to 10 req/sec.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to DefaultBurstSize if zero.
	BurstSize int

	// MaxResults is the maximum candidates per search.
	// Defaults to DefaultMaxResults if zero.
	MaxResults int
}

// applyDefaults applies default values to the config.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client queries the PubMed E-utilities API.
type Client struct {
	config     Config
	httpClient *HTTPClient
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// New creates a new PubMed client with the given configuration.
// metrics may be nil.
func New(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()

	httpCfg := HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
	}
	if metrics != nil {
		httpCfg.OnRateLimited = metrics.RecordSearchRateLimited
	}

	return &Client{
		config:     cfg,
		httpClient: NewHTTPClient(httpCfg),
		logger:     observability.WithComponent(logger, "pubmed"),
		metrics:    metrics,
	}
}

// NewWithHTTPClient creates a new PubMed client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *HTTPClient, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     observability.WithComponent(logger, "pubmed"),
		metrics:    metrics,
	}
}

// Search queries PubMed for papers matching the query within the date window.
// It performs a two-step search:
//  1. esearch.fcgi - retrieves up to MaxResults PMIDs ranked by relevance
//  2. efetch.fcgi - retrieves article metadata for those PMIDs
//
// An empty result is not an error: callers must treat it as a valid
// terminal state for the subject and week being searched. Candidates
// without a title or PMID are discarded.
func (c *Client) Search(ctx context.Context, query string, startDate, endDate time.Time) ([]PaperRecord, error) {
	searchResult, err := c.esearch(ctx, query, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("esearch failed: %w", err)
	}

	// Phrases not found in the index mean zero candidates, not a failure.
	if searchResult.ErrorList != nil && len(searchResult.ErrorList.PhraseNotFound) > 0 {
		c.logger.Debug().
			Strs("phrases", searchResult.ErrorList.PhraseNotFound).
			Msg("search phrases not found in index")
		return []PaperRecord{}, nil
	}

	if len(searchResult.IDList.IDs) == 0 {
		return []PaperRecord{}, nil
	}

	articles, err := c.efetch(ctx, searchResult.IDList.IDs)
	if err != nil {
		return nil, fmt.Errorf("efetch failed: %w", err)
	}

	records := make([]PaperRecord, 0, len(articles.Articles))
	for _, article := range articles.Articles {
		record, ok := recordFromArticle(article)
		if !ok {
			c.logger.Debug().
				Str("pmid", article.MedlineCitation.PMID.Value).
				Msg("discarding candidate without title or pmid")
			continue
		}
		records = append(records, record)
	}

	if c.metrics != nil {
		c.metrics.RecordCandidates(len(records))
	}

	c.logger.Debug().
		Int("candidates", len(records)).
		Int("total_matches", searchResult.Count).
		Msg("pubmed search completed")

	return records, nil
}

// esearch performs a search query and returns matching PMIDs.
func (c *Client) esearch(ctx context.Context, query string, startDate, endDate time.Time) (*ESearchResult, error) {
	u, err := url.Parse(c.config.BaseURL + "/esearch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("term", query)
	q.Set("retmode", "xml")
	q.Set("usehistory", "n")
	q.Set("sort", "relevance")

	maxResults := c.config.MaxResults
	if maxResults > MaxResultsLimit {
		maxResults = MaxResultsLimit
	}
	q.Set("retmax", strconv.Itoa(maxResults))

	// Scope to the publication date window
	if !startDate.IsZero() || !endDate.IsZero() {
		q.Set("datetype", "pdat")
		if !startDate.IsZero() {
			q.Set("mindate", startDate.Format("2006/01/02"))
		}
		if !endDate.IsZero() {
			q.Set("maxdate", endDate.Format("2006/01/02"))
		}
	}

	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}

	u.RawQuery = q.Encode()

	var result ESearchResult
	if err := c.get(ctx, "esearch", u.String(), &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// efetch retrieves full article metadata for the given PMIDs.
func (c *Client) efetch(ctx context.Context, pmids []string) (*PubmedArticleSet, error) {
	if len(pmids) == 0 {
		return &PubmedArticleSet{}, nil
	}

	u, err := url.Parse(c.config.BaseURL + "/efetch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(pmids, ","))
	q.Set("retmode", "xml")
	q.Set("rettype", "abstract")

	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}

	u.RawQuery = q.Encode()

	var result PubmedArticleSet
	if err := c.get(ctx, "efetch", u.String(), &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// get executes a GET request against the given E-utilities endpoint and
// unmarshals the XML response into out.
func (c *Client) get(ctx context.Context, endpoint, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure(endpoint, "transport")
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		c.recordFailure(endpoint, "status_"+strconv.Itoa(resp.StatusCode))
		return domain.NewUpstreamError(sourceName, resp.StatusCode, string(body), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		c.recordFailure(endpoint, "read")
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := xml.Unmarshal(body, out); err != nil {
		c.recordFailure(endpoint, "parse")
		return fmt.Errorf("failed to parse XML response: %w", err)
	}

	if c.metrics != nil {
		c.metrics.RecordSearchRequest(endpoint, time.Since(start).Seconds())
	}
	return nil
}

func (c *Client) recordFailure(endpoint, errorType string) {
	if c.metrics != nil {
		c.metrics.RecordSearchRequestFailed(endpoint, errorType)
	}
}

// recordFromArticle converts a fetched article into a PaperRecord.
// It returns false when the candidate lacks a title or PMID.
func recordFromArticle(article PubmedArticle) (PaperRecord, bool) {
	citation := article.MedlineCitation

	pmid := strings.TrimSpace(citation.PMID.Value)
	title := strings.TrimSpace(citation.Article.ArticleTitle)
	if pmid == "" || title == "" {
		return PaperRecord{}, false
	}

	journal := citation.Article.Journal.Title
	if journal == "" {
		journal = citation.Article.Journal.ISOAbbreviation
	}

	return PaperRecord{
		PMID:     pmid,
		Title:    title,
		Abstract: firstAbstractSegment(citation.Article.Abstract),
		Authors:  formatAuthors(citation.Article.AuthorList),
		Journal:  journal,
		PubYear:  extractPubYear(citation.Article),
		DOI:      extractDOI(citation.Article, article.PubmedData),
	}, true
}

// firstAbstractSegment returns the first abstract section only.
// Structured abstracts carry multiple labeled sections; the pipeline
// summarizes from the opening section alone.
func firstAbstractSegment(abstract *Abstract) string {
	if abstract == nil || len(abstract.AbstractTexts) == 0 {
		return ""
	}
	return strings.TrimSpace(abstract.AbstractTexts[0].Value)
}

// maxListedAuthors is the number of authors kept before collapsing the
// remainder into an "et al." marker.
const maxListedAuthors = 3

// formatAuthors joins up to the first three author names, appending
// " et al." when the list is longer.
func formatAuthors(authorList *AuthorList) string {
	if authorList == nil || len(authorList.Authors) == 0 {
		return ""
	}

	names := make([]string, 0, maxListedAuthors)
	truncated := false
	for _, a := range authorList.Authors {
		if a.ValidYN == "N" {
			continue
		}

		var name string
		if a.CollectiveName != "" {
			name = a.CollectiveName
		} else {
			parts := make([]string, 0, 2)
			if a.ForeName != "" {
				parts = append(parts, a.ForeName)
			}
			if a.LastName != "" {
				parts = append(parts, a.LastName)
			}
			name = strings.Join(parts, " ")
		}
		if name == "" {
			continue
		}

		if len(names) == maxListedAuthors {
			truncated = true
			break
		}
		names = append(names, name)
	}

	result := strings.Join(names, ", ")
	if truncated {
		result += " et al."
	}
	return result
}

// extractPubYear extracts the 4-digit publication year.
// It prefers the journal issue publication date and falls back to the
// electronic article date.
func extractPubYear(article Article) int {
	pubDate := article.Journal.JournalIssue.PubDate

	if pubDate.Year != "" {
		if year, err := strconv.Atoi(pubDate.Year); err == nil {
			return year
		}
	}

	// MedlineDate can be "2020 Jan-Feb", "2020 Spring", "2020-2021", etc.
	if pubDate.MedlineDate != "" {
		parts := strings.Fields(pubDate.MedlineDate)
		if len(parts) > 0 {
			yearStr := strings.Split(parts[0], "-")[0]
			if year, err := strconv.Atoi(yearStr); err == nil {
				return year
			}
		}
	}

	for _, ad := range article.ArticleDate {
		if year, err := strconv.Atoi(ad.Year); err == nil {
			return year
		}
	}

	return 0
}

// extractDOI extracts the DOI from article metadata.
// It checks ELocationID first (more reliable), then ArticleIdList.
func extractDOI(article Article, pubmedData PubmedData) string {
	for _, eloc := range article.ELocationID {
		if eloc.EIdType == "doi" && (eloc.Valid == "" || eloc.Valid == "Y") {
			return eloc.Value
		}
	}

	for _, aid := range pubmedData.ArticleIdList.ArticleIds {
		if aid.IdType == "doi" {
			return aid.Value
		}
	}

	return ""
}
