package websearch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Result is one web search hit.
type Result struct {
	Title   string
	Snippet string
}

// Searcher fetches web results for a query.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Client scrapes DuckDuckGo's HTML results page.
type Client struct {
	http     *http.Client
	endpoint string
	region   string
	log      *slog.Logger
}

// NewClient creates a DuckDuckGo client.
func NewClient(endpoint, region string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		http:     &http.Client{Timeout: timeout},
		endpoint: endpoint,
		region:   region,
		log:      log.With("component", "websearch"),
	}
}

// Search returns up to maxResults organic results.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid web search endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	if c.region != "" {
		q.Set("kl", c.region)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build web search request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse web search results: %w", err)
	}

	results := parseResults(doc, maxResults)
	c.log.DebugContext(ctx, "Web search complete", "query", query, "results", len(results))
	return results, nil
}

func parseResults(doc *goquery.Document, maxResults int) []Result {
	var results []Result
	doc.Find("div.result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}
		title := collapse(s.Find("a.result__a").First().Text())
		snippet := collapse(s.Find(".result__snippet").First().Text())
		if title == "" && snippet == "" {
			return true
		}
		results = append(results, Result{Title: title, Snippet: snippet})
		return len(results) < maxResults
	})
	return results
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Format renders results as a bullet list, one "- title: snippet" per line.
func Format(results []Result) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, "- "+r.Title+": "+r.Snippet)
	}
	return strings.Join(lines, "\n")
}

// Lookup optimizes the question, searches and formats the results. Errors
// are logged and yield an empty string.
func Lookup(ctx context.Context, s Searcher, question string, maxResults int, log *slog.Logger) string {
	query := OptimizeQuery(question)
	results, err := s.Search(ctx, query, maxResults)
	if err != nil {
		log.WarnContext(ctx, "Web search failed", "query", query, "error", err)
		return ""
	}
	return Format(results)
}
