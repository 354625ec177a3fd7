package webagent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxSearchResponseBytes caps the SearXNG JSON payload read into memory.
const maxSearchResponseBytes = 1 << 20

// defaultSearchTimeout bounds one search provider call.
const defaultSearchTimeout = 10 * time.Second

// userAgent identifies outbound requests.
const userAgent = "anchor/1.0 (retrieval orchestrator)"

// SearchHit is one result from the search provider.
type SearchHit struct {
	Title   string
	URL     string
	Snippet string
}

// SearchProvider returns ranked web results for a query. An empty result set
// is a valid answer, not an error.
type SearchProvider interface {
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)
}

// SearXNG queries a SearXNG instance over its JSON API.
type SearXNG struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewSearXNG creates a SearXNG client. client may be nil for a default with
// a bounded timeout.
func NewSearXNG(baseURL string, client *http.Client, logger *slog.Logger) (*SearXNG, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if client == nil {
		client = &http.Client{Timeout: defaultSearchTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SearXNG{baseURL: strings.TrimRight(baseURL, "/"), client: client, logger: logger}, nil
}

// searxngResponse is the subset of the SearXNG JSON API we consume.
type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search runs one query and returns up to limit hits in provider order.
func (s *SearXNG) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}

	var parsed searxngResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	hits := make([]SearchHit, 0, limit)
	for _, r := range parsed.Results {
		if r.URL == "" {
			continue
		}
		hits = append(hits, SearchHit{Title: r.Title, URL: r.URL, Snippet: r.Content})
		if len(hits) >= limit {
			break
		}
	}

	s.logger.Debug("web search completed", "query", query, "hits", len(hits))
	return hits, nil
}
