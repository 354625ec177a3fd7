// Package webagent implements the web breakout: a bounded excursion that
// searches the live web, fetches a handful of result pages, and extracts
// their text as evidence. It runs only after local retrieval, and only when
// the caller has granted web fallback.
package webagent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/koopa0/anchor/internal/config"
	"github.com/koopa0/anchor/internal/evidence"
)

var (
	// ErrNoResults reports that the search provider returned zero hits.
	ErrNoResults = errors.New("web search returned no results")

	// ErrNoContent reports that every result page failed to fetch or
	// yielded no extractable text.
	ErrNoContent = errors.New("no web content extracted")
)

// URLValidator guards which result URLs may be fetched.
type URLValidator interface {
	Validate(rawURL string) error
}

// Agent drives one search-fetch-extract excursion per call.
type Agent struct {
	provider  SearchProvider
	fetcher   Fetcher
	validator URLValidator
	cfg       config.WebAgentConfig
	logger    *slog.Logger
}

// New creates a web Agent.
func New(provider SearchProvider, fetcher Fetcher, validator URLValidator,
	cfg config.WebAgentConfig, logger *slog.Logger) (*Agent, error) {
	if provider == nil {
		return nil, fmt.Errorf("search provider is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if validator == nil {
		return nil, fmt.Errorf("url validator is required")
	}
	if cfg.MaxResults <= 0 {
		return nil, fmt.Errorf("max results must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{provider: provider, fetcher: fetcher, validator: validator, cfg: cfg, logger: logger}, nil
}

// Search runs one web excursion for the query terms and returns live-web
// evidence items in search-rank order. A page that fails to fetch or
// extract excludes only itself; the batch fails only when nothing at all
// came back (ErrNoResults, ErrNoContent) or the provider errored.
func (a *Agent) Search(ctx context.Context, queryTerms string) ([]evidence.Item, error) {
	hits, err := a.provider.Search(ctx, queryTerms, a.cfg.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}
	if len(hits) == 0 {
		return nil, ErrNoResults
	}

	urls := make([]string, 0, len(hits))
	hitByURL := make(map[string]SearchHit, len(hits))
	for _, h := range hits {
		if err := a.validator.Validate(h.URL); err != nil {
			a.logger.Warn("skipping unsafe result url", "url", h.URL, "error", err)
			continue
		}
		urls = append(urls, h.URL)
		hitByURL[h.URL] = h
	}
	if len(urls) == 0 {
		return nil, ErrNoContent
	}

	pages, err := a.fetcher.Fetch(ctx, urls)
	if err != nil {
		return nil, fmt.Errorf("fetching result pages: %w", err)
	}

	pageByURL := make(map[string]Page, len(pages))
	for _, p := range pages {
		pageByURL[p.URL] = p
	}

	// Preserve search-rank order regardless of fetch completion order.
	var items []evidence.Item
	for rank, u := range urls {
		p, ok := pageByURL[u]
		if !ok {
			continue
		}
		base := p.FinalURL
		if base == "" {
			base = p.URL
		}
		title, text := extractText(base, p.Body)
		if text == "" {
			a.logger.Warn("no text extracted from page", "url", p.URL)
			continue
		}
		if title == "" {
			title = hitByURL[u].Title
		}
		items = append(items, evidence.Item{
			SourceID:   u,
			Kind:       evidence.KindWeb,
			Text:       truncateRunes(text, a.cfg.PerSourceLimit),
			Title:      title,
			URL:        u,
			OriginRank: rank + 1,
		})
	}
	if len(items) == 0 {
		return nil, ErrNoContent
	}

	a.logger.Debug("web excursion completed",
		"query", queryTerms, "hits", len(hits), "pages", len(pages), "items", len(items))
	return items, nil
}
