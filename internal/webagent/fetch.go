package webagent

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/koopa0/anchor/internal/config"
)

// requestedURLKey stores the pre-redirect URL in colly's request context.
const requestedURLKey = "requested_url"

// Page is one fetched document body. URL is the URL that was asked for;
// FinalURL is where the server actually landed after redirects.
type Page struct {
	URL      string
	FinalURL string
	Body     []byte
}

// Fetcher retrieves page bodies for a set of URLs. A URL that fails is
// omitted from the result, it never fails the batch.
type Fetcher interface {
	Fetch(ctx context.Context, urls []string) ([]Page, error)
}

// CollyFetcher fetches pages with a per-call colly collector, bounded by the
// scraper config's parallelism, per-request delay, and timeout.
type CollyFetcher struct {
	cfg       config.WebScraperConfig
	transport http.RoundTripper
	logger    *slog.Logger
}

// NewCollyFetcher creates a fetcher. transport is typically the SSRF-guarded
// transport from internal/security; nil keeps colly's default.
func NewCollyFetcher(cfg config.WebScraperConfig, transport http.RoundTripper, logger *slog.Logger) (*CollyFetcher, error) {
	if cfg.Parallelism <= 0 {
		return nil, fmt.Errorf("parallelism must be positive")
	}
	if cfg.TimeoutMs <= 0 {
		return nil, fmt.Errorf("timeout must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CollyFetcher{cfg: cfg, transport: transport, logger: logger}, nil
}

// Fetch visits all URLs concurrently and returns the pages that succeeded.
//
// colly's fetch loop does not take a context. Requests abort on entry once
// ctx is done, and the per-request timeout bounds the tail, so cancellation
// is observed at request granularity rather than instantly.
func (f *CollyFetcher) Fetch(ctx context.Context, urls []string) ([]Page, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	c := colly.NewCollector(
		colly.Async(true),
		colly.MaxDepth(1),
		colly.UserAgent(userAgent),
	)
	if f.transport != nil {
		c.WithTransport(f.transport)
	}
	c.SetRequestTimeout(time.Duration(f.cfg.TimeoutMs) * time.Millisecond)

	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: f.cfg.Parallelism,
		Delay:       time.Duration(f.cfg.DelayMs) * time.Millisecond,
	}); err != nil {
		return nil, fmt.Errorf("configuring fetch limits: %w", err)
	}

	var (
		mu    sync.Mutex
		pages []Page
	)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		// The response reports the post-redirect URL. Remember the URL
		// the caller asked for so pages match their search hits.
		if r.Ctx.Get(requestedURLKey) == "" {
			r.Ctx.Put(requestedURLKey, r.URL.String())
		}
	})
	c.OnResponse(func(r *colly.Response) {
		requested := r.Ctx.Get(requestedURLKey)
		if requested == "" {
			requested = r.Request.URL.String()
		}
		body := make([]byte, len(r.Body))
		copy(body, r.Body)
		mu.Lock()
		pages = append(pages, Page{
			URL:      requested,
			FinalURL: r.Request.URL.String(),
			Body:     body,
		})
		mu.Unlock()
	})
	c.OnError(func(r *colly.Response, err error) {
		f.logger.Warn("fetching page failed", "url", r.Request.URL.String(), "error", err)
	})

	for _, u := range urls {
		if err := c.Visit(u); err != nil {
			f.logger.Warn("visiting url failed", "url", u, "error", err)
		}
	}
	c.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetching pages: %w", err)
	}
	return pages, nil
}
