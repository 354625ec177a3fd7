package config

// SearXNGConfig holds SearXNG service configuration for web search.
type SearXNGConfig struct {
	// BaseURL is the SearXNG instance URL (e.g., http://searxng:8080)
	BaseURL string `mapstructure:"base_url" json:"base_url"`
}

// WebScraperConfig holds fetcher configuration for web page retrieval.
type WebScraperConfig struct {
	// Parallelism is max concurrent requests per domain (default: 2)
	Parallelism int `mapstructure:"parallelism" json:"parallelism"`
	// DelayMs is delay between requests in milliseconds (default: 1000)
	DelayMs int `mapstructure:"delay_ms" json:"delay_ms"`
	// TimeoutMs is request timeout in milliseconds (default: 30000)
	TimeoutMs int `mapstructure:"timeout_ms" json:"timeout_ms"`
}

// WebAgentConfig bounds what the web breakout contributes per query.
type WebAgentConfig struct {
	// MaxResults is how many search hits are fetched (default: 2)
	MaxResults int `mapstructure:"max_results" json:"max_results"`
	// PerSourceLimit caps extracted text per page, in runes (default: 4000)
	PerSourceLimit int `mapstructure:"per_source_limit" json:"per_source_limit"`
}
