package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/anchor/db"
	"github.com/koopa0/anchor/internal/api"
	"github.com/koopa0/anchor/internal/config"
	"github.com/koopa0/anchor/internal/knowledge"
	"github.com/koopa0/anchor/internal/observability"
	"github.com/koopa0/anchor/internal/orchestrator"
	"github.com/koopa0/anchor/internal/retrieval"
	"github.com/koopa0/anchor/internal/security"
	"github.com/koopa0/anchor/internal/sufficiency"
	"github.com/koopa0/anchor/internal/webagent"
)

// parseRateBurst reads ANCHOR_RATE_BURST from the environment.
// Returns 0 (use the server default) if unset or invalid.
func parseRateBurst() int {
	v := os.Getenv("ANCHOR_RATE_BURST")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Setup creates and initializes the application. The returned App owns all
// resources; call Close() to release them.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing must be registered before Genkit initialization so Genkit's
	// TracerProvider picks up the exporter.
	a.otelCleanup = provideOtelShutdown(ctx, cfg)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	a.Genkit = g
	logger.Info("initialized Genkit", "model", cfg.ModelName)

	a.Embedder = googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if a.Embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}

	store, err := knowledge.NewStore(pool, a.Embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("creating knowledge store: %w", err)
	}
	a.Knowledge = store

	var reranker retrieval.Reranker
	if cfg.Retrieval.RerankEnabled {
		lr, err := retrieval.NewLLMReranker(g, cfg.FullModelName(), logger)
		if err != nil {
			return nil, fmt.Errorf("creating reranker: %w", err)
		}
		reranker = lr
	}

	fuser, err := retrieval.NewFuser(store, store, reranker, cfg.Retrieval, logger)
	if err != nil {
		return nil, fmt.Errorf("creating fuser: %w", err)
	}
	a.Fuser = fuser

	evaluator, err := sufficiency.NewEvaluator(g, cfg.FullModelName(), logger)
	if err != nil {
		return nil, fmt.Errorf("creating sufficiency evaluator: %w", err)
	}
	a.Evaluator = evaluator

	webAgent, err := provideWebAgent(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.WebAgent = webAgent

	// The orchestrator takes the web agent as an interface; a typed nil
	// must stay nil.
	var web orchestrator.WebSearching
	if webAgent != nil {
		web = webAgent
	}

	orch, err := orchestrator.New(fuser, evaluator, web, store, g, cfg.FullModelName(), logger)
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}
	a.Orchestrator = orch

	server, err := api.NewServer(api.ServerConfig{
		Logger:      logger,
		Answerer:    orch,
		Documents:   store,
		Pool:        pool,
		CORSOrigins: cfg.CORSOrigins,
		IsDev:       cfg.Tracing.Environment == "dev",
		TrustProxy:  cfg.TrustProxy,
		RateBurst:   parseRateBurst(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	a.Server = server

	return a, nil
}

// provideOtelShutdown registers OTLP trace export and returns a cleanup that
// flushes pending spans with a bounded timeout.
func provideOtelShutdown(ctx context.Context, cfg *config.Config) func() {
	shutdown, err := observability.SetupTracing(ctx, observability.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		Environment: cfg.Tracing.Environment,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil || shutdown == nil {
		return func() {}
	}

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and creates a tuned PostgreSQL pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideWebAgent builds the web breakout pipeline: SearXNG search, colly
// fetch over an SSRF-guarded transport, readability extraction. Returns nil
// when no search provider is configured.
func provideWebAgent(cfg *config.Config, logger *slog.Logger) (*webagent.Agent, error) {
	if cfg.SearXNG.BaseURL == "" {
		logger.Info("no search provider configured, web fallback disabled")
		return nil, nil
	}

	validator := security.NewURL()

	searchClient := &http.Client{
		Transport:     validator.SafeTransport(),
		CheckRedirect: validator.ValidateRedirect,
		Timeout:       10 * time.Second,
	}
	provider, err := webagent.NewSearXNG(cfg.SearXNG.BaseURL, searchClient, logger)
	if err != nil {
		return nil, fmt.Errorf("creating search provider: %w", err)
	}

	fetcher, err := webagent.NewCollyFetcher(cfg.WebScraper, validator.SafeTransport(), logger)
	if err != nil {
		return nil, fmt.Errorf("creating web fetcher: %w", err)
	}

	agent, err := webagent.New(provider, fetcher, validator, cfg.WebAgent, logger)
	if err != nil {
		return nil, fmt.Errorf("creating web agent: %w", err)
	}
	return agent, nil
}
