// Package app assembles the retrieval orchestrator from its parts: config,
// database pool, Genkit, the knowledge store, the fusion and sufficiency
// components, the web agent, and the HTTP server.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/anchor/internal/api"
	"github.com/koopa0/anchor/internal/config"
	"github.com/koopa0/anchor/internal/knowledge"
	"github.com/koopa0/anchor/internal/orchestrator"
	"github.com/koopa0/anchor/internal/retrieval"
	"github.com/koopa0/anchor/internal/sufficiency"
	"github.com/koopa0/anchor/internal/webagent"
)

// App is the core application container.
type App struct {
	Config *config.Config

	Genkit    *genkit.Genkit
	Embedder  ai.Embedder
	DBPool    *pgxpool.Pool
	Knowledge *knowledge.Store
	Fuser     *retrieval.Fuser
	Evaluator *sufficiency.Evaluator
	// WebAgent is nil when no search provider is configured; the
	// orchestrator then degrades web fallback to model weights.
	WebAgent     *webagent.Agent
	Orchestrator *orchestrator.Orchestrator
	Server       *api.Server

	logger      *slog.Logger
	otelCleanup func()
}

// Close releases all resources in reverse construction order.
func (a *App) Close() error {
	a.logger.Info("shutting down application")

	if a.DBPool != nil {
		a.DBPool.Close()
		a.logger.Info("database pool closed")
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
