// Package api exposes the retrieval orchestrator over a JSON HTTP API.
//
// Endpoints:
//
//	POST /api/v1/query                            route one query
//	GET  /api/v1/conversations/{id}/documents     list indexed documents
//	POST /api/v1/conversations/{id}/documents     ingest a document
//	GET  /health                                  liveness probe
//	GET  /ready                                   readiness probe (DB ping)
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Answerer    Answerer      // Required
	Documents   DocumentStore // Required
	Pool        *pgxpool.Pool // Optional: nil disables DB check in /ready
	CORSOrigins []string      // Allowed origins for CORS
	IsDev       bool          // Disables HSTS
	TrustProxy  bool          // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst   int           // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Answerer == nil {
		return nil, errors.New("answerer is required")
	}
	if cfg.Documents == nil {
		return nil, errors.New("document store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	qh := &queryHandler{answerer: cfg.Answerer, logger: logger}
	dh := &documentHandler{store: cfg.Documents, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/query", qh.answer)
	mux.HandleFunc("GET /api/v1/conversations/{id}/documents", dh.list)
	mux.HandleFunc("POST /api/v1/conversations/{id}/documents", dh.ingest)

	rl := newIPLimiter(rateLimitConfig{RefillPerSec: 1.0, Burst: cfg.RateBurst})

	// Middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID sits before Logging so request_id is available in log
	// attributes. CORS sits before RateLimit so preflight OPTIONS gets
	// proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	isDev := cfg.IsDev
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, isDev)
		handler.ServeHTTP(w, r)
	})

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
