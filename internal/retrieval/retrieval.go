// Package retrieval fuses the local indices into one ranked evidence set.
//
// Dense and lexical retrieval run concurrently; their ranked lists are merged
// with reciprocal rank fusion and optionally re-scored by a reranker. A
// lexical failure degrades to dense-only retrieval, a dense failure fails the
// query.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/koopa0/anchor/internal/config"
	"github.com/koopa0/anchor/internal/evidence"
	"github.com/koopa0/anchor/internal/knowledge"
)

// DenseSearcher retrieves by embedding similarity.
type DenseSearcher interface {
	DenseSearch(ctx context.Context, query string, scope knowledge.Scope, limit int) ([]knowledge.Hit, error)
}

// LexicalSearcher retrieves by full-text rank.
type LexicalSearcher interface {
	LexicalSearch(ctx context.Context, query string, scope knowledge.Scope, limit int) ([]knowledge.Hit, error)
}

// Reranker re-scores a fused candidate set against the query. Implementations
// fully replace the fusion ordering for the candidates they return.
type Reranker interface {
	Rerank(ctx context.Context, query string, items []evidence.Item) ([]evidence.Item, error)
}

// Fuser runs both retrieval paths and produces the fused evidence set.
type Fuser struct {
	dense    DenseSearcher
	lexical  LexicalSearcher
	reranker Reranker // nil disables reranking
	cfg      config.RetrievalConfig
	logger   *slog.Logger
}

// NewFuser creates a Fuser. reranker may be nil.
func NewFuser(dense DenseSearcher, lexical LexicalSearcher, reranker Reranker,
	cfg config.RetrievalConfig, logger *slog.Logger) (*Fuser, error) {
	if dense == nil {
		return nil, fmt.Errorf("dense searcher is required")
	}
	if lexical == nil {
		return nil, fmt.Errorf("lexical searcher is required")
	}
	if cfg.CandidatePool <= 0 || cfg.TopN <= 0 {
		return nil, fmt.Errorf("candidate pool and top n must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fuser{dense: dense, lexical: lexical, reranker: reranker, cfg: cfg, logger: logger}, nil
}

type searchResult struct {
	hits []knowledge.Hit
	err  error
}

// Fuse retrieves, merges, and ranks local evidence for the query.
// Returns an empty slice when neither index produced a hit.
func (f *Fuser) Fuse(ctx context.Context, query string, scope knowledge.Scope) ([]evidence.Item, error) {
	denseCh := make(chan searchResult, 1)
	lexCh := make(chan searchResult, 1)

	go func() {
		hits, err := f.dense.DenseSearch(ctx, query, scope, f.cfg.CandidatePool)
		denseCh <- searchResult{hits: hits, err: err}
	}()
	go func() {
		hits, err := f.lexical.LexicalSearch(ctx, query, scope, f.cfg.CandidatePool)
		lexCh <- searchResult{hits: hits, err: err}
	}()

	dense := <-denseCh
	lexical := <-lexCh

	if dense.err != nil {
		return nil, fmt.Errorf("dense retrieval: %w", dense.err)
	}
	if lexical.err != nil {
		// Lexical is a ranking refinement, not a correctness requirement.
		f.logger.Warn("lexical retrieval failed, degrading to dense-only", "error", lexical.err)
		lexical.hits = nil
	}

	items := fuse(dense.hits, lexical.hits)
	if len(items) == 0 {
		return []evidence.Item{}, nil
	}

	if f.reranker != nil && f.cfg.RerankEnabled {
		reranked, err := f.reranker.Rerank(ctx, query, items)
		if err != nil {
			f.logger.Warn("reranking failed, keeping fusion order", "error", err)
		} else if len(reranked) > 0 {
			items = reranked
		}
	}

	if len(items) > f.cfg.TopN {
		items = items[:f.cfg.TopN]
	}

	f.logger.Debug("fused local evidence",
		"dense_hits", len(dense.hits),
		"lexical_hits", len(lexical.hits),
		"fused", len(items))
	return items, nil
}
