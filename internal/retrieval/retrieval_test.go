package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/koopa0/anchor/internal/config"
	"github.com/koopa0/anchor/internal/evidence"
	"github.com/koopa0/anchor/internal/knowledge"
	"github.com/koopa0/anchor/internal/log"
)

type fakeDense struct {
	hits []knowledge.Hit
	err  error
}

func (f *fakeDense) DenseSearch(_ context.Context, _ string, _ knowledge.Scope, _ int) ([]knowledge.Hit, error) {
	return f.hits, f.err
}

type fakeLexical struct {
	hits []knowledge.Hit
	err  error
}

func (f *fakeLexical) LexicalSearch(_ context.Context, _ string, _ knowledge.Scope, _ int) ([]knowledge.Hit, error) {
	return f.hits, f.err
}

type fakeReranker struct {
	out    []evidence.Item
	err    error
	called bool
}

func (f *fakeReranker) Rerank(_ context.Context, _ string, items []evidence.Item) ([]evidence.Item, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	if f.out != nil {
		return f.out, nil
	}
	return items, nil
}

func testCfg() config.RetrievalConfig {
	return config.RetrievalConfig{CandidatePool: 20, TopN: 8}
}

func newTestFuser(t *testing.T, dense DenseSearcher, lexical LexicalSearcher, reranker Reranker, cfg config.RetrievalConfig) *Fuser {
	t.Helper()
	f, err := NewFuser(dense, lexical, reranker, cfg, log.NewNop())
	if err != nil {
		t.Fatalf("NewFuser() error: %v", err)
	}
	return f
}

func TestFuser_MergesBothPaths(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	f := newTestFuser(t,
		&fakeDense{hits: []knowledge.Hit{hit(a, "a.md", 0)}},
		&fakeLexical{hits: []knowledge.Hit{hit(b, "b.md", 0)}},
		nil, testCfg())

	items, err := f.Fuse(context.Background(), "query", knowledge.Scope{ConversationID: uuid.New()})
	if err != nil {
		t.Fatalf("Fuse() error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Fuse() returned %d items, want 2", len(items))
	}
	for _, it := range items {
		if it.Kind != evidence.KindLocal {
			t.Errorf("item %s kind = %s, want %s", it.SourceID, it.Kind, evidence.KindLocal)
		}
	}
}

func TestFuser_LexicalFailureDegrades(t *testing.T) {
	a := uuid.New()
	f := newTestFuser(t,
		&fakeDense{hits: []knowledge.Hit{hit(a, "a.md", 0)}},
		&fakeLexical{err: errors.New("tsquery syntax")},
		nil, testCfg())

	items, err := f.Fuse(context.Background(), "query", knowledge.Scope{ConversationID: uuid.New()})
	if err != nil {
		t.Fatalf("Fuse() error: %v, want degraded success", err)
	}
	if len(items) != 1 || items[0].SourceID != a.String() {
		t.Errorf("Fuse() = %v, want the dense hit only", items)
	}
}

func TestFuser_DenseFailureFails(t *testing.T) {
	f := newTestFuser(t,
		&fakeDense{err: errors.New("embedder down")},
		&fakeLexical{hits: []knowledge.Hit{hit(uuid.New(), "b.md", 0)}},
		nil, testCfg())

	if _, err := f.Fuse(context.Background(), "query", knowledge.Scope{ConversationID: uuid.New()}); err == nil {
		t.Fatal("Fuse() = nil error, want dense retrieval error")
	}
}

func TestFuser_TruncatesToTopN(t *testing.T) {
	var hits []knowledge.Hit
	for i := 0; i < 10; i++ {
		hits = append(hits, hit(uuid.New(), "doc.md", i))
	}
	cfg := testCfg()
	cfg.TopN = 3

	f := newTestFuser(t, &fakeDense{hits: hits}, &fakeLexical{}, nil, cfg)
	items, err := f.Fuse(context.Background(), "query", knowledge.Scope{ConversationID: uuid.New()})
	if err != nil {
		t.Fatalf("Fuse() error: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("Fuse() returned %d items, want top 3", len(items))
	}
}

func TestFuser_RerankerDisabledByDefault(t *testing.T) {
	rr := &fakeReranker{}
	f := newTestFuser(t,
		&fakeDense{hits: []knowledge.Hit{hit(uuid.New(), "a.md", 0)}},
		&fakeLexical{}, rr, testCfg())

	if _, err := f.Fuse(context.Background(), "query", knowledge.Scope{ConversationID: uuid.New()}); err != nil {
		t.Fatalf("Fuse() error: %v", err)
	}
	if rr.called {
		t.Error("reranker called with rerank_enabled=false")
	}
}

func TestFuser_RerankerReplacesOrdering(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	hits := []knowledge.Hit{hit(a, "a.md", 0), hit(b, "b.md", 0)}

	reversed := []evidence.Item{
		{SourceID: b.String(), Kind: evidence.KindLocal, Score: 0.9},
		{SourceID: a.String(), Kind: evidence.KindLocal, Score: 0.1},
	}
	cfg := testCfg()
	cfg.RerankEnabled = true
	rr := &fakeReranker{out: reversed}

	f := newTestFuser(t, &fakeDense{hits: hits}, &fakeLexical{}, rr, cfg)
	items, err := f.Fuse(context.Background(), "query", knowledge.Scope{ConversationID: uuid.New()})
	if err != nil {
		t.Fatalf("Fuse() error: %v", err)
	}
	if !rr.called {
		t.Fatal("reranker not called with rerank_enabled=true")
	}
	if items[0].SourceID != b.String() {
		t.Errorf("items[0] = %s, want reranked first %s", items[0].SourceID, b)
	}
}

func TestFuser_RerankerFailureKeepsFusionOrder(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	hits := []knowledge.Hit{hit(a, "a.md", 0), hit(b, "b.md", 0)}

	cfg := testCfg()
	cfg.RerankEnabled = true
	rr := &fakeReranker{err: errors.New("model unavailable")}

	f := newTestFuser(t, &fakeDense{hits: hits}, &fakeLexical{}, rr, cfg)
	items, err := f.Fuse(context.Background(), "query", knowledge.Scope{ConversationID: uuid.New()})
	if err != nil {
		t.Fatalf("Fuse() error: %v, want rerank failure swallowed", err)
	}
	if items[0].SourceID != a.String() {
		t.Errorf("items[0] = %s, want fusion order preserved (%s)", items[0].SourceID, a)
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no fences", `[{"index":1}]`, `[{"index":1}]`},
		{"json fence", "```json\n[{\"index\":1}]\n```", `[{"index":1}]`},
		{"bare fence", "```\n[]\n```", "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFences(tt.input); got != tt.want {
				t.Errorf("stripCodeFences() = %q, want %q", got, tt.want)
			}
		})
	}
}
