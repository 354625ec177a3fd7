// Package orchestrator routes each query through local retrieval, the
// sufficiency check, and the optional web breakout, then synthesizes an
// answer labeled with exactly one response mode.
//
// The routing contract: local retrieval always runs first, web permission
// is a gate and never a bypass, a successful web search overrides an
// insufficient verdict, and a failed web search with permission granted
// degrades to model weights rather than refusing.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/koopa0/anchor/internal/evidence"
	"github.com/koopa0/anchor/internal/knowledge"
	"github.com/koopa0/anchor/internal/sufficiency"
)

// ErrDocumentNotFound is returned when an explicitly named document does not
// exist in the conversation.
var ErrDocumentNotFound = errors.New("document not found in conversation")

// RefusalText is returned verbatim for no_evidence_found. It is a constant
// so the refusal never costs a generation call.
const RefusalText = "I could not find anything in the provided documents that answers this question, and web search is disabled for this request. Try rephrasing the question or enabling web fallback."

// maxEvidenceInPrompt caps how many items enter the synthesis prompt.
const maxEvidenceInPrompt = 12

// maxItemChars caps each evidence item's text in the synthesis prompt.
const maxItemChars = 2000

// Fusing runs hybrid local retrieval and returns fused evidence.
type Fusing interface {
	Fuse(ctx context.Context, query string, scope knowledge.Scope) ([]evidence.Item, error)
}

// Evaluating judges whether evidence covers a query.
type Evaluating interface {
	Evaluate(ctx context.Context, query string, items []evidence.Item) (sufficiency.Decision, error)
}

// WebSearching runs the web breakout and returns live-web evidence.
type WebSearching interface {
	Search(ctx context.Context, queryTerms string) ([]evidence.Item, error)
}

// ScopeReader answers questions about what is indexed in a scope.
type ScopeReader interface {
	CountInScope(ctx context.Context, scope knowledge.Scope) (int, error)
	FindDocument(ctx context.Context, conversationID uuid.UUID, name string) (*knowledge.DocumentRef, error)
}

// Request is one query to route.
type Request struct {
	Query          string
	ConversationID uuid.UUID

	// DocumentID pins retrieval to a single document when set.
	DocumentID *uuid.UUID

	// DocumentName pins retrieval by name (the @file form) when DocumentID
	// is not given. The document must exist in the conversation.
	DocumentName string

	// WebFallback grants permission to reach the web. It does not force
	// a web search.
	WebFallback bool
}

// Answer is the routed result.
type Answer struct {
	Text      string
	Mode      evidence.ResponseMode
	Citations []evidence.Citation
}

// Orchestrator owns the routing state machine.
type Orchestrator struct {
	fuser     Fusing
	evaluator Evaluating
	web       WebSearching
	scope     ScopeReader

	g     *genkit.Genkit
	model string

	retry   RetryConfig
	limiter *rate.Limiter
	circuit *CircuitBreaker
	logger  *slog.Logger
}

// New creates an orchestrator. The web agent may be nil when the deployment
// has no search provider configured; web fallback requests then degrade the
// same way a failed search does.
func New(fuser Fusing, evaluator Evaluating, web WebSearching, scope ScopeReader,
	g *genkit.Genkit, model string, logger *slog.Logger) (*Orchestrator, error) {
	if fuser == nil {
		return nil, fmt.Errorf("fuser is required")
	}
	if evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	if scope == nil {
		return nil, fmt.Errorf("scope reader is required")
	}
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		fuser:     fuser,
		evaluator: evaluator,
		web:       web,
		scope:     scope,
		g:         g,
		model:     model,
		retry:     DefaultRetryConfig(),
		limiter:   rate.NewLimiter(rate.Limit(2), 5),
		circuit:   NewCircuitBreaker(DefaultCircuitBreakerConfig()),
		logger:    logger,
	}, nil
}

// Answer routes one query end to end.
func (o *Orchestrator) Answer(ctx context.Context, req Request) (*Answer, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if req.ConversationID == uuid.Nil {
		return nil, fmt.Errorf("conversation ID is required")
	}

	sc := knowledge.Scope{ConversationID: req.ConversationID}
	if req.DocumentID != nil && *req.DocumentID != uuid.Nil {
		sc.DocumentID = req.DocumentID
	} else if name := strings.TrimSpace(req.DocumentName); name != "" {
		doc, err := o.scope.FindDocument(ctx, req.ConversationID, name)
		if err != nil {
			return nil, fmt.Errorf("resolving document scope: %w", err)
		}
		if doc == nil {
			return nil, fmt.Errorf("document %q: %w", name, ErrDocumentNotFound)
		}
		sc.DocumentID = &doc.ID
	}

	chunkCount, err := o.scope.CountInScope(ctx, sc)
	if err != nil {
		return nil, fmt.Errorf("counting indexed chunks: %w", err)
	}

	// Local retrieval runs unconditionally, before any network decision.
	var items []evidence.Item
	if chunkCount > 0 {
		items, err = o.fuser.Fuse(ctx, query, sc)
		if err != nil {
			return nil, fmt.Errorf("local retrieval: %w", err)
		}
	}

	// Empty evidence never reaches the evaluator. The verdict is
	// insufficient by construction and the search terms are the raw query.
	verdict := sufficiency.Decision{SearchQuery: query}
	if len(items) > 0 {
		verdict, err = o.evaluator.Evaluate(ctx, query, items)
		if err != nil {
			// Fail closed: an unreachable judge must not escalate
			// to the network.
			o.logger.Warn("sufficiency evaluation failed, treating as sufficient", "error", err)
			verdict = sufficiency.Decision{Sufficient: true}
		}
	}

	r := decide(len(items), chunkCount, verdict.Sufficient, req.WebFallback)
	o.logger.Info("query routed",
		"route", r.String(),
		"evidence_count", len(items),
		"chunks_in_scope", chunkCount,
		"sufficient", verdict.Sufficient,
		"web_fallback", req.WebFallback)

	switch r {
	case routeAnswerLocal:
		return o.answerGrounded(ctx, query, items, evidence.ModeGroundedInDocs)
	case routeWebSearch:
		return o.answerViaWeb(ctx, query, verdict.SearchQuery, items)
	case routeInternal:
		return o.answerInternal(ctx, query)
	case routeRefuse:
		return &Answer{Text: RefusalText, Mode: evidence.ModeNoEvidence}, nil
	default:
		return nil, fmt.Errorf("unhandled route %v", r)
	}
}

// answerViaWeb runs the breakout and resolves the post-search routes. Web
// failure with permission granted always degrades to model weights, never
// to a refusal.
func (o *Orchestrator) answerViaWeb(ctx context.Context, query, searchTerms string, local []evidence.Item) (*Answer, error) {
	terms := strings.TrimSpace(searchTerms)
	if terms == "" {
		terms = query
	}

	var webItems []evidence.Item
	if o.web != nil {
		var err error
		webItems, err = o.web.Search(ctx, terms)
		if err != nil {
			o.logger.Warn("web breakout failed, falling back to model weights",
				"terms", terms, "error", err)
			webItems = nil
		}
	} else {
		o.logger.Warn("web fallback requested but no search provider configured")
	}

	if len(webItems) == 0 {
		return o.answerInternal(ctx, query)
	}

	if len(local) == 0 {
		// Direct-web path: nothing local anchored the search, so the
		// evaluator doubles as a relevance gate on the web evidence.
		gate, err := o.evaluator.Evaluate(ctx, query, webItems)
		if err != nil {
			o.logger.Warn("web relevance gate failed, keeping web evidence", "error", err)
		} else if !gate.Sufficient {
			o.logger.Info("web evidence discounted by relevance gate", "terms", terms)
			return o.answerInternal(ctx, query)
		}
		return o.answerGrounded(ctx, query, webItems, evidence.ModeGroundedInWeb)
	}

	// Web success overrides the insufficient verdict. The local items were
	// already judged insufficient, so they are dropped rather than cited
	// next to evidence that actually answers the question.
	return o.answerGrounded(ctx, query, webItems, evidence.ModeGroundedInWeb)
}

func (o *Orchestrator) answerGrounded(ctx context.Context, query string, items []evidence.Item, mode evidence.ResponseMode) (*Answer, error) {
	if len(items) > maxEvidenceInPrompt {
		items = items[:maxEvidenceInPrompt]
	}
	text, err := o.generate(ctx, groundedPrompt(query, items))
	if err != nil {
		return nil, fmt.Errorf("synthesizing answer: %w", err)
	}
	return &Answer{Text: text, Mode: mode, Citations: evidence.Citations(items)}, nil
}

func (o *Orchestrator) answerInternal(ctx context.Context, query string) (*Answer, error) {
	text, err := o.generate(ctx, internalPrompt(query))
	if err != nil {
		return nil, fmt.Errorf("synthesizing answer: %w", err)
	}
	return &Answer{Text: text, Mode: evidence.ModeInternal}, nil
}

// generate runs one synthesis call through the circuit breaker and the
// retry loop.
func (o *Orchestrator) generate(ctx context.Context, prompt string) (string, error) {
	if err := o.circuit.Allow(); err != nil {
		return "", err
	}

	var resp *ai.ModelResponse
	err := o.executeWithRetry(ctx, func() error {
		var genErr error
		resp, genErr = genkit.Generate(ctx, o.g,
			ai.WithModelName(o.model),
			ai.WithPrompt(prompt),
		)
		return genErr
	})
	if err != nil {
		o.circuit.Failure()
		return "", err
	}
	o.circuit.Success()
	return strings.TrimSpace(sufficiency.StripThinking(resp.Text())), nil
}

func groundedPrompt(query string, items []evidence.Item) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the numbered evidence below. ")
	b.WriteString("Cite evidence inline with bracketed numbers like [1]. ")
	b.WriteString("If parts of the question are not covered by the evidence, say so.\n\n")
	for i, it := range items {
		text := it.Text
		if len(text) > maxItemChars {
			text = text[:maxItemChars]
		}
		label := it.Title
		if label == "" {
			label = it.SourceID
		}
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, label, text)
	}
	fmt.Fprintf(&b, "Question: %s\n\nAnswer:", query)
	return b.String()
}

func internalPrompt(query string) string {
	return fmt.Sprintf(`Answer the question from your general knowledge. No supporting documents were found, so state clearly that the answer is not grounded in the user's documents and may need verification.

Question: %s

Answer:`, query)
}
