package orchestrator

// route is the action the orchestrator takes after local retrieval and the
// sufficiency check have resolved.
type route int

const (
	// routeAnswerLocal synthesizes from local evidence (grounded_in_docs).
	routeAnswerLocal route = iota
	// routeWebSearch runs the web breakout before answering.
	routeWebSearch
	// routeInternal answers from model weights (internal_llm_weights).
	routeInternal
	// routeRefuse returns the fixed refusal (no_evidence_found).
	routeRefuse
)

func (r route) String() string {
	switch r {
	case routeAnswerLocal:
		return "answer-local"
	case routeWebSearch:
		return "web-search"
	case routeInternal:
		return "internal"
	case routeRefuse:
		return "refuse"
	default:
		return "unknown"
	}
}

// decide maps the retrieval outcome to a route. It is pure so the full
// decision table is unit-testable without I/O.
//
//	evidenceCount  fused local evidence items
//	scopeChunks    chunks indexed in the resolved scope
//	sufficient     evaluator verdict (false whenever evidenceCount == 0)
//	webEnabled     caller granted web fallback
//
// Web permission is a gate, never a bypass: a web route is only reachable
// after local retrieval already ran. Without permission, an empty scope
// (nothing indexed at all) answers from model weights; a populated scope
// whose evidence is insufficient or absent refuses rather than answering
// ungrounded against documents the caller provided.
func decide(evidenceCount, scopeChunks int, sufficient, webEnabled bool) route {
	if evidenceCount > 0 && sufficient {
		return routeAnswerLocal
	}
	if webEnabled {
		return routeWebSearch
	}
	if scopeChunks == 0 {
		return routeInternal
	}
	return routeRefuse
}
