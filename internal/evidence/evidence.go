// Package evidence defines the value types shared across the retrieval
// pipeline: evidence items produced by the local indices and the web agent,
// the response mode attached to every answer, and citations.
package evidence

// SourceKind tells where an evidence item came from.
type SourceKind string

const (
	// KindLocal marks evidence retrieved from the locally indexed corpus.
	KindLocal SourceKind = "local-file"
	// KindWeb marks evidence fetched live from the web.
	KindWeb SourceKind = "live-web"
)

// ResponseMode labels how an answer was grounded. It is set exactly once per
// query, when the routing decision resolves.
type ResponseMode string

const (
	ModeGroundedInDocs ResponseMode = "grounded_in_docs"
	ModeGroundedInWeb  ResponseMode = "grounded_in_web"
	ModeInternal       ResponseMode = "internal_llm_weights"
	ModeNoEvidence     ResponseMode = "no_evidence_found"
)

// Item is one retrieved piece of evidence. Items are immutable once built;
// fusion and reranking produce new slices rather than mutating inputs.
type Item struct {
	// SourceID uniquely identifies the underlying source (chunk ID for
	// local evidence, URL for web evidence). Deduplication keys on it.
	SourceID string

	Kind  SourceKind
	Text  string
	Title string

	// URL is set for live-web items only.
	URL string

	// OriginRank is the 1-based rank the item held in the list that first
	// produced it, before fusion.
	OriginRank int

	// Score is the fused (or reranked) relevance score. Higher is better.
	Score float64
}

// Citation is the caller-facing reference for one evidence item used in an
// answer.
type Citation struct {
	SourceID string     `json:"sourceId"`
	Kind     SourceKind `json:"kind"`
	Title    string     `json:"title,omitempty"`
	URL      string     `json:"url,omitempty"`
}

// Citations builds the citation list for a set of items, preserving order.
func Citations(items []Item) []Citation {
	if len(items) == 0 {
		return nil
	}
	out := make([]Citation, 0, len(items))
	for _, it := range items {
		out = append(out, Citation{
			SourceID: it.SourceID,
			Kind:     it.Kind,
			Title:    it.Title,
			URL:      it.URL,
		})
	}
	return out
}
