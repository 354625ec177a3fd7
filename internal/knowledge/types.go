package knowledge

import (
	"time"

	"github.com/google/uuid"
)

const (
	// VectorDimension is the embedding dimension stored in pgvector.
	// gemini-embedding-001 truncates to 768 via OutputDimensionality.
	VectorDimension int32 = 768

	// EmbedTimeout bounds a single embedding call.
	EmbedTimeout = 15 * time.Second

	// MaxQueryLen caps the query text sent to the embedder and to
	// plainto_tsquery.
	MaxQueryLen = 2000

	// MaxContentLength caps chunk content on upsert.
	MaxContentLength = 32768

	// MaxLimit is the absolute cap on search result counts.
	MaxLimit = 100
)

// Chunk is one indexed slice of a document.
type Chunk struct {
	ID             uuid.UUID
	DocumentID     uuid.UUID
	ConversationID uuid.UUID
	DocumentName   string
	Ordinal        int
	Content        string
	CreatedAt      time.Time
}

// Hit is a chunk returned by one of the search paths, with its index score.
type Hit struct {
	Chunk
	// Score is cosine similarity for dense hits, ts_rank_cd for lexical hits.
	Score float64
}

// DocumentRef identifies one document visible in a conversation.
type DocumentRef struct {
	ID   uuid.UUID
	Name string
}

// Scope restricts retrieval to a conversation, optionally narrowed to a
// single explicitly named document. An explicit document excludes every
// other document in the conversation.
type Scope struct {
	ConversationID uuid.UUID
	DocumentID     *uuid.UUID
}

// Explicit reports whether the scope pins a single document.
func (s Scope) Explicit() bool {
	return s.DocumentID != nil
}
