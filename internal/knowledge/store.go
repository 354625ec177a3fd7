// Package knowledge manages the locally indexed corpus backing retrieval:
// document chunks stored in PostgreSQL with a pgvector embedding column for
// dense search and a generated tsvector column for lexical search.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

// chunkCols is the standard SELECT column list for scanHits.
const chunkCols = `id, document_id, conversation_id, document_name, ordinal, content, created_at`

// Store manages indexed chunks backed by PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewStore creates a chunk Store.
func NewStore(pool *pgxpool.Pool, embedder ai.Embedder, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, embedder: embedder, logger: logger}, nil
}

// embed generates a vector embedding for the given text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// normalizeQuery applies the shared guards for both search paths.
// Returns "" when the query cannot be searched.
func normalizeQuery(query string) string {
	if strings.ContainsRune(query, 0) {
		return ""
	}
	if len(query) > MaxQueryLen {
		query = query[:MaxQueryLen]
	}
	return query
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// DenseSearch returns the chunks nearest to the query embedding within the
// scope, ordered by cosine similarity descending.
func (s *Store) DenseSearch(ctx context.Context, query string, scope Scope, limit int) ([]Hit, error) {
	query = normalizeQuery(query)
	if query == "" {
		return []Hit{}, nil
	}
	limit = clampLimit(limit)

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+chunkCols+`, 1 - (embedding <=> $1) AS similarity
		 FROM chunks
		 WHERE conversation_id = $2
		   AND ($3::uuid IS NULL OR document_id = $3)
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		vec, scope.ConversationID, scope.DocumentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("dense searching chunks: %w", err)
	}
	defer rows.Close()

	return scanHits(rows)
}

// LexicalSearch returns chunks matching the query by full-text rank within
// the scope. Rows that match no query term are excluded.
func (s *Store) LexicalSearch(ctx context.Context, query string, scope Scope, limit int) ([]Hit, error) {
	query = normalizeQuery(query)
	if query == "" {
		return []Hit{}, nil
	}
	limit = clampLimit(limit)

	rows, err := s.pool.Query(ctx,
		`SELECT `+chunkCols+`,
		        ts_rank_cd(search_text, plainto_tsquery('english', $1), 1) AS rank
		 FROM chunks
		 WHERE conversation_id = $2
		   AND ($3::uuid IS NULL OR document_id = $3)
		   AND search_text @@ plainto_tsquery('english', $1)
		 ORDER BY rank DESC
		 LIMIT $4`,
		query, scope.ConversationID, scope.DocumentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("lexical searching chunks: %w", err)
	}
	defer rows.Close()

	return scanHits(rows)
}

// UpsertChunk inserts or replaces one chunk. The (document_id, ordinal) pair
// is the natural key; re-indexing a document overwrites its chunks in place.
func (s *Store) UpsertChunk(ctx context.Context, ch Chunk) error {
	if ch.Content == "" {
		return fmt.Errorf("content is required")
	}
	if len(ch.Content) > MaxContentLength {
		return fmt.Errorf("content length %d exceeds maximum %d", len(ch.Content), MaxContentLength)
	}
	if ch.DocumentID == uuid.Nil || ch.ConversationID == uuid.Nil {
		return fmt.Errorf("document and conversation IDs are required")
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, ch.Content)
	if err != nil {
		return fmt.Errorf("embedding chunk: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO chunks (document_id, conversation_id, document_name, ordinal, content, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (document_id, ordinal)
		 DO UPDATE SET content = EXCLUDED.content,
		               embedding = EXCLUDED.embedding,
		               document_name = EXCLUDED.document_name`,
		ch.DocumentID, ch.ConversationID, ch.DocumentName, ch.Ordinal, ch.Content, vec,
	)
	if err != nil {
		return fmt.Errorf("upserting chunk: %w", err)
	}
	return nil
}

// CountInScope reports how many chunks are retrievable for the scope.
func (s *Store) CountInScope(ctx context.Context, scope Scope) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM chunks
		 WHERE conversation_id = $1
		   AND ($2::uuid IS NULL OR document_id = $2)`,
		scope.ConversationID, scope.DocumentID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// DocumentsInConversation lists the distinct documents indexed for a
// conversation.
func (s *Store) DocumentsInConversation(ctx context.Context, conversationID uuid.UUID) ([]DocumentRef, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT document_id, document_name
		 FROM chunks
		 WHERE conversation_id = $1
		 ORDER BY document_name`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var refs []DocumentRef
	for rows.Next() {
		var ref DocumentRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return refs, nil
}

// FindDocument resolves an explicitly named document within a conversation.
// The match is exact on document_name.
func (s *Store) FindDocument(ctx context.Context, conversationID uuid.UUID, name string) (*DocumentRef, error) {
	var ref DocumentRef
	err := s.pool.QueryRow(ctx,
		`SELECT DISTINCT document_id, document_name
		 FROM chunks
		 WHERE conversation_id = $1 AND document_name = $2`,
		conversationID, name,
	).Scan(&ref.ID, &ref.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding document %q: %w", name, err)
	}
	return &ref, nil
}

// scanHits reads chunk rows that carry one trailing score column.
func scanHits(rows pgx.Rows) ([]Hit, error) {
	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(
			&h.ID, &h.DocumentID, &h.ConversationID, &h.DocumentName,
			&h.Ordinal, &h.Content, &h.CreatedAt, &h.Score,
		); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return hits, nil
}
