package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/koopa0/anchor/internal/knowledge"
)

// maxIngestBodyBytes caps the request body size for document ingestion.
const maxIngestBodyBytes = 8 * 1024 * 1024

// maxIngestChunks caps how many chunks a single ingest request may carry.
const maxIngestChunks = 500

// DocumentStore is the subset of the knowledge store the document endpoints
// need.
type DocumentStore interface {
	DocumentsInConversation(ctx context.Context, conversationID uuid.UUID) ([]knowledge.DocumentRef, error)
	UpsertChunk(ctx context.Context, ch knowledge.Chunk) error
}

// documentHandler holds dependencies for the document endpoints.
type documentHandler struct {
	store  DocumentStore
	logger *slog.Logger
}

// documentItem is the JSON representation of one indexed document.
type documentItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// list handles GET /api/v1/conversations/{id}/documents.
func (h *documentHandler) list(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_conversation_id", "conversation id must be a UUID", h.logger)
		return
	}

	docs, err := h.store.DocumentsInConversation(r.Context(), conversationID)
	if err != nil {
		h.logger.Error("listing documents", "error", err, "conversation_id", conversationID)
		WriteError(w, http.StatusInternalServerError, "list_failed", "failed to list documents", h.logger)
		return
	}

	items := make([]documentItem, len(docs))
	for i, d := range docs {
		items[i] = documentItem{ID: d.ID.String(), Name: d.Name}
	}

	WriteJSON(w, http.StatusOK, map[string]any{"items": items}, h.logger)
}

// ingestRequest is the JSON body of POST /api/v1/conversations/{id}/documents.
// Chunks arrive pre-split; each is embedded and indexed in order.
type ingestRequest struct {
	Name   string   `json:"name"`
	Chunks []string `json:"chunks"`
}

// ingest handles POST /api/v1/conversations/{id}/documents.
func (h *documentHandler) ingest(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_conversation_id", "conversation id must be a UUID", h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxIngestBodyBytes)

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON", h.logger)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		WriteError(w, http.StatusBadRequest, "missing_name", "document name is required", h.logger)
		return
	}
	if len(req.Chunks) == 0 {
		WriteError(w, http.StatusBadRequest, "missing_chunks", "at least one chunk is required", h.logger)
		return
	}
	if len(req.Chunks) > maxIngestChunks {
		WriteError(w, http.StatusBadRequest, "too_many_chunks", "too many chunks in one request", h.logger)
		return
	}

	documentID := uuid.New()
	indexed := 0
	for i, content := range req.Chunks {
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		err := h.store.UpsertChunk(r.Context(), knowledge.Chunk{
			DocumentID:     documentID,
			ConversationID: conversationID,
			DocumentName:   name,
			Ordinal:        i,
			Content:        content,
		})
		if err != nil {
			h.logger.Error("indexing chunk", "error", err, "document", name, "ordinal", i)
			WriteError(w, http.StatusInternalServerError, "ingest_failed", "failed to index document", h.logger)
			return
		}
		indexed++
	}

	if indexed == 0 {
		WriteError(w, http.StatusBadRequest, "empty_chunks", "all chunks were empty", h.logger)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]any{
		"documentId": documentID.String(),
		"name":       name,
		"chunks":     indexed,
	}, h.logger)
}
