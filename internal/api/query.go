package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/koopa0/anchor/internal/evidence"
	"github.com/koopa0/anchor/internal/knowledge"
	"github.com/koopa0/anchor/internal/orchestrator"
)

// maxQueryBodyBytes caps the request body size for the query endpoint.
const maxQueryBodyBytes = 64 * 1024

// Answerer routes one query end to end. Implemented by the orchestrator.
type Answerer interface {
	Answer(ctx context.Context, req orchestrator.Request) (*orchestrator.Answer, error)
}

// queryHandler holds dependencies for the query endpoint.
type queryHandler struct {
	answerer Answerer
	logger   *slog.Logger
}

// queryRequest is the JSON body of POST /api/v1/query.
type queryRequest struct {
	Query              string `json:"query"`
	ConversationID     string `json:"conversationId"`
	DocumentID         string `json:"documentId,omitempty"`
	DocumentName       string `json:"documentName,omitempty"`
	WebFallbackEnabled bool   `json:"webFallbackEnabled"`
}

// queryResponse is the JSON body of a successful query.
type queryResponse struct {
	Answer       string              `json:"answer"`
	ResponseMode string              `json:"responseMode"`
	CitedSources []evidence.Citation `json:"citedSources"`
}

// answer handles POST /api/v1/query.
func (h *queryHandler) answer(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBodyBytes)

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON", h.logger)
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		WriteError(w, http.StatusBadRequest, "missing_query", "query is required", h.logger)
		return
	}
	if len(query) > knowledge.MaxQueryLen {
		WriteError(w, http.StatusBadRequest, "query_too_long", "query exceeds the maximum length", h.logger)
		return
	}

	conversationID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_conversation_id", "conversationId must be a UUID", h.logger)
		return
	}

	var documentID *uuid.UUID
	if req.DocumentID != "" {
		id, err := uuid.Parse(req.DocumentID)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_document_id", "documentId must be a UUID", h.logger)
			return
		}
		documentID = &id
	}

	ans, err := h.answerer.Answer(r.Context(), orchestrator.Request{
		Query:          query,
		ConversationID: conversationID,
		DocumentID:     documentID,
		DocumentName:   req.DocumentName,
		WebFallback:    req.WebFallbackEnabled,
	})
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrCircuitOpen):
			WriteError(w, http.StatusServiceUnavailable, "backend_unavailable", "generation backend is temporarily unavailable", h.logger)
		case errors.Is(err, context.Canceled):
			// Client went away; nothing useful to write.
			h.logger.Debug("query canceled", "error", err)
		case errors.Is(err, orchestrator.ErrDocumentNotFound):
			WriteError(w, http.StatusNotFound, "document_not_found", err.Error(), h.logger)
		default:
			h.logger.Error("answering query", "error", err, "conversation_id", conversationID)
			WriteError(w, http.StatusInternalServerError, "query_failed", "failed to answer query", h.logger)
		}
		return
	}

	citations := ans.Citations
	if citations == nil {
		citations = []evidence.Citation{}
	}

	WriteJSON(w, http.StatusOK, queryResponse{
		Answer:       ans.Text,
		ResponseMode: string(ans.Mode),
		CitedSources: citations,
	}, h.logger)
}
