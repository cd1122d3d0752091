package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/paymentops/copilot/internal/log"
	"github.com/paymentops/copilot/internal/pipeline"
)

// MaxQuestionLength bounds the question body.
const MaxQuestionLength = 2000

// Asker runs one question/answer turn. Satisfied by *pipeline.Pipeline.
type Asker interface {
	Ask(ctx context.Context, req pipeline.Request) *pipeline.Response
}

// QueryHandler handles the question-answering endpoint.
type QueryHandler struct {
	asker  Asker
	logger log.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(asker Asker, logger log.Logger) *QueryHandler {
	return &QueryHandler{asker: asker, logger: logger}
}

// RegisterRoutes registers query routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/query", h.ask)
}

// QueryRequest is the request body for the query endpoint. Field names
// mirror the response envelope: query is the question, chat_id threads
// a follow-up onto an existing conversation.
type QueryRequest struct {
	Question       string `json:"query"`
	ConversationID string `json:"chat_id"`
}

// ask answers one question. Every accepted request is answered with the
// uniform envelope; fatal pipeline failures arrive as success=false
// with HTTP 200, since the request itself was well-formed.
func (h *QueryHandler) ask(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query must not be empty")
		return
	}
	if len(req.Question) > MaxQuestionLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "query too long (max 2000 characters)")
		return
	}

	resp := h.asker.Ask(r.Context(), pipeline.Request{
		Question:       req.Question,
		ConversationID: req.ConversationID,
	})

	status := http.StatusOK
	if resp.ErrorKind == pipeline.KindInvalidRequest {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}
