package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/paymentops/copilot/internal/chatstore"
	"github.com/paymentops/copilot/internal/log"
)

// Listing bounds.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// ConversationReader serves persisted conversations. Satisfied by
// *chatstore.Store, including its degraded states.
type ConversationReader interface {
	History(ctx context.Context, conversationID uuid.UUID) ([]chatstore.Turn, error)
	ListConversations(ctx context.Context, limit int) ([]chatstore.ConversationSummary, error)
	Status() chatstore.Status
}

// ChatsHandler handles conversation listing and history endpoints.
type ChatsHandler struct {
	store  ConversationReader
	logger log.Logger
}

// NewChatsHandler creates a new chats handler.
func NewChatsHandler(store ConversationReader, logger log.Logger) *ChatsHandler {
	return &ChatsHandler{store: store, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/chats", h.list)
	mux.HandleFunc("GET /api/v1/chats/{id}/history", h.history)
}

// conversationJSON is the wire form of a conversation summary.
type conversationJSON struct {
	ConversationID string    `json:"chat_id"`
	LastQuery      string    `json:"last_query"`
	LastTimestamp  time.Time `json:"last_timestamp"`
	TurnCount      int64     `json:"turn_count"`
}

// list returns conversations ordered by most recent activity. A
// degraded chat store yields an empty list; the store state is included
// so clients can tell "no conversations" from "history unavailable".
func (h *ChatsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", DefaultListLimit, 1, MaxListLimit)

	summaries, err := h.store.ListConversations(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list conversations", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list conversations")
		return
	}

	conversations := make([]conversationJSON, 0, len(summaries))
	for _, s := range summaries {
		conversations = append(conversations, conversationJSON{
			ConversationID: s.ConversationID.String(),
			LastQuery:      s.LastQuestion,
			LastTimestamp:  s.LastTimestamp,
			TurnCount:      s.TurnCount,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": conversations,
		"total":         len(conversations),
		"chat_store":    h.store.Status().String(),
	})
}

// turnJSON is the wire form of one persisted turn. The stored response
// envelope is embedded as-is.
type turnJSON struct {
	ID        int64           `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Query     string          `json:"query"`
	Response  json.RawMessage `json:"response"`
}

// history returns all turns of one conversation in chronological order.
func (h *ChatsHandler) history(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "chat id must be a UUID")
		return
	}

	turns, err := h.store.History(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load history", "chat_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load history")
		return
	}

	history := make([]turnJSON, 0, len(turns))
	for _, t := range turns {
		history = append(history, turnJSON{
			ID:        t.ID,
			Timestamp: t.Timestamp,
			Query:     t.Question,
			Response:  t.Envelope,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"chat_id":    id.String(),
		"turns":      history,
		"total":      len(history),
		"chat_store": h.store.Status().String(),
	})
}

// parseIntParam parses an integer query parameter with bounds checking.
func parseIntParam(r *http.Request, name string, defaultVal, min, max int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
