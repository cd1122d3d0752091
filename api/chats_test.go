package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paymentops/copilot/internal/chatstore"
	"github.com/paymentops/copilot/internal/log"
)

type fakeConversationReader struct {
	historyResult []chatstore.Turn
	historyErr    error
	listResult    []chatstore.ConversationSummary
	listErr       error
	status        chatstore.Status
	lastLimit     int
}

func (f *fakeConversationReader) History(ctx context.Context, conversationID uuid.UUID) ([]chatstore.Turn, error) {
	return f.historyResult, f.historyErr
}

func (f *fakeConversationReader) ListConversations(ctx context.Context, limit int) ([]chatstore.ConversationSummary, error) {
	f.lastLimit = limit
	return f.listResult, f.listErr
}

func (f *fakeConversationReader) Status() chatstore.Status {
	return f.status
}

func getChats(t *testing.T, h *ChatsHandler, path string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestChatsHandler_List(t *testing.T) {
	convID := uuid.New()
	store := &fakeConversationReader{
		status: chatstore.Status{Availability: chatstore.Connected},
		listResult: []chatstore.ConversationSummary{
			{ConversationID: convID, LastQuestion: "how many settled?", LastTimestamp: time.Now(), TurnCount: 3},
		},
	}
	h := NewChatsHandler(store, log.NewNop())

	w := getChats(t, h, "/api/v1/chats")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, DefaultListLimit, store.lastLimit)

	var resp struct {
		Conversations []conversationJSON `json:"conversations"`
		Total         int                `json:"total"`
		ChatStore     string             `json:"chat_store"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, convID.String(), resp.Conversations[0].ConversationID)
	assert.Equal(t, "how many settled?", resp.Conversations[0].LastQuery)
	assert.Equal(t, int64(3), resp.Conversations[0].TurnCount)
	assert.Equal(t, "connected", resp.ChatStore)
}

func TestChatsHandler_ListClampsLimit(t *testing.T) {
	store := &fakeConversationReader{status: chatstore.Status{Availability: chatstore.Connected}}
	h := NewChatsHandler(store, log.NewNop())

	getChats(t, h, "/api/v1/chats?limit=99999")
	assert.Equal(t, MaxListLimit, store.lastLimit)

	getChats(t, h, "/api/v1/chats?limit=-3")
	assert.Equal(t, 1, store.lastLimit)
}

func TestChatsHandler_ListDegradedStore(t *testing.T) {
	store := &fakeConversationReader{
		status: chatstore.Status{Availability: chatstore.Unavailable, Cause: "dial failed"},
	}
	h := NewChatsHandler(store, log.NewNop())

	w := getChats(t, h, "/api/v1/chats")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Total     int    `json:"total"`
		ChatStore string `json:"chat_store"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Total)
	assert.Equal(t, "error:dial failed", resp.ChatStore)
}

func TestChatsHandler_History(t *testing.T) {
	convID := uuid.New()
	store := &fakeConversationReader{
		status: chatstore.Status{Availability: chatstore.Connected},
		historyResult: []chatstore.Turn{
			{ID: 1, ConversationID: convID, Question: "first", Envelope: []byte(`{"success":true}`)},
			{ID: 2, ConversationID: convID, Question: "second", Envelope: []byte(`{"success":true}`)},
		},
	}
	h := NewChatsHandler(store, log.NewNop())

	w := getChats(t, h, "/api/v1/chats/"+convID.String()+"/history")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ChatID string     `json:"chat_id"`
		Turns  []turnJSON `json:"turns"`
		Total  int        `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, convID.String(), resp.ChatID)
	require.Len(t, resp.Turns, 2)
	assert.Equal(t, "first", resp.Turns[0].Query)
	assert.JSONEq(t, `{"success":true}`, string(resp.Turns[0].Response))
}

func TestChatsHandler_HistoryInvalidID(t *testing.T) {
	h := NewChatsHandler(&fakeConversationReader{}, log.NewNop())

	w := getChats(t, h, "/api/v1/chats/not-a-uuid/history")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatsHandler_HistoryStoreError(t *testing.T) {
	store := &fakeConversationReader{historyErr: errors.New("boom")}
	h := NewChatsHandler(store, log.NewNop())

	w := getChats(t, h, "/api/v1/chats/"+uuid.NewString()+"/history")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
