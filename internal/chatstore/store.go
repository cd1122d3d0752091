package chatstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Store manages conversation persistence with a PostgreSQL backend.
//
// A Store is created in one of three availability states and never
// changes state afterwards. In the Disabled and Unavailable states all
// reads return empty results and all writes are no-ops; writes still
// return a usable conversation ID so callers can keep threading
// follow-up questions.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	querier Querier
	status  Status
	logger  *slog.Logger
}

// New creates a connected Store.
func New(querier Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		querier: querier,
		status:  Status{Availability: Connected},
		logger:  logger,
	}
}

// NewDisabled creates a Store for deployments that turned chat
// persistence off by configuration.
func NewDisabled(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		status: Status{Availability: Disabled},
		logger: logger,
	}
}

// NewUnavailable creates a degraded Store after a startup connection or
// migration failure. cause is surfaced through Status for diagnostics.
func NewUnavailable(cause error, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		status: Status{Availability: Unavailable},
		logger: logger,
	}
	if cause != nil {
		s.status.Cause = cause.Error()
	}
	return s
}

// Status returns the store's fixed availability state.
func (s *Store) Status() Status {
	return s.status
}

// Connected reports whether turns are actually persisted.
func (s *Store) Connected() bool {
	return s.status.Availability == Connected
}

// Append persists one turn. A zero conversationID starts a new
// conversation; the minted or passed-through ID is always returned,
// even when the store is degraded or the insert fails, so the caller
// can still hand it back to the client.
func (s *Store) Append(ctx context.Context, conversationID uuid.UUID, question string, envelope []byte) (uuid.UUID, error) {
	if conversationID == uuid.Nil {
		conversationID = uuid.New()
	}

	if !s.Connected() {
		s.logger.Debug("chat store degraded, turn not persisted",
			"conversation_id", conversationID, "availability", s.status.String())
		return conversationID, nil
	}

	err := s.querier.InsertTurn(ctx, InsertTurnParams{
		ConversationID: conversationID,
		Question:       question,
		Envelope:       envelope,
	})
	if err != nil {
		return conversationID, fmt.Errorf("appending turn to conversation %s: %w", conversationID, err)
	}

	s.logger.Debug("persisted chat turn", "conversation_id", conversationID)
	return conversationID, nil
}

// History returns all turns of a conversation in chronological order.
// A degraded store returns an empty history.
func (s *Store) History(ctx context.Context, conversationID uuid.UUID) ([]Turn, error) {
	if !s.Connected() {
		return nil, nil
	}

	turns, err := s.querier.TurnsByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading history for conversation %s: %w", conversationID, err)
	}
	return turns, nil
}

// RecentTurns returns up to n of the newest turns in chronological
// order, for use as prompt context. A degraded store returns none.
func (s *Store) RecentTurns(ctx context.Context, conversationID uuid.UUID, n int) ([]Turn, error) {
	if !s.Connected() || n <= 0 || conversationID == uuid.Nil {
		return nil, nil
	}

	turns, err := s.querier.RecentTurns(ctx, conversationID, int32(n)) // #nosec G115 -- n is a small configured window
	if err != nil {
		return nil, fmt.Errorf("loading recent turns for conversation %s: %w", conversationID, err)
	}

	// The querier returns newest first; callers want oldest first.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// ListConversations returns conversations ordered by most recent
// activity. A degraded store returns none.
func (s *Store) ListConversations(ctx context.Context, limit int) ([]ConversationSummary, error) {
	if !s.Connected() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	summaries, err := s.querier.ListConversations(ctx, int32(limit)) // #nosec G115 -- limit is a small page size
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	return summaries, nil
}

// EnsureIndex creates the conversation lookup index. Index creation is
// best-effort: a failure is logged and the store keeps working without
// it, matching the table-first initialization order.
func EnsureIndex(ctx context.Context, db DBTX, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	_, err := db.Exec(ctx,
		`CREATE INDEX IF NOT EXISTS idx_chats_conversation_id ON chats (conversation_id)`)
	if err != nil {
		logger.Warn("chat index creation failed, continuing without it", "error", err)
		return
	}
	logger.Debug("chat index ready")
}
