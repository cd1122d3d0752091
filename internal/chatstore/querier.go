package chatstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the subset of pgxpool.Pool the querier needs. Satisfied by
// *pgxpool.Pool and by pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// InsertTurnParams carries one turn to persist.
type InsertTurnParams struct {
	ConversationID uuid.UUID
	Question       string
	Envelope       []byte
}

// Querier defines the database operations the Store depends on.
// Following Go best practices: interfaces are defined by the consumer,
// not the provider.
type Querier interface {
	InsertTurn(ctx context.Context, arg InsertTurnParams) error
	// TurnsByConversation returns all turns of a conversation in
	// chronological order.
	TurnsByConversation(ctx context.Context, conversationID uuid.UUID) ([]Turn, error)
	// RecentTurns returns up to limit of the newest turns of a
	// conversation, newest first.
	RecentTurns(ctx context.Context, conversationID uuid.UUID, limit int32) ([]Turn, error)
	// ListConversations returns conversations ordered by their most
	// recent turn, newest first.
	ListConversations(ctx context.Context, limit int32) ([]ConversationSummary, error)
}

// pgQuerier implements Querier against the chats table.
type pgQuerier struct {
	db DBTX
}

// NewQuerier creates a Querier backed by db.
func NewQuerier(db DBTX) Querier {
	return &pgQuerier{db: db}
}

const insertTurnSQL = `
INSERT INTO chats (conversation_id, query, response)
VALUES ($1, $2, $3)`

func (q *pgQuerier) InsertTurn(ctx context.Context, arg InsertTurnParams) error {
	_, err := q.db.Exec(ctx, insertTurnSQL,
		uuidToPgUUID(arg.ConversationID), arg.Question, arg.Envelope)
	if err != nil {
		return fmt.Errorf("inserting chat turn: %w", err)
	}
	return nil
}

const turnsByConversationSQL = `
SELECT id, conversation_id, timestamp, query, response
FROM chats
WHERE conversation_id = $1
ORDER BY timestamp ASC, id ASC`

func (q *pgQuerier) TurnsByConversation(ctx context.Context, conversationID uuid.UUID) ([]Turn, error) {
	rows, err := q.db.Query(ctx, turnsByConversationSQL, uuidToPgUUID(conversationID))
	if err != nil {
		return nil, fmt.Errorf("querying conversation turns: %w", err)
	}
	defer rows.Close()
	return scanTurns(rows)
}

const recentTurnsSQL = `
SELECT id, conversation_id, timestamp, query, response
FROM chats
WHERE conversation_id = $1
ORDER BY timestamp DESC, id DESC
LIMIT $2`

func (q *pgQuerier) RecentTurns(ctx context.Context, conversationID uuid.UUID, limit int32) ([]Turn, error) {
	rows, err := q.db.Query(ctx, recentTurnsSQL, uuidToPgUUID(conversationID), limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent turns: %w", err)
	}
	defer rows.Close()
	return scanTurns(rows)
}

const listConversationsSQL = `
SELECT conversation_id, query, timestamp, turn_count
FROM (
    SELECT DISTINCT ON (conversation_id)
        conversation_id,
        query,
        timestamp,
        COUNT(*) OVER (PARTITION BY conversation_id) AS turn_count
    FROM chats
    ORDER BY conversation_id, timestamp DESC, id DESC
) latest
ORDER BY timestamp DESC
LIMIT $1`

func (q *pgQuerier) ListConversations(ctx context.Context, limit int32) ([]ConversationSummary, error) {
	rows, err := q.db.Query(ctx, listConversationsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var summaries []ConversationSummary
	for rows.Next() {
		var (
			id pgtype.UUID
			cs ConversationSummary
		)
		if err := rows.Scan(&id, &cs.LastQuestion, &cs.LastTimestamp, &cs.TurnCount); err != nil {
			return nil, fmt.Errorf("scanning conversation summary: %w", err)
		}
		cs.ConversationID = pgUUIDToUUID(id)
		summaries = append(summaries, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading conversation summaries: %w", err)
	}
	return summaries, nil
}

func scanTurns(rows pgx.Rows) ([]Turn, error) {
	var turns []Turn
	for rows.Next() {
		var (
			id pgtype.UUID
			t  Turn
		)
		if err := rows.Scan(&t.ID, &id, &t.Timestamp, &t.Question, &t.Envelope); err != nil {
			return nil, fmt.Errorf("scanning chat turn: %w", err)
		}
		t.ConversationID = pgUUIDToUUID(id)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chat turns: %w", err)
	}
	return turns, nil
}

// uuidToPgUUID converts uuid.UUID to pgtype.UUID.
func uuidToPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// pgUUIDToUUID converts pgtype.UUID to uuid.UUID.
func pgUUIDToUUID(pgUUID pgtype.UUID) uuid.UUID {
	if !pgUUID.Valid {
		return uuid.Nil
	}
	return pgUUID.Bytes
}
