// Package chatstore persists conversation turns to the chat database.
//
// The store is deliberately tolerant: when the chat database is disabled
// or unreachable at startup, the rest of the service keeps answering
// questions and the store degrades to a no-op.
package chatstore

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Turn is one persisted question/answer exchange within a conversation.
type Turn struct {
	ID             int64
	ConversationID uuid.UUID
	Question       string
	Envelope       json.RawMessage
	Timestamp      time.Time
}

// ConversationSummary describes a conversation by its most recent turn.
type ConversationSummary struct {
	ConversationID uuid.UUID
	LastQuestion   string
	LastTimestamp  time.Time
	TurnCount      int64
}

// Availability is the store's connection state, fixed at startup.
type Availability string

const (
	// Connected means turns are persisted and history is served.
	Connected Availability = "connected"
	// Disabled means persistence was turned off by configuration.
	Disabled Availability = "disabled"
	// Unavailable means the chat database could not be reached at
	// startup. The store stays degraded; there is no per-request
	// reconnection.
	Unavailable Availability = "error"
)

// Status reports availability plus the failure cause when degraded.
type Status struct {
	Availability Availability `json:"availability"`
	Cause        string       `json:"cause,omitempty"`
}

func (s Status) String() string {
	if s.Availability == Unavailable && s.Cause != "" {
		return "error:" + s.Cause
	}
	return string(s.Availability)
}
