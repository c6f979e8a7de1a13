// Package conversation owns in-memory conversation state for the axel
// service: bounded per-conversation message history, TTL-based expiry, and
// asynchronous turn recording.
//
// State lives for the lifetime of the process only. This is an explicit
// design choice: conversations are short-lived disambiguation context for
// follow-up questions, not durable chat transcripts.
package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role constants define valid message roles for type safety.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in a conversation.
// Metadata carries open-ended observability annotations (e.g. whether
// relevant documents were found, the maximum similarity score) and is never
// required for correctness of retrieval.
type Message struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// conversation is the record behind one conversation id.
//
// mu serializes mutation of a single conversation so that append and
// trim-to-capacity act atomically even when the store-level lock is only
// held for reading.
type conversation struct {
	mu        sync.Mutex
	id        uuid.UUID
	createdAt time.Time
	updatedAt time.Time
	messages  []Message
}
