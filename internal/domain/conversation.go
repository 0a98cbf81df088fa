package domain

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// MessageRole represents the author of a message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// maxDerivedTitleLen bounds the title derived from the first user message
const maxDerivedTitleLen = 50

// Conversation belongs to a tenant and a user. The title is derived from
// the first user message on the conversation's first turn.
type Conversation struct {
	ID        string
	TenantID  string
	UserID    string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Source is the client-facing projection of a SearchResult cited by an
// assistant message.
type Source struct {
	Type           ContentType       `json:"type"`
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Excerpt        string            `json:"excerpt"`
	RelevanceScore float32           `json:"relevanceScore"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Message belongs to a Conversation. Sources is set for assistant
// messages only and preserves the order of the sources event emitted
// during the turn. Messages are never mutated after being persisted.
type Message struct {
	ID             string
	ConversationID string
	Role           MessageRole
	Content        string
	Sources        []Source
	CreatedAt      time.Time
}

// NewConversation creates a Conversation with an empty title; the title
// is filled in when the first turn completes.
func NewConversation(id, tenantID, userID string, now time.Time) *Conversation {
	return &Conversation{
		ID:        id,
		TenantID:  tenantID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DeriveTitle produces a conversation title from the first user query:
// the first 50 characters, ellipsized when truncated.
func DeriveTitle(query string) string {
	if utf8.RuneCountInString(query) <= maxDerivedTitleLen {
		return query
	}
	runes := []rune(query)
	return string(runes[:maxDerivedTitleLen]) + "..."
}

// ValidateMessage validates a Message before persistence
func ValidateMessage(m *Message) error {
	if m == nil {
		return fmt.Errorf("message cannot be nil")
	}
	if m.ConversationID == "" {
		return fmt.Errorf("message conversation id is required: %w", ErrMissingRequiredField)
	}
	if m.Content == "" {
		return fmt.Errorf("message content is required: %w", ErrMissingRequiredField)
	}
	if m.Role != RoleUser && m.Role != RoleAssistant {
		return fmt.Errorf("message role %q: %w", m.Role, ErrInvalidMessageRole)
	}
	if m.Role == RoleUser && len(m.Sources) > 0 {
		return fmt.Errorf("user messages cannot carry sources: %w", ErrInvalidMessageRole)
	}
	return nil
}
