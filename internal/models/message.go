package models

import "github.com/google/uuid"

// Role is the speaker of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid reports whether r is user or assistant
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ChatMessage is one turn of a conversation. Messages are never mutated
// after creation.
type ChatMessage struct {
	ID      string
	Role    Role
	Content string

	// Pending marks the synthetic "assistant is composing" placeholder.
	Pending bool
}

// NewMessageID returns an id unique within a session.
func NewMessageID() string {
	return uuid.NewString()
}

func NewUserMessage(content string) ChatMessage {
	return ChatMessage{ID: NewMessageID(), Role: RoleUser, Content: content}
}

func NewAssistantMessage(content string) ChatMessage {
	return ChatMessage{ID: NewMessageID(), Role: RoleAssistant, Content: content}
}

// PendingPlaceholder returns the placeholder shown while a reply is awaited.
func PendingPlaceholder() ChatMessage {
	return ChatMessage{ID: "pending", Role: RoleAssistant, Pending: true}
}

// HistoryEntry is the {role, content} pair sent to the backend.
type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History reduces messages to history entries, oldest first. Pending
// placeholders are skipped.
func History(messages []ChatMessage) []HistoryEntry {
	history := make([]HistoryEntry, 0, len(messages))
	for _, msg := range messages {
		if msg.Pending {
			continue
		}
		history = append(history, HistoryEntry{Role: msg.Role, Content: msg.Content})
	}
	return history
}
