package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one immutable turn in a conversation.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a message with a fresh id.
func NewMessage(role Role, content string, at time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Content:   content,
		Role:      role,
		Timestamp: at,
	}
}

// Conversation is an ordered sequence of messages owned by one user.
type Conversation struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	Model        string    `json:"model"`
	Messages     []Message `json:"messages,omitempty"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewConversation starts a conversation for userID. The title is derived from
// firstMessage; an empty first message yields defaultTitle.
func NewConversation(userID, model, firstMessage, defaultTitle string, now time.Time) *Conversation {
	return &Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     ChatTitle(firstMessage, defaultTitle),
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

const (
	titleMaxRunes  = 50
	titleKeepRunes = 47
)

// ChatTitle derives a conversation title from its first message.
func ChatTitle(first, defaultTitle string) string {
	first = strings.TrimSpace(first)
	if first == "" {
		return defaultTitle
	}
	runes := []rune(first)
	if len(runes) > titleMaxRunes {
		return string(runes[:titleKeepRunes]) + "..."
	}
	return first
}
