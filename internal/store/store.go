// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/modelchat/internal/domain"
)

// ErrConversationNotFound is returned when a conversation does not exist or
// belongs to another user.
var ErrConversationNotFound = errors.New("conversation not found")

// Repository defines the interface for persisting users and conversations.
// Conversation operations are scoped by user id.
type Repository interface {
	// GetUser retrieves a user by their user ID. It returns nil, nil when the
	// user does not exist.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// CreateConversation stores conv together with any messages it carries.
	CreateConversation(ctx context.Context, conv *domain.Conversation) error

	// GetConversation returns a conversation with its messages in order.
	GetConversation(ctx context.Context, userID, convID string) (*domain.Conversation, error)

	// ListConversations returns the user's conversations without messages,
	// most recently updated first.
	ListConversations(ctx context.Context, userID string) ([]*domain.Conversation, error)

	// SearchConversations lists conversations whose title or any message
	// contains term, ignoring case. A blank term lists everything.
	SearchConversations(ctx context.Context, userID, term string) ([]*domain.Conversation, error)

	// AppendMessages adds msgs after the existing messages. A non-empty model
	// replaces the conversation model.
	AppendMessages(ctx context.Context, userID, convID, model string, msgs ...domain.Message) error

	// RenameConversation replaces the title.
	RenameConversation(ctx context.Context, userID, convID, title string) error

	// DeleteConversation removes a conversation and its messages.
	DeleteConversation(ctx context.Context, userID, convID string) error

	// DeleteStaleConversations removes conversations last updated before
	// olderThan and returns how many were removed.
	DeleteStaleConversations(ctx context.Context, olderThan time.Time) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
