// Package store provides access to the conversation and message collections.
//
// The remote relational backend is the source of truth; everything here is a
// client. Three backends implement the same Store interface: a REST client
// for the hosted PostgREST-style API, a direct postgres connection, and a
// local sqlite file for running without the hosted backend.
package store

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/solweir/parley/internal/configuration"
)

// ErrNotFound is returned when a conversation does not exist. Callers must
// surface it distinctly from other failures.
var ErrNotFound = errors.New("conversation not found")

// Role of a message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Conversation is a thread of messages. UpdatedAt is bumped on every message
// insertion and drives the list ordering.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is immutable once created. A well-formed conversation's messages
// alternate roles starting with user.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store is the consumed capability over the conversation collections.
type Store interface {
	// ListConversations returns all conversations, most recently updated first.
	ListConversations(ctx context.Context) ([]*Conversation, error)
	// GetConversation returns ErrNotFound when the conversation is absent.
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	CreateConversation(ctx context.Context, title string) (*Conversation, error)
	// DeleteConversation cascades to the conversation's messages.
	DeleteConversation(ctx context.Context, id string) error
	// ListMessages returns a conversation's messages ordered by creation time.
	ListMessages(ctx context.Context, conversationID string) ([]*Message, error)
	// AddMessage inserts a message and bumps the parent conversation's UpdatedAt.
	AddMessage(ctx context.Context, conversationID string, role Role, content string) (*Message, error)
	Close() error
}

// New instantiates the store backend selected by the configuration.
func New(ctx context.Context, config *configuration.StoreConfig) (Store, error) {
	switch config.Backend {
	case "rest":
		return NewREST(config.URL, config.APIKey), nil
	case "sqlite":
		return NewSQLite(config.Path)
	case "postgres":
		return NewPostgres(ctx, config.PostgresDSN)
	default:
		return nil, errors.Errorf("unknown store backend (%s)", config.Backend)
	}
}
