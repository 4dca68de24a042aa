package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// Postgres connects directly to the database behind the hosted API, for
// deployments that bypass the REST layer.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the database and ensures the tables exist.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to postgres")
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY,
			conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS messages_conversation_id ON messages(conversation_id);
	`)
	if err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "creating tables")
	}

	return &Postgres{pool: pool}, nil
}

// ListConversations implements Store.
func (p *Postgres) ListConversations(ctx context.Context) ([]*Conversation, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, title, created_at, updated_at
		FROM conversations
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "querying conversations")
	}
	defer rows.Close()

	var conversations []*Conversation
	for rows.Next() {
		conversation := &Conversation{}
		if err := rows.Scan(&conversation.ID, &conversation.Title, &conversation.CreatedAt, &conversation.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning conversation row")
		}
		conversations = append(conversations, conversation)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating conversation rows")
	}
	return conversations, nil
}

// GetConversation implements Store.
func (p *Postgres) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	conversation := &Conversation{}
	err := p.pool.QueryRow(ctx, `
		SELECT id, title, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`, id).Scan(&conversation.ID, &conversation.Title, &conversation.CreatedAt, &conversation.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying conversation")
	}
	return conversation, nil
}

// CreateConversation implements Store.
func (p *Postgres) CreateConversation(ctx context.Context, title string) (*Conversation, error) {
	conversation := &Conversation{ID: uuid.New().String(), Title: title}
	err := p.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, title)
		VALUES ($1, $2)
		RETURNING created_at, updated_at
	`, conversation.ID, conversation.Title).Scan(&conversation.CreatedAt, &conversation.UpdatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "inserting conversation")
	}
	return conversation, nil
}

// DeleteConversation implements Store. Messages go with the conversation via
// the referential cascade.
func (p *Postgres) DeleteConversation(ctx context.Context, id string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting conversation")
	}
	return nil
}

// ListMessages implements Store.
func (p *Postgres) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`, conversationID)
	if err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		message := &Message{}
		if err := rows.Scan(&message.ID, &message.ConversationID, &message.Role, &message.Content, &message.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning message row")
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating message rows")
	}
	return messages, nil
}

// AddMessage implements Store.
func (p *Postgres) AddMessage(ctx context.Context, conversationID string, role Role, content string) (*Message, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback(ctx)

	message := &Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, role, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, message.ID, message.ConversationID, string(message.Role), message.Content).Scan(&message.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "inserting message")
	}

	tag, err := tx.Exec(ctx, `
		UPDATE conversations SET updated_at = $1 WHERE id = $2
	`, time.Now(), conversationID)
	if err != nil {
		return nil, errors.Wrap(err, "bumping conversation")
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "committing transaction")
	}
	return message, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
