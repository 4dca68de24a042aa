package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/solweir/parley/internal/file"
)

// SQLite stores conversations in a local database file, for running without
// the hosted backend.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and if necessary initializes) a sqlite store.
func NewSQLite(dbPath string) (*SQLite, error) {
	if err := file.CreateDirectoryIfNotExist(filepath.Dir(dbPath)); err != nil {
		return nil, errors.Wrap(err, "creating store directory")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS messages_conversation_id ON messages(conversation_id);
	`)
	if err != nil {
		return nil, errors.Wrap(err, "creating tables")
	}

	return &SQLite{db: db}, nil
}

// ListConversations implements Store.
func (s *SQLite) ListConversations(ctx context.Context) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
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
		conversation, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conversation)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating conversation rows")
	}
	return conversations, nil
}

// GetConversation implements Store.
func (s *SQLite) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	conversation := &Conversation{}
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, created_at, updated_at
		FROM conversations
		WHERE id = ?
	`, id).Scan(&conversation.ID, &conversation.Title, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying conversation")
	}
	conversation.CreatedAt = time.UnixMicro(createdAt)
	conversation.UpdatedAt = time.UnixMicro(updatedAt)
	return conversation, nil
}

// CreateConversation implements Store.
func (s *SQLite) CreateConversation(ctx context.Context, title string) (*Conversation, error) {
	now := time.Now()
	conversation := &Conversation{
		ID:        uuid.New().String(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, conversation.ID, conversation.Title, now.UnixMicro(), now.UnixMicro())
	if err != nil {
		return nil, errors.Wrap(err, "inserting conversation")
	}
	return conversation, nil
}

// DeleteConversation implements Store. Messages are removed in the same
// transaction as the conversation row.
func (s *SQLite) DeleteConversation(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return errors.Wrap(err, "deleting messages")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return errors.Wrap(err, "deleting conversation")
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}

// ListMessages implements Store.
func (s *SQLite) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC
	`, conversationID)
	if err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		message := &Message{}
		var createdAt int64
		if err := rows.Scan(&message.ID, &message.ConversationID, &message.Role, &message.Content, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scanning message row")
		}
		message.CreatedAt = time.UnixMicro(createdAt)
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating message rows")
	}
	return messages, nil
}

// AddMessage implements Store.
func (s *SQLite) AddMessage(ctx context.Context, conversationID string, role Role, content string) (*Message, error) {
	now := time.Now()
	message := &Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, message.ID, message.ConversationID, string(message.Role), message.Content, now.UnixMicro())
	if err != nil {
		return nil, errors.Wrap(err, "inserting message")
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE conversations SET updated_at = ? WHERE id = ?
	`, now.UnixMicro(), conversationID)
	if err != nil {
		return nil, errors.Wrap(err, "bumping conversation")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "checking bump")
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing transaction")
	}
	return message, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanConversation(row scannable) (*Conversation, error) {
	conversation := &Conversation{}
	var createdAt, updatedAt int64
	if err := row.Scan(&conversation.ID, &conversation.Title, &createdAt, &updatedAt); err != nil {
		return nil, errors.Wrap(err, "scanning conversation row")
	}
	conversation.CreatedAt = time.UnixMicro(createdAt)
	conversation.UpdatedAt = time.UnixMicro(updatedAt)
	return conversation, nil
}
