package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "parley.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteConversationRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSQLite(t)

	created, err := s.CreateConversation(ctx, "a title")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	fetched, err := s.GetConversation(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, fetched.ID)
	require.Equal(t, "a title", fetched.Title)
	require.WithinDuration(t, created.CreatedAt, fetched.CreatedAt, time.Millisecond)
}

func TestSQLiteGetConversationNotFound(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	_, err := s.GetConversation(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteMessageRoundTripAndOrdering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSQLite(t)

	conversation, err := s.CreateConversation(ctx, "test")
	require.NoError(t, err)

	first, err := s.AddMessage(ctx, conversation.ID, RoleUser, "hello\nwith newlines and unicode é")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := s.AddMessage(ctx, conversation.ID, RoleAssistant, "hi")
	require.NoError(t, err)

	messages, err := s.ListMessages(ctx, conversation.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, first.ID, messages[0].ID)
	require.Equal(t, RoleUser, messages[0].Role)
	require.Equal(t, "hello\nwith newlines and unicode é", messages[0].Content)
	require.Equal(t, second.ID, messages[1].ID)
	require.Equal(t, RoleAssistant, messages[1].Role)
}

func TestSQLiteAddMessageBumpsConversation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSQLite(t)

	older, err := s.CreateConversation(ctx, "older")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	newer, err := s.CreateConversation(ctx, "newer")
	require.NoError(t, err)

	conversations, err := s.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	require.Equal(t, newer.ID, conversations[0].ID)

	// A new message moves the older conversation to the top.
	time.Sleep(2 * time.Millisecond)
	_, err = s.AddMessage(ctx, older.ID, RoleUser, "bump")
	require.NoError(t, err)

	conversations, err = s.ListConversations(ctx)
	require.NoError(t, err)
	require.Equal(t, older.ID, conversations[0].ID)

	bumped, err := s.GetConversation(ctx, older.ID)
	require.NoError(t, err)
	require.True(t, bumped.UpdatedAt.After(older.UpdatedAt))
}

func TestSQLiteAddMessageToMissingConversation(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	_, err := s.AddMessage(context.Background(), "missing", RoleUser, "hello")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteDeleteConversationCascades(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSQLite(t)

	conversation, err := s.CreateConversation(ctx, "doomed")
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, conversation.ID, RoleUser, "hello")
	require.NoError(t, err)

	require.NoError(t, s.DeleteConversation(ctx, conversation.ID))

	_, err = s.GetConversation(ctx, conversation.ID)
	require.ErrorIs(t, err, ErrNotFound)
	messages, err := s.ListMessages(ctx, conversation.ID)
	require.NoError(t, err)
	require.Empty(t, messages)
}

func TestSQLiteListConversationsEmpty(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	conversations, err := s.ListConversations(context.Background())
	require.NoError(t, err)
	require.Empty(t, conversations)
}
