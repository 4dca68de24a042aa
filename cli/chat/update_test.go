package chat

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/solweir/parley/internal/agent"
	"github.com/solweir/parley/internal/configuration"
	"github.com/solweir/parley/internal/conversation"
	"github.com/solweir/parley/internal/debug"
	"github.com/solweir/parley/internal/store"
)

type stubStore struct {
	conversations []*store.Conversation
	messages      map[string][]*store.Message
}

func (s *stubStore) ListConversations(ctx context.Context) ([]*store.Conversation, error) {
	return s.conversations, nil
}

func (s *stubStore) GetConversation(ctx context.Context, id string) (*store.Conversation, error) {
	for _, conversation := range s.conversations {
		if conversation.ID == id {
			return conversation, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *stubStore) CreateConversation(ctx context.Context, title string) (*store.Conversation, error) {
	conversation := &store.Conversation{ID: "created", Title: title}
	s.conversations = append(s.conversations, conversation)
	return conversation, nil
}

func (s *stubStore) DeleteConversation(ctx context.Context, id string) error { return nil }

func (s *stubStore) ListMessages(ctx context.Context, conversationID string) ([]*store.Message, error) {
	return s.messages[conversationID], nil
}

func (s *stubStore) AddMessage(ctx context.Context, conversationID string, role store.Role, content string) (*store.Message, error) {
	message := &store.Message{ID: content, ConversationID: conversationID, Role: role, Content: content}
	s.messages[conversationID] = append(s.messages[conversationID], message)
	return message, nil
}

func (s *stubStore) Close() error { return nil }

type stubAgent struct{}

func (stubAgent) Invoke(ctx context.Context, agentName, message, conversationID string) (*agent.ChatResponse, error) {
	return &agent.ChatResponse{Response: "ok", ConversationID: conversationID}, nil
}
func (stubAgent) DeleteConversation(ctx context.Context, conversationID string) error { return nil }
func (stubAgent) Health(ctx context.Context) (*agent.HealthResponse, error) {
	return &agent.HealthResponse{Status: "healthy"}, nil
}

// newTestModel builds a model whose synchronizer is switched to the given
// conversation, mirroring the state after conversationOpenedMsg.
func newTestModel(t *testing.T, s *stubStore, activeID string) *Model {
	t.Helper()
	config := &configuration.Config{
		Chat: &configuration.ChatConfig{PollIntervalMilliseconds: 1},
	}
	synchronizer := conversation.NewSynchronizer(s, stubAgent{}, debug.GetLogger())
	m, err := New(context.Background(), config, synchronizer, "helper", "")
	require.NoError(t, err)

	if activeID != "" {
		active, err := synchronizer.SwitchConversation(context.Background(), activeID)
		require.NoError(t, err)
		m.active = active
		m.snapshot()
	}
	return m
}

// collectMessages runs a command tree and gathers the messages it produces.
// Callers must not pass commands containing timers.
func collectMessages(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var msgs []tea.Msg
		for _, c := range batch {
			msgs = append(msgs, collectMessages(c)...)
		}
		return msgs
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func danglingStore() *stubStore {
	return &stubStore{
		conversations: []*store.Conversation{{ID: "B", Title: "b"}},
		messages: map[string][]*store.Message{
			"B": {{ID: "m1", ConversationID: "B", Role: store.RoleUser, Content: "hello"}},
		},
	}
}

func TestPollTickForActiveConversationPolls(t *testing.T) {
	m := newTestModel(t, danglingStore(), "B")
	m.pollingID = "B"

	_, cmd := m.Update(pollTickMsg{conversationID: "B"})

	require.Equal(t, "B", m.pollingID)
	var polled bool
	for _, msg := range collectMessages(cmd) {
		if done, ok := msg.(pollDoneMsg); ok {
			polled = true
			require.Equal(t, "B", done.conversationID)
		}
	}
	require.True(t, polled)
}

func TestStaleTickDoesNotDisarmNewerTimer(t *testing.T) {
	m := newTestModel(t, danglingStore(), "B")
	m.pollingID = "B"

	// A tick left over from a previous conversation must only tear down
	// its own timer, not the one armed for the current view.
	_, cmd := m.Update(pollTickMsg{conversationID: "A"})

	require.Equal(t, "B", m.pollingID)
	for _, msg := range collectMessages(cmd) {
		_, ok := msg.(pollDoneMsg)
		require.False(t, ok)
	}
}

func TestTickAfterTurnAnsweredTearsDown(t *testing.T) {
	s := danglingStore()
	s.messages["B"] = append(s.messages["B"],
		&store.Message{ID: "m2", ConversationID: "B", Role: store.RoleAssistant, Content: "hi"})
	m := newTestModel(t, s, "B")
	m.pollingID = "B"

	_, cmd := m.Update(pollTickMsg{conversationID: "B"})

	require.Empty(t, m.pollingID)
	require.Empty(t, collectMessages(cmd))
}

func TestStalePollResultDoesNotDisarmNewerTimer(t *testing.T) {
	m := newTestModel(t, danglingStore(), "B")
	m.pollingID = "B"

	_, _ = m.Update(pollDoneMsg{conversationID: "A", updated: true})

	require.Equal(t, "B", m.pollingID)
}

func TestExchangeFailureAlertsAndReenablesInput(t *testing.T) {
	m := newTestModel(t, &stubStore{messages: map[string][]*store.Message{}}, "")
	m.sending = true
	m.textarea.Blur()

	_, cmd := m.Update(exchangeDoneMsg{err: errors.New("agent down")})

	require.False(t, m.sending)
	require.True(t, m.textarea.Focused())
	// The failure surfaces as an alert toast.
	require.NotEmpty(t, collectMessages(cmd))
}

func TestExchangeSuccessReenablesInputWithoutAlert(t *testing.T) {
	m := newTestModel(t, &stubStore{messages: map[string][]*store.Message{}}, "")
	m.sending = true

	_, _ = m.Update(exchangeDoneMsg{})

	require.False(t, m.sending)
	require.Empty(t, m.pollingID)
}
