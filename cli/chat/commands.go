package chat

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/solweir/parley/internal/store"
)

// syncUpdatedMsg is sent whenever the synchronizer's local state changes, so
// the view re-renders from a fresh snapshot.
type syncUpdatedMsg struct{}

type conversationsRefreshedMsg struct {
	err error
}

type conversationOpenedMsg struct {
	id           string
	conversation *store.Conversation
	err          error
}

type conversationStartedMsg struct {
	conversation *store.Conversation
	err          error
}

type exchangeDoneMsg struct {
	err error
}

type conversationDeletedMsg struct {
	id  string
	err error
}

type pollTickMsg struct {
	conversationID string
}

type pollDoneMsg struct {
	conversationID string
	updated        bool
	err            error
}

func (m *Model) refreshConversations() tea.Cmd {
	return func() tea.Msg {
		return conversationsRefreshedMsg{err: m.synchronizer.RefreshConversations(m.ctx)}
	}
}

// openInitial opens the conversation requested on the command line, if any.
func (m *Model) openInitial() tea.Cmd {
	if m.initialID == "" {
		return nil
	}
	return m.openConversation(m.initialID)
}

func (m *Model) openConversation(id string) tea.Cmd {
	return func() tea.Msg {
		conversation, err := m.synchronizer.SwitchConversation(m.ctx, id)
		return conversationOpenedMsg{id: id, conversation: conversation, err: err}
	}
}

// sendMessage runs one exchange against the active conversation. The work
// happens on a goroutine so the optimistic user echo (delivered through
// syncUpdatedMsg) renders while the agent call is still in flight.
func (m *Model) sendMessage(text string) tea.Cmd {
	if m.active == nil {
		return nil
	}
	m.sending = true
	conversationID := m.active.ID

	p := m.getProgram()
	if p == nil {
		return func() tea.Msg {
			return exchangeDoneMsg{err: errors.New("program not set")}
		}
	}
	go func() {
		err := m.synchronizer.SendUserMessage(m.ctx, m.agentName, text, conversationID)
		p.Send(exchangeDoneMsg{err: err})
	}()
	return m.spinner.Tick
}

// startConversation creates a conversation from the first message. The agent
// invocation is fired in the background by the synchronizer; the view
// navigates to the new conversation immediately and polling fills in the
// reply.
func (m *Model) startConversation(text string) tea.Cmd {
	m.sending = true
	return func() tea.Msg {
		conversation, err := m.synchronizer.StartConversation(m.ctx, m.agentName, text)
		return conversationStartedMsg{conversation: conversation, err: err}
	}
}

func (m *Model) deleteConversation(id string) tea.Cmd {
	return func() tea.Msg {
		return conversationDeletedMsg{id: id, err: m.synchronizer.DeleteConversation(m.ctx, id)}
	}
}

// schedulePoll arms the poll timer when the active conversation shows a
// dangling user turn and no timer is armed yet.
func (m *Model) schedulePoll() tea.Cmd {
	if m.active == nil || m.pollingID != "" || !m.synchronizer.ShouldPoll() {
		return nil
	}
	m.pollingID = m.active.ID
	return m.pollTick(m.active.ID)
}

func (m *Model) pollTick(conversationID string) tea.Cmd {
	interval := time.Duration(m.config.Chat.PollIntervalMilliseconds) * time.Millisecond
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return pollTickMsg{conversationID: conversationID}
	})
}

func (m *Model) pollOnce(conversationID string) tea.Cmd {
	return func() tea.Msg {
		updated, err := m.synchronizer.PollOnce(m.ctx)
		return pollDoneMsg{conversationID: conversationID, updated: updated, err: err}
	}
}
