package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"go.dalton.dog/bubbleup"
	"golang.design/x/clipboard"

	"github.com/solweir/parley/internal/store"
)

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	// Always update the alert model with every message
	outAlert, alertCmd := m.alert.Update(msg)
	m.alert = outAlert.(bubbleup.AlertModel)
	if alertCmd != nil {
		cmds = append(cmds, alertCmd)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.recalculateLayout()
		m.viewport.GotoBottom()
		return m, tea.Batch(cmds...)

	case syncUpdatedMsg:
		wasAtBottom := m.viewport.AtBottom()
		m.snapshot()
		m.recalculateLayout()
		if wasAtBottom {
			m.viewport.GotoBottom()
		}
		if cmd := m.schedulePoll(); cmd != nil {
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case conversationsRefreshedMsg:
		m.snapshot()
		if msg.err != nil {
			cmds = append(cmds, m.alert.NewAlertCmd(bubbleup.ErrorKey, "Failed to load conversations"))
		}
		return m, tea.Batch(cmds...)

	case conversationOpenedMsg:
		switch {
		case errors.Is(msg.err, store.ErrNotFound):
			// Deleted out from under us; a distinct state, not an empty thread.
			m.active = nil
			m.notFound = true
			m.snapshot()
			m.recalculateLayout()
		case msg.err != nil:
			log.Error("opening conversation", "conversation_id", msg.id, "error", msg.err)
			cmds = append(cmds, m.alert.NewAlertCmd(bubbleup.ErrorKey, "Failed to open conversation"))
		default:
			m.active = msg.conversation
			m.notFound = false
			m.snapshot()
			m.recalculateLayout()
			m.viewport.GotoBottom()
			m.textarea.Focus()
			m.focused = FocusTextarea
			if cmd := m.schedulePoll(); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		return m, tea.Batch(cmds...)

	case conversationStartedMsg:
		m.sending = false
		if msg.err != nil {
			log.Error("starting conversation", "error", msg.err)
			cmds = append(cmds, m.alert.NewAlertCmd(bubbleup.ErrorKey, "Failed to create conversation"))
			return m, tea.Batch(cmds...)
		}
		cmds = append(cmds, m.openConversation(msg.conversation.ID), m.refreshConversations())
		return m, tea.Batch(cmds...)

	case exchangeDoneMsg:
		m.sending = false
		m.textarea.Focus()
		if msg.err != nil {
			cmds = append(cmds, m.alert.NewAlertCmd(bubbleup.ErrorKey, "Message failed: "+msg.err.Error()))
		}
		// A failed exchange leaves a dangling user turn; the poll timer
		// takes over from here.
		if cmd := m.schedulePoll(); cmd != nil {
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case conversationDeletedMsg:
		m.confirmDeleteID = ""
		m.snapshot()
		if msg.err != nil {
			cmds = append(cmds, m.alert.NewAlertCmd(bubbleup.ErrorKey, "Failed to delete conversation"))
			return m, tea.Batch(cmds...)
		}
		if m.active != nil && m.active.ID == msg.id {
			// The active conversation is gone; navigate to the new-conversation view.
			m.active = nil
			m.notFound = false
			m.recalculateLayout()
		}
		cmds = append(cmds, m.alert.NewAlertCmd(bubbleup.InfoKey, "Conversation deleted"))
		return m, tea.Batch(cmds...)

	case pollTickMsg:
		if m.active == nil || m.active.ID != msg.conversationID || !m.synchronizer.ShouldPoll() {
			// Torn down: the view moved on or the turn completed. A stale
			// tick only disarms its own timer, never one armed since.
			if m.pollingID == msg.conversationID {
				m.pollingID = ""
			}
			return m, tea.Batch(cmds...)
		}
		cmds = append(cmds, m.pollOnce(msg.conversationID))
		return m, tea.Batch(cmds...)

	case pollDoneMsg:
		if m.active == nil || m.active.ID != msg.conversationID {
			if m.pollingID == msg.conversationID {
				m.pollingID = ""
			}
			return m, tea.Batch(cmds...)
		}
		if msg.err != nil {
			log.Error("polling conversation", "conversation_id", msg.conversationID, "error", msg.err)
		}
		if msg.updated {
			m.pollingID = ""
			m.snapshot()
			m.recalculateLayout()
			m.viewport.GotoBottom()
			return m, tea.Batch(cmds...)
		}
		// Nothing new yet; keep the single timer armed.
		cmds = append(cmds, m.pollTick(msg.conversationID))
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		if m.sending {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		return m.updateKey(msg, cmds)
	}

	return m.updateComponents(msg, cmds)
}

func (m *Model) updateKey(msg tea.KeyMsg, cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	// Delete confirmation intercepts everything else.
	if m.confirmDeleteID != "" {
		switch msg.String() {
		case "y", "Y":
			id := m.confirmDeleteID
			return m, tea.Batch(append(cmds, m.deleteConversation(id))...)
		case "n", "N", "esc":
			m.confirmDeleteID = ""
		}
		return m, tea.Batch(cmds...)
	}

	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab":
		if m.focused == FocusTextarea {
			m.focused = FocusConversations
			m.textarea.Blur()
		} else {
			m.focused = FocusTextarea
			m.textarea.Focus()
			cmds = append(cmds, textarea.Blink)
		}
		return m, tea.Batch(cmds...)

	case "ctrl+n":
		// New-conversation view: empty thread, input focused.
		m.synchronizer.Reset()
		m.active = nil
		m.notFound = false
		m.pollingID = ""
		m.snapshot()
		m.recalculateLayout()
		m.focused = FocusTextarea
		m.textarea.Focus()
		return m, tea.Batch(append(cmds, textarea.Blink)...)

	case "alt+w":
		if content, ok := m.lastAssistantContent(); ok {
			clipboard.Write(clipboard.FmtText, []byte(content))
			cmds = append(cmds, m.alert.NewAlertCmd(bubbleup.InfoKey, "Copied to clipboard!"))
		}
		return m, tea.Batch(cmds...)

	case "alt+p":
		if m.focused == FocusTextarea && !m.sending {
			if entry, ok := m.history.Previous(m.textarea.Value()); ok {
				m.textarea.SetValue(entry)
				m.historyNavigating = true
			}
		}
		return m, tea.Batch(cmds...)

	case "alt+n":
		if m.focused == FocusTextarea && !m.sending {
			if entry, ok := m.history.Next(); ok {
				m.textarea.SetValue(entry)
				m.historyNavigating = true
			}
		}
		return m, tea.Batch(cmds...)

	case "ctrl+j":
		return m.submit(cmds)
	}

	if m.focused == FocusConversations {
		switch msg.String() {
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
			}
			return m, tea.Batch(cmds...)
		case "down", "j":
			if m.selectedIndex < len(m.conversations)-1 {
				m.selectedIndex++
			}
			return m, tea.Batch(cmds...)
		case "enter":
			if len(m.conversations) > 0 {
				id := m.conversations[m.selectedIndex].ID
				m.pollingID = ""
				cmds = append(cmds, m.openConversation(id))
			}
			return m, tea.Batch(cmds...)
		case "ctrl+x", "x":
			if len(m.conversations) > 0 {
				m.confirmDeleteID = m.conversations[m.selectedIndex].ID
			}
			return m, tea.Batch(cmds...)
		}
		return m, tea.Batch(cmds...)
	}

	return m.updateComponents(msg, cmds)
}

// submit dispatches the textarea content: a new exchange on the active
// conversation, or the first message of a new one. Ignored while an
// exchange is pending - the input is effectively disabled.
func (m *Model) submit(cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	if m.sending || m.focused != FocusTextarea {
		return m, tea.Batch(cmds...)
	}
	text := strings.TrimSpace(m.textarea.Value())
	if text == "" {
		return m, tea.Batch(cmds...)
	}

	m.history.Add(text)
	m.historyNavigating = false
	m.textarea.Reset()

	if m.active == nil {
		cmds = append(cmds, m.startConversation(text))
	} else {
		cmds = append(cmds, m.sendMessage(text))
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) updateComponents(msg tea.Msg, cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	if m.focused == FocusTextarea && !m.sending {
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
		if _, ok := msg.(tea.KeyMsg); ok && m.historyNavigating {
			m.history.Reset()
			m.historyNavigating = false
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}
