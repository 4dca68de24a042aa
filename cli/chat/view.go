package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/solweir/parley/cli/chat/styles"
	"github.com/solweir/parley/internal/store"
)

// View renders the model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder

	b.WriteString(m.renderTitle())
	b.WriteString("\n")

	thread := styles.ViewportStyle.Render(m.viewport.View())
	pane := m.renderConversationPane()
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, pane, thread))
	b.WriteString("\n")

	if m.confirmDeleteID != "" {
		b.WriteString(styles.ErrorStyle.Render("Delete this conversation? (y/n)"))
		b.WriteString("\n")
	} else if m.sending {
		b.WriteString(fmt.Sprintf("%s Awaiting reply...\n", m.spinner.View()))
	} else {
		b.WriteString(styles.TextAreaStyle.Render(m.textarea.View()))
		b.WriteString("\n")
	}

	b.WriteString(styles.HelpStyle.Render("Ctrl+J send │ Tab conversations │ Ctrl+N new │ X delete │ Alt+W copy │ Ctrl+C quit"))

	return m.alert.Render(b.String())
}

func (m *Model) renderTitle() string {
	conversationTitle := "New Conversation"
	if m.notFound {
		conversationTitle = "Not Found"
	} else if m.active != nil {
		conversationTitle = m.active.Title
	}
	title := fmt.Sprintf(" 🤖 %s │ 💬 %s ", m.agentName, conversationTitle)
	return styles.TitleStyle.Width(m.width).Render(title)
}

func (m *Model) renderConversationPane() string {
	var b strings.Builder

	if len(m.conversations) == 0 {
		b.WriteString(styles.NoticeStyle.Render("No conversations yet"))
	}

	for i, conversation := range m.conversations {
		if i > 0 {
			b.WriteString("\n")
		}

		style := styles.ConversationStyle
		prefix := "  "
		if m.active != nil && conversation.ID == m.active.ID {
			style = styles.ConversationActiveStyle
			prefix = "• "
		}
		if m.focused == FocusConversations && i == m.selectedIndex {
			style = styles.ConversationSelectedStyle
			prefix = "> "
		}

		b.WriteString(style.Render(prefix + styles.Truncate(conversation.Title, styles.TruncateLength)))
		b.WriteString("\n")
		b.WriteString(styles.TimestampStyle.Render("  " + humanize.Time(conversation.UpdatedAt)))
	}

	return styles.PaneStyle.Height(m.viewport.Height).Render(b.String())
}

// renderThread renders the active conversation's messages for the viewport.
func (m *Model) renderThread() string {
	if m.notFound {
		return styles.NoticeStyle.Render("This conversation no longer exists.")
	}
	if m.active == nil && len(m.messages) == 0 {
		return styles.NoticeStyle.Render("Send a message to start a new conversation.")
	}

	var b strings.Builder
	for i, message := range m.messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch message.Role {
		case store.RoleUser:
			b.WriteString(styles.UserMessageStyle.Render(message.Content))
		case store.RoleAssistant:
			rendered := m.renderer.Render(message.ID, message.Content)
			b.WriteString(styles.AssistantMessageStyle.Render(rendered))
		}
	}

	if m.synchronizer.ShouldPoll() && !m.sending {
		b.WriteString("\n\n")
		b.WriteString(styles.NoticeStyle.Render("Waiting for the agent's reply..."))
	}

	return b.String()
}
