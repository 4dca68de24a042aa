package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.dalton.dog/bubbleup"

	"github.com/solweir/parley/cli/chat/styles"
	"github.com/solweir/parley/internal/configuration"
	"github.com/solweir/parley/internal/conversation"
	"github.com/solweir/parley/internal/debug"
	"github.com/solweir/parley/internal/history"
	"github.com/solweir/parley/internal/markdown"
	"github.com/solweir/parley/internal/store"
)

const (
	FocusTextarea FocusedComponent = iota
	FocusConversations
)

var log *slog.Logger = debug.GetLogger()

type FocusedComponent int

// Model is the Bubble Tea model for the chat view: a conversation list pane,
// the message thread, and the input textarea. All durable state lives in the
// synchronizer; the slices here are display snapshots.
type Model struct {
	// Core dependencies
	ctx          context.Context
	config       *configuration.Config
	synchronizer *conversation.Synchronizer
	agentName    string
	initialID    string

	// Display snapshots, refreshed from the synchronizer on every state update
	conversations []*store.Conversation
	messages      []*store.Message

	// Active conversation, nil while composing a new one
	active   *store.Conversation
	notFound bool

	// UI components
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *markdown.Renderer
	alert    bubbleup.AlertModel

	// UI state
	width           int
	height          int
	ready           bool
	quitting        bool
	focused         FocusedComponent
	selectedIndex   int
	confirmDeleteID string

	// An exchange is in flight; input is ignored until it lands
	sending bool

	// A poll tick is scheduled for this conversation id, empty when none.
	// At most one timer exists at a time; a tick carrying a stale id is
	// discarded, which is how the timer is torn down on switches.
	pollingID string

	// Input history
	history           *history.History
	historyNavigating bool

	// Program reference for sending messages from goroutines
	program   *tea.Program
	programMu sync.Mutex
}

// New creates the chat view model.
func New(
	ctx context.Context,
	config *configuration.Config,
	synchronizer *conversation.Synchronizer,
	agentName string,
	initialID string,
) (*Model, error) {
	ta := textarea.New()
	ta.Placeholder = "Type your message... (Ctrl+J to send, Tab for conversations, Ctrl+N new, Ctrl+C to quit)"
	ta.Focus()
	ta.CharLimit = 0
	ta.SetHeight(styles.MinTextareaHeight)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(true)
	ta.Prompt = ""

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.SpinnerStyle

	renderer, err := markdown.NewRenderer(80)
	if err != nil {
		return nil, err
	}

	alert := bubbleup.NewAlertModel(40, true, 3)

	return &Model{
		ctx:          ctx,
		config:       config,
		synchronizer: synchronizer,
		agentName:    agentName,
		initialID:    initialID,
		textarea:     ta,
		spinner:      sp,
		renderer:     renderer,
		alert:        *alert,
		history:      history.New(),
	}, nil
}

// SetProgram sets the tea.Program reference for async message sending.
func (m *Model) SetProgram(p *tea.Program) {
	m.programMu.Lock()
	defer m.programMu.Unlock()
	m.program = p
}

// getProgram safely gets the program reference.
func (m *Model) getProgram() *tea.Program {
	m.programMu.Lock()
	defer m.programMu.Unlock()
	return m.program
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.alert.Init(),
		m.refreshConversations(),
		m.openInitial(),
	)
}

// snapshot refreshes the display slices from the synchronizer.
func (m *Model) snapshot() {
	m.messages = m.synchronizer.Messages()
	m.conversations = m.synchronizer.Conversations()
	if m.selectedIndex >= len(m.conversations) {
		m.selectedIndex = len(m.conversations) - 1
	}
	if m.selectedIndex < 0 {
		m.selectedIndex = 0
	}
}

// lastAssistantContent returns the content of the most recent assistant
// message, for the copy-to-clipboard binding.
func (m *Model) lastAssistantContent() (string, bool) {
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Role == store.RoleAssistant {
			return m.messages[i].Content, true
		}
	}
	return "", false
}

func (m *Model) recalculateLayout() {
	if !m.ready {
		return
	}
	viewportWidth := m.width - styles.ConversationPaneWidth - 1
	if viewportWidth < 1 {
		viewportWidth = 1
	}
	viewportHeight := m.height - styles.HeaderHeight - m.textarea.Height() - styles.InputBorderHeight - 1
	if viewportHeight < styles.MinViewportHeight {
		viewportHeight = styles.MinViewportHeight
	}
	m.viewport.Width = viewportWidth
	m.viewport.Height = viewportHeight
	m.textarea.SetWidth(m.width - 2)

	// Message bubbles carry margins and borders on top of the wrap width.
	wrapWidth := viewportWidth - 12
	if wrapWidth < 20 {
		wrapWidth = 20
	}
	if wrapWidth != m.renderer.Width() {
		if renderer, err := markdown.NewRenderer(wrapWidth); err == nil {
			m.renderer = renderer
		}
	}

	m.viewport.SetContent(m.renderThread())
}
