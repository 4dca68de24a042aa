package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Layout constants
const (
	MinTextareaHeight     = 3
	MaxTextareaHeight     = 10
	TextAreaPaddingLeft   = 1
	MinViewportHeight     = 1
	InputBorderHeight     = 2
	HeaderHeight          = 2
	ConversationPaneWidth = 28

	TruncateLength = 24
	TruncateSuffix = "..."
)

// Color palette
var (
	PrimaryColor   = lipgloss.Color("#7C3AED") // Purple
	SecondaryColor = lipgloss.Color("#06B6D4") // Cyan
	ErrorColor     = lipgloss.Color("#EF4444") // Red
	TextColor      = lipgloss.Color("#F9FAFB") // Light gray
	DimTextColor   = lipgloss.Color("#9CA3AF") // Dim gray
	BorderColor    = lipgloss.Color("#4B5563")
	SelectedColor  = lipgloss.Color("#10B981") // Green
)

// Title bar
var (
	TitleStyle = lipgloss.NewStyle().
			Background(PrimaryColor).
			Foreground(TextColor).
			Bold(true)
)

// Messages
var (
	messageStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder())

	UserMessageStyle = lipgloss.NewStyle().
				Inherit(messageStyle).
				BorderForeground(PrimaryColor).
				MarginLeft(8)

	AssistantMessageStyle = lipgloss.NewStyle().
				Inherit(messageStyle).
				BorderForeground(SecondaryColor).
				MarginRight(8)
)

// Conversation pane
var (
	PaneStyle = lipgloss.NewStyle().
			Width(ConversationPaneWidth).
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(BorderColor)

	ConversationStyle = lipgloss.NewStyle().
				Foreground(DimTextColor)

	ConversationSelectedStyle = lipgloss.NewStyle().
					Foreground(SelectedColor).
					Bold(true)

	ConversationActiveStyle = lipgloss.NewStyle().
				Foreground(TextColor)

	TimestampStyle = lipgloss.NewStyle().
			Foreground(DimTextColor).
			Faint(true)
)

// Chrome
var (
	ViewportStyle = lipgloss.NewStyle()

	TextAreaStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			PaddingLeft(TextAreaPaddingLeft)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)

	HelpStyle = lipgloss.NewStyle().
			Foreground(DimTextColor).
			Faint(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	NoticeStyle = lipgloss.NewStyle().
			Foreground(DimTextColor).
			Italic(true)
)

// Truncate shortens text, appending a suffix when truncated.
func Truncate(text string, length int) string {
	runes := []rune(text)
	if len(runes) <= length {
		return text
	}
	return string(runes[:length]) + TruncateSuffix
}
