package conversation

import "strings"

const (
	titleMaxLength = 30
	titleSuffix    = "..."
)

// DeriveTitle names a new conversation after its first message: the message
// itself when short, otherwise its first 30 characters plus an ellipsis.
func DeriveTitle(text string) string {
	runes := []rune(trimText(text))
	if len(runes) <= titleMaxLength {
		return string(runes)
	}
	return string(runes[:titleMaxLength]) + titleSuffix
}

func trimText(text string) string {
	return strings.TrimSpace(text)
}
