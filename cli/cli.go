package cli

import (
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/buger/goterm"
	"github.com/fatih/color"
)

var (
	// Colors.
	titleColor  = color.New(color.Bold)
	formatColor = color.New(color.FgGreen)
	dimColor    = color.New(color.FgHiBlack)
	errorColor  = color.New(color.FgRed)
	okColor     = color.New(color.FgCyan)

	width = goterm.Width()
)

// Separator printed to cli.
func Separator() {
	separator := strings.Repeat("-", width)
	formatColor.Println(separator)
}

// Title printed to cli.
func Title(text string, args ...any) {
	title := "      " + fmt.Sprintf(text, args...) + "      "
	leftWidth := (width - len(title)) / 2
	separator1 := strings.Repeat("-", leftWidth)
	separator2 := strings.Repeat("-", width-len(title)-len(separator1))
	output := fmt.Sprintf("%s%s%s", separator1, title, separator2)
	formatColor.Println(output)
}

// Row prints a conversation row: bold title, dim metadata.
func Row(title, metadata string) {
	titleColor.Printf("%s ", title)
	dimColor.Printf("%s\n", metadata)
}

// Error printed to cli.
func Error(text string, args ...any) {
	errorColor.Printf(text+"\n", args...)
}

// OK printed to cli.
func OK(text string, args ...any) {
	okColor.Printf(text+"\n", args...)
}

// Confirm prompts the user to confirm an action.
func Confirm(text string, args ...any) bool {
	confirm := false
	question := &survey.Confirm{
		Message: fmt.Sprintf(text, args...),
	}
	survey.AskOne(question, &confirm)
	return confirm
}
