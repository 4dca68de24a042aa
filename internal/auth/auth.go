// Package auth implements the shared-password gate in front of the UI.
package auth

import (
	"github.com/AlecAivazis/survey/v2"
	"github.com/pkg/errors"
)

const maxAttempts = 3

// Gate prompts for the shared password and compares it against the
// configured one. An empty configured password disables the gate.
func Gate(password string) error {
	if password == "" {
		return nil
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		var entered string
		prompt := &survey.Password{Message: "Secret word:"}
		if err := survey.AskOne(prompt, &entered); err != nil {
			return errors.Wrap(err, "reading password")
		}
		if entered == password {
			return nil
		}
	}
	return errors.New("invalid password")
}
