package cli

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"

	"parcel/internal/registry"
)

// namespacePrompt asks the user to pick one of their namespaces via survey.
type namespacePrompt struct{}

func (namespacePrompt) SelectNamespace(id *registry.Identity) (string, error) {
	if len(id.Namespaces) == 0 {
		return "", fmt.Errorf("user %s has no namespaces to push to", id.Username)
	}

	var choice string
	prompt := &survey.Select{
		Message: "Choose a namespace to push the package to",
		Options: id.Namespaces,
		Default: id.Username,
	}
	if err := survey.AskOne(prompt, &choice); err != nil {
		return "", fmt.Errorf("namespace prompt failed: %w", err)
	}

	return choice, nil
}
