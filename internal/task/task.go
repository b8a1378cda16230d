package task

import (
	"fmt"
	"strings"
)

// Kind is the discriminator the assistant service uses to pick the
// transformation it performs on a code fragment.
type Kind string

const (
	Comment          Kind = "comment"
	GenerateFunction Kind = "function"
)

// All returns every task kind in a stable order.
func All() []Kind {
	return []Kind{Comment, GenerateFunction}
}

// Parse maps a user-supplied name to a Kind. It accepts the wire value
// as well as the command aliases used by the CLI.
func Parse(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "comment", "comment-selection":
		return Comment, nil
	case "function", "generate-function", "func":
		return GenerateFunction, nil
	}
	return "", fmt.Errorf("unknown task %q", s)
}

// Label is the human-readable name used in notifications.
func (k Kind) Label() string {
	switch k {
	case Comment:
		return "Comment code"
	case GenerateFunction:
		return "Generate function"
	}
	return string(k)
}
