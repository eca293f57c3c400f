package memory

import (
	"fmt"
	"strings"
)

type Role string

const (
	User      Role = "user"
	Assistant Role = "assistant"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	return r == User || r == Assistant
}

// Label returns the name used for the role when rendered as text.
func (r Role) Label() string {
	if r == User {
		return "User"
	}
	return "Assistant"
}

// Turn is a single message of the conversation.
type Turn struct {
	Role Role   `json:"role" yaml:"role"`
	Text string `json:"text" yaml:"text"`
}

type Memory interface {
	Add(Turn) error
	Sum() ([]Turn, error)
}

// Header is the first line of a rendered, non-empty memory.
const Header = "Recent conversation:"

var flatten = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Render returns the turns as plain text to be included in a prompt.
// An empty list renders as the empty string.
func Render(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}
	lines := make([]string, 0, len(turns)+1)
	lines = append(lines, Header)
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("%s: %s", t.Role.Label(), flatten.Replace(t.Text)))
	}
	return strings.Join(lines, "\n") + "\n\n"
}
