package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies the speaker of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known speaker roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

var (
	ErrUnknownRole = errors.New("unknown role")
	ErrEmptyText   = errors.New("text is required")
)

// Turn is one message of a conversation. Values are never mutated after
// NewTurn returns them.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewTurn validates role and text and stamps a fresh turn.
func NewTurn(role Role, text string) (Turn, error) {
	if !role.Valid() {
		return Turn{}, fmt.Errorf("%w: %q", ErrUnknownRole, string(role))
	}
	if strings.TrimSpace(text) == "" {
		return Turn{}, ErrEmptyText
	}
	return Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// MalformedTurn is a stored record that could not be read back as a Turn.
type MalformedTurn struct {
	Position int    `json:"position"`
	Role     string `json:"role,omitempty"`
	Reason   string `json:"reason"`
}

// Entry is either a Turn or a MalformedTurn.
type Entry interface {
	entry()
}

func (Turn) entry()          {}
func (MalformedTurn) entry() {}
