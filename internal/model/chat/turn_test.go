package chat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTurnValid(t *testing.T) {
	turn, err := NewTurn(RoleUser, "2+2=?")
	require.NoError(t, err)
	require.Equal(t, RoleUser, turn.Role)
	require.Equal(t, "2+2=?", turn.Text)
	require.NotEmpty(t, turn.ID)
	require.False(t, turn.CreatedAt.IsZero())
}

func TestNewTurnRejectsUnknownRole(t *testing.T) {
	_, err := NewTurn(Role("system"), "hi")
	require.True(t, errors.Is(err, ErrUnknownRole))
}

func TestNewTurnRejectsBlankText(t *testing.T) {
	_, err := NewTurn(RoleAssistant, "   \n")
	require.ErrorIs(t, err, ErrEmptyText)
}
