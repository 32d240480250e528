package command

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	cases := map[string]string{
		"applications": Applications,
		" Refresh ":    Refresh,
		"sync":         Refresh,
		"q":            Quit,
		"signout":      Logout,
		"co":           Complaints,
		"ap":           Applications,
		"m":            MarkAllRead,
	}
	for input, want := range cases {
		got, ok := Resolve(input)
		require.True(t, ok, input)
		assert.Equal(t, want, got, input)
	}

	for _, input := range []string{"", "c", "bogus"} {
		_, ok := Resolve(input)
		assert.False(t, ok, input)
	}
}

func TestEnterEmitsCommand(t *testing.T) {
	m := New(80, 24)
	m.input.SetValue("serv")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, CommandMsg(Services), cmd())
	assert.Empty(t, m.input.Value())
}

func TestUnknownCommandShowsError(t *testing.T) {
	m := New(80, 24)
	m.input.SetValue("bogus")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "unknown command: bogus")
}

func TestEscCancels(t *testing.T) {
	m := New(80, 24)
	m.input.SetValue("ref")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, CancelMsg{}, cmd())
	assert.Empty(t, m.input.Value())
}
