package command

import (
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jonoseba/portal/internal/theme"
)

// CommandMsg is emitted when the user executes a known command.
type CommandMsg string

// CancelMsg is emitted when the palette is closed without a command.
type CancelMsg struct{}

// Commands understood by the palette.
const (
	Refresh       = "refresh"
	MarkAllRead   = "mark-all-read"
	Clear         = "clear"
	Logout        = "logout"
	Quit          = "quit"
	Notifications = "notifications"
	Applications  = "applications"
	Complaints    = "complaints"
	Services      = "services"
	Users         = "users"
)

// Known lists every command in completion order.
var Known = []string{
	Notifications, Applications, Complaints, Services, Users,
	Refresh, MarkAllRead, Clear, Logout, Quit,
}

var aliases = map[string]string{
	"sync":    Refresh,
	"read":    MarkAllRead,
	"q":       Quit,
	"exit":    Quit,
	"signout": Logout,
}

// Resolve maps user input to a known command. It accepts aliases and
// unambiguous prefixes.
func Resolve(input string) (string, bool) {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return "", false
	}
	if slices.Contains(Known, input) {
		return input, true
	}
	if cmd, ok := aliases[input]; ok {
		return cmd, true
	}

	var match string
	for _, cmd := range Known {
		if strings.HasPrefix(cmd, input) {
			if match != "" {
				return "", false
			}
			match = cmd
		}
	}
	return match, match != ""
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	errMsg string
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.SetSuggestions(Known)
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			m.input.Reset()
			m.errMsg = ""
			return m, func() tea.Msg { return CancelMsg{} }

		case "enter":
			raw := m.input.Value()
			cmd, ok := Resolve(raw)
			if !ok {
				if strings.TrimSpace(raw) != "" {
					m.errMsg = "unknown command: " + strings.TrimSpace(raw)
				}
				return m, nil
			}
			m.input.Reset()
			m.errMsg = ""
			return m, func() tea.Msg {
				return CommandMsg(cmd)
			}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	parts := []string{
		titleStyle.Render("Command Palette"),
		m.input.View(),
	}
	if m.errMsg != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.errMsg))
	}
	parts = append(parts, theme.HelpStyle.Render(strings.Join(Known, "  ")))

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
