package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jonoseba/portal/internal/keys"
	"github.com/jonoseba/portal/internal/theme"
)

// groupTitles label the columns returned by KeyMap.FullHelp.
var groupTitles = []string{"Navigation", "Tables", "Pages", "Notifications"}

// Model is the help overlay view.
type Model struct {
	keys    *keys.KeyMap
	help    help.Model
	account string
	width   int
	height  int
}

// New creates a new help view model.
func New(k *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   k,
		help:   h,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// SetAccount sets the "signed in as" line. An empty account hides it.
func (m *Model) SetAccount(name, role string) {
	if name == "" {
		m.account = ""
		return
	}
	m.account = fmt.Sprintf("Signed in as %s (%s)", name, role)
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	sections := []string{titleStyle.Render("Keyboard Shortcuts")}
	if m.account != "" {
		sections = append(sections, theme.DimmedStyle.Render(m.account), "")
	}

	groups := m.keys.FullHelp()
	columns := make([]string, 0, len(groups))
	for i, group := range groups {
		columns = append(columns, m.renderGroup(i, group))
	}
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, columns...))

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m Model) renderGroup(i int, group []key.Binding) string {
	var b strings.Builder
	if i < len(groupTitles) {
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue).Render(groupTitles[i]))
		b.WriteString("\n")
	}
	keyStyle := m.help.Styles.FullKey
	descStyle := m.help.Styles.FullDesc
	for _, binding := range group {
		if !binding.Enabled() {
			continue
		}
		h := binding.Help()
		b.WriteString(keyStyle.Render(fmt.Sprintf("%-8s", h.Key)))
		b.WriteString(descStyle.Render(h.Desc))
		b.WriteString("\n")
	}
	return lipgloss.NewStyle().MarginRight(4).Render(b.String())
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
