// Package login is the sign-in form shown when no valid session exists.
package login

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-playground/validator/v10"

	"github.com/jonoseba/portal/internal/api"
	"github.com/jonoseba/portal/internal/theme"
)

const loginTimeout = 20 * time.Second

// Func exchanges credentials for a session.
type Func func(ctx context.Context, email, password string) (*api.Session, error)

// LoggedInMsg is dispatched after a successful login.
type LoggedInMsg struct {
	Session *api.Session
}

// QuitMsg is dispatched when the user aborts the form.
type QuitMsg struct{}

type failedMsg struct {
	err error
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	email    string
	password string
}

var validate = validator.New()

// Model is the Bubble Tea model for the login form.
type Model struct {
	login   Func
	form    *huh.Form
	fb      *formBindings
	spinner spinner.Model
	busy    bool
	err     error
	reason  string
	width   int
	height  int
}

// New creates the login form. email pre-fills the address field.
func New(login Func, email string, width, height int) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)
	return Model{
		login:   login,
		fb:      &formBindings{email: email},
		spinner: s,
		width:   width,
		height:  height,
	}
}

// Start shows a fresh form. reason explains why the user is signing in
// again, e.g. an expired session; it may be empty.
func (m *Model) Start(reason string) tea.Cmd {
	m.fb.password = ""
	m.busy = false
	m.err = nil
	m.reason = reason
	m.form = m.buildForm()
	return m.form.Init()
}

func (m Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(&m.fb.email).
				Validate(validEmail),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("password is required")
					}
					return nil
				}),
		),
	).WithWidth(min(max(m.width-8, 30), 60)).WithShowHelp(true)
}

func validEmail(s string) error {
	if err := validate.Var(strings.TrimSpace(s), "required,email"); err != nil {
		return errors.New("enter a valid email address")
	}
	return nil
}

// Init starts the form when one is showing.
func (m Model) Init() tea.Cmd {
	if m.form == nil {
		return nil
	}
	return m.form.Init()
}

// Busy reports whether a login request is in flight.
func (m Model) Busy() bool { return m.busy }

// Update handles messages for the login form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case failedMsg:
		m.busy = false
		m.err = msg.err
		m.fb.password = ""
		m.form = m.buildForm()
		return m, m.form.Init()

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.form == nil || m.busy {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.busy = true
		m.err = nil
		return m, tea.Batch(m.spinner.Tick, m.submit())
	case huh.StateAborted:
		return m, func() tea.Msg { return QuitMsg{} }
	}
	return m, cmd
}

func (m Model) submit() tea.Cmd {
	login := m.login
	email := strings.TrimSpace(m.fb.email)
	password := m.fb.password
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
		defer cancel()

		sess, err := login(ctx, email, password)
		if err != nil {
			return failedMsg{err: err}
		}
		return LoggedInMsg{Session: sess}
	}
}

// Email returns the address last entered.
func (m Model) Email() string {
	return strings.TrimSpace(m.fb.email)
}

func errorText(err error) string {
	if api.IsAuthError(err) {
		return "Invalid email or password"
	}
	return "Could not sign in: " + err.Error()
}

// View renders the login form.
func (m Model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue).Render("Sign in to JonoSeba")

	parts := []string{title, ""}
	if m.reason != "" {
		parts = append(parts, theme.HelpStyle.Render(m.reason), "")
	}
	switch {
	case m.busy:
		parts = append(parts, m.spinner.View()+" Signing in…")
	case m.form != nil:
		parts = append(parts, m.form.View())
	}
	if m.err != nil {
		parts = append(parts, "", theme.ErrorStyle.Render(errorText(m.err)))
	}

	box := theme.PanelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(min(max(width-8, 30), 60))
	}
}
