// Package notifications holds the notification page, the header bell and
// the bridge from store change callbacks to Bubble Tea messages.
package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/jonoseba/portal/internal/keys"
	"github.com/jonoseba/portal/internal/model"
	"github.com/jonoseba/portal/internal/table"
	"github.com/jonoseba/portal/internal/theme"
	"github.com/jonoseba/portal/internal/ui"
	"github.com/jonoseba/portal/internal/ui/datatable"
)

// Store is the notification store as seen by the page.
type Store interface {
	Source
	BellSource
	Items() []model.Notification
	Unread() []model.Notification
	ByID(id string) (model.Notification, bool)
	MarkReadOnServer(ctx context.Context, id string) error
	MarkAllReadOnServer(ctx context.Context) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}

// Row action labels.
const (
	actionMarkRead = "Mark as read"
	actionDelete   = "Delete"
)

// Model is the notification page.
type Model struct {
	store Store
	keys  *keys.KeyMap
	now   func() time.Time

	tbl  *table.Table[model.Notification]
	grid datatable.Model[model.Notification]

	unreadOnly bool

	detailID string
	detail   viewport.Model

	confirm   *huh.Form
	confirmed *bool

	width  int
	height int
}

// New creates the notification page over s.
func New(s Store, k *keys.KeyMap, pageSize int, matcher table.Matcher, width, height int) Model {
	m := Model{
		store:     s,
		keys:      k,
		now:       time.Now,
		confirmed: new(bool),
		detail:    viewport.New(width, height),
	}

	tbl := table.New(m.columns())
	tbl.PageSize = pageSize
	tbl.Matcher = matcher
	tbl.EmptyMessage = "No notifications"
	tbl.OnSearchChange = func(q string) {
		tbl.SearchValue = q
		tbl.CurrentPage = 1
	}
	tbl.OnPageChange = func(p int) { tbl.CurrentPage = p }
	tbl.RowActions = []table.RowAction[model.Notification]{
		{
			Label: actionMarkRead,
			Icon:  "✓",
			OnClick: func(ctx context.Context, n model.Notification) error {
				return s.MarkReadOnServer(ctx, n.ID)
			},
		},
		{
			Label:   actionDelete,
			Icon:    "✗",
			Variant: table.VariantDestructive,
			OnClick: func(ctx context.Context, n model.Notification) error {
				return s.Delete(ctx, n.ID)
			},
		},
	}

	m.tbl = tbl
	m.grid = datatable.New("Notifications", tbl, k, width, height)
	m.SetSize(width, height)
	m.reload()
	return m
}

func (m Model) columns() []table.Column[model.Notification] {
	return []table.Column[model.Notification]{
		{
			Key:      "read",
			Width:    1,
			NoSearch: true,
			Render: func(_ any, n model.Notification) string {
				if n.Read {
					return ""
				}
				return "●"
			},
		},
		{
			Key:    "type",
			Header: "Type",
			Width:  12,
			Value:  func(n model.Notification) any { return n.Type },
			Render: func(_ any, n model.Notification) string { return TypeLabel(n.Type) },
		},
		{Key: "title", Header: "Title", Width: 28, Value: func(n model.Notification) any { return n.Title }},
		{Key: "message", Header: "Message", Width: 40, Value: func(n model.Notification) any { return n.Message }},
		{
			Key:      "createdAt",
			Header:   "Received",
			Width:    11,
			NoSearch: true,
			Value:    func(n model.Notification) any { return n.CreatedAt },
			Render: func(_ any, n model.Notification) string {
				return TimeAgo(n.CreatedAt, m.now())
			},
		},
	}
}

// Init starts the widget.
func (m Model) Init() tea.Cmd {
	return m.grid.Init()
}

// Capturing reports whether the page owns the keyboard.
func (m Model) Capturing() bool {
	return m.grid.Capturing() || m.confirm != nil
}

// reload copies the store into the table.
func (m *Model) reload() {
	if m.unreadOnly {
		m.tbl.Data = m.store.Unread()
	} else {
		m.tbl.Data = m.store.Items()
	}
	if pages := m.tbl.TotalPages(); pages > 0 && m.tbl.CurrentPage > pages {
		m.tbl.CurrentPage = pages
	}

	title := fmt.Sprintf("Notifications (%d unread)", m.store.UnreadCount())
	if m.unreadOnly {
		title += " · unread only"
	}
	m.grid.SetTitle(title)
	m.grid.Refresh()

	if m.detailID != "" {
		n, ok := m.store.ByID(m.detailID)
		if !ok {
			m.detailID = ""
			return
		}
		m.detail.SetContent(m.renderDetail(n))
	}
}

// Update handles messages for the page.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ChangedMsg:
		m.reload()
		return m, nil

	case datatable.ActionDoneMsg:
		if msg.Err != nil {
			return m, ui.Failure("Could not "+strings.ToLower(msg.Label), msg.Err)
		}
		if msg.Label == actionDelete {
			return m, ui.Notice("Notification deleted")
		}
		return m, nil

	case tea.KeyMsg:
		if m.confirm != nil {
			return m.updateConfirm(msg)
		}
		if m.detailID != "" {
			return m.updateDetail(msg)
		}
		if !m.grid.Capturing() {
			if next, cmd, ok := m.handleKey(msg); ok {
				return next, cmd
			}
		}
	}

	if m.confirm != nil {
		return m.updateConfirm(msg)
	}

	var cmd tea.Cmd
	m.grid, cmd = m.grid.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Select):
		n, ok := m.grid.Selected()
		if !ok {
			return m, nil, true
		}
		m.detailID = n.ID
		m.detail.SetContent(m.renderDetail(n))
		m.detail.GotoTop()
		if !n.Read {
			return m, m.markRead(n.ID), true
		}
		return m, nil, true

	case key.Matches(msg, m.keys.MarkRead):
		if n, ok := m.grid.Selected(); ok && !n.Read {
			return m, m.markRead(n.ID), true
		}
		return m, nil, true

	case key.Matches(msg, m.keys.MarkAllRead):
		if m.store.UnreadCount() == 0 {
			return m, nil, true
		}
		return m, m.markAllRead(), true

	case key.Matches(msg, m.keys.Delete):
		if n, ok := m.grid.Selected(); ok {
			return m, m.remove(n.ID), true
		}
		return m, nil, true

	case key.Matches(msg, m.keys.ClearAll):
		if len(m.store.Items()) == 0 {
			return m, nil, true
		}
		*m.confirmed = false
		m.confirm = m.buildConfirm()
		return m, m.confirm.Init(), true

	case key.Matches(msg, m.keys.UnreadOnly):
		m.unreadOnly = !m.unreadOnly
		m.tbl.CurrentPage = 1
		m.reload()
		return m, nil, true
	}
	return m, nil, false
}

func (m Model) updateDetail(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.detailID = ""
		return m, nil
	case key.Matches(msg, m.keys.Delete):
		id := m.detailID
		m.detailID = ""
		return m, m.remove(id)
	}
	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m Model) buildConfirm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Clear all notifications?").
				Description(fmt.Sprintf("%d notifications will be removed.", len(m.store.Items()))).
				Affirmative("Yes, clear").
				Negative("Cancel").
				Value(m.confirmed),
		),
	).WithWidth(min(max(m.width-4, 30), 80))
}

func (m Model) updateConfirm(msg tea.Msg) (Model, tea.Cmd) {
	mdl, cmd := m.confirm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirm = f
	}
	switch m.confirm.State {
	case huh.StateCompleted:
		m.confirm = nil
		if *m.confirmed {
			return m, m.clearAll()
		}
		return m, nil
	case huh.StateAborted:
		m.confirm = nil
		return m, nil
	}
	return m, cmd
}

func (m Model) markRead(id string) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		if err := s.MarkReadOnServer(context.Background(), id); err != nil {
			return ui.NoticeMsg{Text: fmt.Sprintf("Could not mark as read: %v", err), Error: true}
		}
		return nil
	}
}

func (m Model) markAllRead() tea.Cmd {
	s := m.store
	return func() tea.Msg {
		if err := s.MarkAllReadOnServer(context.Background()); err != nil {
			return ui.NoticeMsg{Text: fmt.Sprintf("Could not mark all as read: %v", err), Error: true}
		}
		return ui.NoticeMsg{Text: "All notifications marked as read"}
	}
}

func (m Model) remove(id string) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		if err := s.Delete(context.Background(), id); err != nil {
			return ui.NoticeMsg{Text: fmt.Sprintf("Could not delete notification: %v", err), Error: true}
		}
		return ui.NoticeMsg{Text: "Notification deleted"}
	}
}

func (m Model) clearAll() tea.Cmd {
	s := m.store
	return func() tea.Msg {
		if err := s.DeleteAll(context.Background()); err != nil {
			return ui.NoticeMsg{Text: fmt.Sprintf("Some notifications could not be cleared: %v", err), Error: true}
		}
		return ui.NoticeMsg{Text: "All notifications cleared"}
	}
}

func (m Model) renderDetail(n model.Notification) string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render(n.Title))
	b.WriteString("\n")
	b.WriteString(theme.NotificationTypeStyle(string(n.Type)).Render(TypeLabel(n.Type)))
	b.WriteString(theme.HelpStyle.Render(TimeAgo(n.CreatedAt, m.now())))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Width(max(m.width-8, 20)).Render(n.Message))
	if n.RelatedEntityID != "" {
		b.WriteString("\n\n")
		b.WriteString(theme.DimmedStyle.Render(fmt.Sprintf("Related %s: %s",
			strings.ToLower(n.RelatedEntityType), n.RelatedEntityID)))
	}
	return b.String()
}

// View renders the page.
func (m Model) View() string {
	if m.confirm != nil {
		return lipgloss.NewStyle().Padding(1, 2).Render(m.confirm.View())
	}
	if m.detailID != "" {
		hint := theme.HelpStyle.Render("esc back | d delete | j/k scroll")
		return lipgloss.JoinVertical(lipgloss.Left,
			theme.PanelStyle.Width(max(m.width-4, 20)).Render(m.detail.View()),
			hint,
		)
	}
	return m.grid.View()
}

// SetSize updates the page dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.grid.SetSize(width, height)
	m.detail.Width = max(width-8, 10)
	m.detail.Height = max(height-6, 3)
}

// KeyHints returns the status bar hints for the page.
func (m Model) KeyHints() string {
	switch {
	case m.confirm != nil:
		return "enter confirm | esc cancel"
	case m.detailID != "":
		return "esc back | d delete"
	default:
		return "enter open | m read | M read all | d delete | D clear | f unread | / search | . actions"
	}
}
