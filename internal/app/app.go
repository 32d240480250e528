package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/jonoseba/portal/internal/api"
	"github.com/jonoseba/portal/internal/keys"
	"github.com/jonoseba/portal/internal/model"
	"github.com/jonoseba/portal/internal/notify"
	"github.com/jonoseba/portal/internal/realtime"
	"github.com/jonoseba/portal/internal/store"
	appsync "github.com/jonoseba/portal/internal/sync"
	"github.com/jonoseba/portal/internal/table"
	"github.com/jonoseba/portal/internal/theme"
	"github.com/jonoseba/portal/internal/ui"
	"github.com/jonoseba/portal/internal/ui/command"
	"github.com/jonoseba/portal/internal/ui/datatable"
	helpview "github.com/jonoseba/portal/internal/ui/help"
	"github.com/jonoseba/portal/internal/ui/login"
	"github.com/jonoseba/portal/internal/ui/notifications"
	"github.com/jonoseba/portal/internal/ui/resources"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewNotifications
	ViewApplications
	ViewComplaints
	ViewServices
	ViewUsers
	ViewHelp
	ViewCommand
)

// Credentials persists the session token.
type Credentials interface {
	Save(token string) error
	Clear() error
}

// LocalData is the on-disk state dropped at logout.
type LocalData interface {
	ClearNotifications(ctx context.Context, namespace string) error
}

// Account is the signed-in user.
type Account struct {
	Name string
	Role model.UserRole
}

// Deps wires the root model to the rest of the client. Listener, Cache and
// Local may be nil.
type Deps struct {
	Config      *model.AppConfig
	Client      *api.Client
	Store       *notify.Store
	Credentials Credentials
	Poller      *appsync.Poller
	Listener    *realtime.Listener
	Cache       *store.QueryCache
	Local       LocalData
	Login       login.Func
	Logger      zerolog.Logger

	// Account is the restored session; nil starts at the login form.
	Account *Account
	// Email pre-fills the login form.
	Email string
}

// runtime holds state shared by every copy of the model: background
// loops must be started and cancelled exactly once.
type runtime struct {
	watcher        *notifications.Watcher
	cancelSession  context.CancelFunc
	pollWaiting    bool
	eventsWaiting  bool
}

// Model is the root Bubble Tea model that manages view routing, the
// header bell, toast notices and the session lifecycle.
type Model struct {
	deps Deps
	log  zerolog.Logger
	keys *keys.KeyMap
	rt   *runtime

	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	ready        bool

	account *Account
	live    bool

	loginView     login.Model
	notifications notifications.Model
	applications  resources.Page[model.Application]
	complaints    resources.Page[model.Complaint]
	services      resources.Page[model.Service]
	users         resources.Page[model.User]
	helpView      helpview.Model
	commandView   command.Model
	bell          notifications.Bell

	notice    string
	noticeErr bool
	noticeSeq int
}

// New creates the root model.
func New(d Deps) Model {
	k := keys.DefaultKeyMap()
	log := d.Logger.With().Str("component", "app").Logger()

	var matcher table.Matcher
	if d.Config.Display.FoldSearch {
		matcher = table.FoldMatcher
	}

	m := Model{
		deps:          d,
		log:           log,
		keys:          k,
		rt:            &runtime{watcher: notifications.Watch(d.Store)},
		loginView:     login.New(d.Login, d.Email, 80, 24),
		notifications: notifications.New(d.Store, k, d.Config.Display.PageSize, matcher, 80, 24),
		helpView:      helpview.New(k, 80, 24),
		commandView:   command.New(80, 24),
		bell:          notifications.NewBell(d.Store),
	}
	m.buildPages()

	if d.Account != nil {
		m.signIn(*d.Account)
		m.currentView = ViewNotifications
	} else {
		m.currentView = ViewLogin
		m.loginView.Start("")
	}
	return m
}

// buildPages creates empty resource pages; called again after logout so
// nothing from the previous account stays on screen.
func (m *Model) buildPages() {
	c, size := m.deps.Client, m.deps.Config.Display.PageSize
	m.applications = resources.NewPage(resources.Applications(c),
		resources.APILister[model.Application](c, api.ResourceApplications), m.deps.Cache, m.keys, size, m.deps.Logger)
	m.complaints = resources.NewPage(resources.Complaints(c),
		resources.APILister[model.Complaint](c, api.ResourceComplaints), m.deps.Cache, m.keys, size, m.deps.Logger)
	m.services = resources.NewPage(resources.Services(c),
		resources.APILister[model.Service](c, api.ResourceServices), m.deps.Cache, m.keys, size, m.deps.Logger)
	m.users = resources.NewPage(resources.Users(c),
		resources.APILister[model.User](c, api.ResourceUsers), m.deps.Cache, m.keys, size, m.deps.Logger)
	if m.ready {
		m.resize()
	}
}

// Init starts the store watcher and, with a restored session, the
// background sync.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.rt.watcher.Wait(), m.notifications.Init()}
	if m.account != nil {
		cmds = append(cmds, m.startSession())
	} else {
		cmds = append(cmds, m.loginView.Init())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.resize()
		// Forward to the login view so huh forms can calculate their layout.
		if m.currentView == ViewLogin {
			var cmd tea.Cmd
			m.loginView, cmd = m.loginView.Update(msg)
			return m, cmd
		}
		return m, nil

	case login.LoggedInMsg:
		return m.handleLoggedIn(msg)

	case login.QuitMsg:
		return m, m.quit()

	case ui.NoticeMsg:
		m.noticeSeq++
		m.notice = msg.Text
		m.noticeErr = msg.Error
		return m, ui.ExpireNotice(m.noticeSeq)

	case ui.NoticeExpiredMsg:
		if msg.Seq == m.noticeSeq {
			m.notice = ""
			m.noticeErr = false
		}
		return m, nil

	case ui.AuthExpiredMsg:
		if m.account == nil {
			return m, nil
		}
		m.log.Warn().Err(msg.Err).Msg("session rejected by server")
		cmd := m.logout("Your session has expired. Sign in again.")
		return m, cmd

	case notifications.ChangedMsg:
		var cmd tea.Cmd
		m.notifications, cmd = m.notifications.Update(msg)
		return m, tea.Batch(cmd, m.rt.watcher.Wait())

	case appsync.SyncResultMsg:
		return m.handleSyncResult(msg)

	case realtime.EventMsg:
		return m.handleRealtime(msg)

	case realtimeStoppedMsg:
		m.live = false
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		cmd := m.executeCommand(string(msg))
		return m, cmd

	case command.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case datatable.ActionDoneMsg:
		// Row actions report back to the view that started them.
		return m.updateActiveView(msg)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}
		if next, cmd, ok := m.handleKey(msg); ok {
			return next, cmd
		}
		return m.updateActiveView(msg)
	}

	// Page results, debounce ticks and spinner frames carry their own
	// routing; every page ignores the ones that are not its own.
	return m.broadcast(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch m.currentView {
	case ViewLogin, ViewCommand:
		return m, nil, false
	case ViewHelp:
		if key.Matches(msg, m.keys.Help, m.keys.Back, m.keys.Quit) {
			m.currentView = m.previousView
		}
		return m, nil, true
	}

	if m.activeCapturing() {
		return m, nil, false
	}

	if m.bell.Open() {
		switch {
		case key.Matches(msg, m.keys.Bell, m.keys.Back):
			m.bell.Close()
			return m, nil, true
		case key.Matches(msg, m.keys.Notifications):
			m.bell.Close()
			return m.navigate(ViewNotifications)
		}
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, m.quit(), true

	case key.Matches(msg, m.keys.Help):
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		cmd := m.commandView.Focus()
		return m, cmd, true

	case key.Matches(msg, m.keys.Bell):
		m.bell.Toggle()
		return m, nil, true

	case key.Matches(msg, m.keys.Refresh):
		cmd := m.refresh()
		return m, cmd, true

	case key.Matches(msg, m.keys.Notifications):
		return m.navigate(ViewNotifications)
	case key.Matches(msg, m.keys.Applications):
		return m.navigate(ViewApplications)
	case key.Matches(msg, m.keys.Complaints):
		return m.navigate(ViewComplaints)
	case key.Matches(msg, m.keys.Services):
		return m.navigate(ViewServices)
	case key.Matches(msg, m.keys.Users):
		return m.navigate(ViewUsers)
	}
	return m, nil, false
}

func (m Model) activeCapturing() bool {
	switch m.currentView {
	case ViewNotifications:
		return m.notifications.Capturing()
	case ViewApplications:
		return m.applications.Capturing()
	case ViewComplaints:
		return m.complaints.Capturing()
	case ViewServices:
		return m.services.Capturing()
	case ViewUsers:
		return m.users.Capturing()
	}
	return false
}

// navigate switches pages, loading a resource page the first time it is
// shown.
func (m Model) navigate(v ViewState) (Model, tea.Cmd, bool) {
	if v == ViewUsers && (m.account == nil || m.account.Role != model.RoleAdmin) {
		return m, ui.Notice("The users page needs an administrator account"), true
	}
	m.currentView = v

	var cmd tea.Cmd
	switch v {
	case ViewApplications:
		cmd = m.applications.Init()
	case ViewComplaints:
		cmd = m.complaints.Init()
	case ViewServices:
		cmd = m.services.Init()
	case ViewUsers:
		cmd = m.users.Init()
	}
	return m, cmd, true
}

// refresh reloads the active page. Notifications are refreshed through
// the poller so the status line reflects the run.
func (m *Model) refresh() tea.Cmd {
	switch m.currentView {
	case ViewNotifications:
		m.deps.Poller.RefreshAll()
		return ui.Notice("Refreshing notifications…")
	}

	if m.deps.Cache != nil {
		if err := m.deps.Cache.Invalidate(context.Background()); err != nil {
			m.log.Warn().Err(err).Msg("invalidating query cache")
		}
	}
	switch m.currentView {
	case ViewApplications:
		return m.applications.Reload()
	case ViewComplaints:
		return m.complaints.Reload()
	case ViewServices:
		return m.services.Reload()
	case ViewUsers:
		return m.users.Reload()
	}
	return nil
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewNotifications:
		m.notifications, cmd = m.notifications.Update(msg)
	case ViewApplications:
		m.applications, cmd = m.applications.Update(msg)
	case ViewComplaints:
		m.complaints, cmd = m.complaints.Update(msg)
	case ViewServices:
		m.services, cmd = m.services.Update(msg)
	case ViewUsers:
		m.users, cmd = m.users.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

func (m Model) broadcast(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmds := make([]tea.Cmd, 6)
	m.loginView, cmds[0] = m.loginView.Update(msg)
	m.notifications, cmds[1] = m.notifications.Update(msg)
	m.applications, cmds[2] = m.applications.Update(msg)
	m.complaints, cmds[3] = m.complaints.Update(msg)
	m.services, cmds[4] = m.services.Update(msg)
	m.users, cmds[5] = m.users.Update(msg)
	if m.currentView == ViewCommand {
		var cmd tea.Cmd
		m.commandView, cmd = m.commandView.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) resize() {
	w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
	m.loginView.SetSize(w, h)
	m.notifications.SetSize(w, h)
	m.applications.SetSize(w, h)
	m.complaints.SetSize(w, h)
	m.services.SetSize(w, h)
	m.users.SetSize(w, h)
	m.helpView.SetSize(w, h)
	m.commandView.SetSize(w, h)
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.currentView == ViewLogin {
		header := m.layout.RenderHeader("JonoSeba", "", "signed out")
		statusBar := m.layout.RenderStatusBar("enter next | esc quit", m.renderNotice())
		return m.layout.RenderWithFrame(header, m.loginView.View(), statusBar)
	}

	header := m.layout.RenderHeader("JonoSeba · "+m.title(), m.bell.Indicator(), m.syncStatus())
	content := m.renderContent()
	if m.bell.Open() {
		content = m.withDropdown(content)
	}
	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.renderNotice())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// withDropdown shows the bell dropdown to the right of the content.
func (m Model) withDropdown(content string) string {
	w := min(44, m.layout.ContentWidth()/2)
	dropdown := theme.PanelStyle.Width(w).Render(m.bell.Dropdown(w))
	rest := m.layout.ContentWidth() - lipgloss.Width(dropdown)
	return lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(rest).MaxWidth(rest).Render(content),
		dropdown,
	)
}

func (m Model) renderNotice() string {
	if m.notice == "" {
		return ""
	}
	if m.noticeErr {
		return "✗ " + m.notice
	}
	return "✓ " + m.notice
}

func (m Model) title() string {
	switch m.viewForHeader() {
	case ViewApplications:
		return m.applications.Title()
	case ViewComplaints:
		return m.complaints.Title()
	case ViewServices:
		return m.services.Title()
	case ViewUsers:
		return m.users.Title()
	default:
		return "Notifications"
	}
}

func (m Model) viewForHeader() ViewState {
	if m.currentView == ViewHelp || m.currentView == ViewCommand {
		return m.previousView
	}
	return m.currentView
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewNotifications:
		return m.notifications.View()
	case ViewApplications:
		return m.applications.View()
	case ViewComplaints:
		return m.complaints.View()
	case ViewServices:
		return m.services.View()
	case ViewUsers:
		return m.users.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the sync and push state.
func (m Model) syncStatus() string {
	s := m.deps.Poller.Status()

	var status string
	switch s.State {
	case appsync.SyncRunning:
		status = "syncing"
	case appsync.SyncError:
		status = "⚠ offline"
	default:
		if s.LastSync.IsZero() {
			status = "not synced"
		} else {
			status = "synced " + notifications.TimeAgo(s.LastSync, time.Now())
		}
	}
	if m.live {
		status = "● live | " + status
	}
	return status
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewNotifications:
		return m.notifications.KeyHints() + " | b bell"
	case ViewApplications:
		return m.applications.KeyHints()
	case ViewComplaints:
		return m.complaints.KeyHints()
	case ViewServices:
		return m.services.KeyHints()
	case ViewUsers:
		return m.users.KeyHints()
	}
	return ""
}

// executeCommand handles a command from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch cmd {
	case command.Refresh:
		return m.refresh()
	case command.MarkAllRead:
		s := m.deps.Store
		return func() tea.Msg {
			if err := s.MarkAllReadOnServer(context.Background()); err != nil {
				return ui.NoticeMsg{Text: fmt.Sprintf("Could not mark all as read: %v", err), Error: true}
			}
			return ui.NoticeMsg{Text: "All notifications marked as read"}
		}
	case command.Clear:
		s := m.deps.Store
		return func() tea.Msg {
			if err := s.DeleteAll(context.Background()); err != nil {
				return ui.NoticeMsg{Text: fmt.Sprintf("Some notifications could not be cleared: %v", err), Error: true}
			}
			return ui.NoticeMsg{Text: "All notifications cleared"}
		}
	case command.Logout:
		return m.logout("Signed out.")
	case command.Quit:
		return m.quit()
	case command.Notifications:
		next, c, _ := m.navigate(ViewNotifications)
		*m = next
		return c
	case command.Applications:
		next, c, _ := m.navigate(ViewApplications)
		*m = next
		return c
	case command.Complaints:
		next, c, _ := m.navigate(ViewComplaints)
		*m = next
		return c
	case command.Services:
		next, c, _ := m.navigate(ViewServices)
		*m = next
		return c
	case command.Users:
		next, c, _ := m.navigate(ViewUsers)
		*m = next
		return c
	default:
		return nil
	}
}
