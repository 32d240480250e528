package app

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jonoseba/portal/internal/realtime"
	"github.com/jonoseba/portal/internal/store"
	appsync "github.com/jonoseba/portal/internal/sync"
	"github.com/jonoseba/portal/internal/ui"
	"github.com/jonoseba/portal/internal/ui/login"
)

// realtimeStoppedMsg is sent when the push listener returns.
type realtimeStoppedMsg struct {
	err error
}

func (m *Model) signIn(a Account) {
	m.account = &a
	m.helpView.SetAccount(a.Name, string(a.Role))
}

// startSession runs the initial notification sync and starts the poller
// and the push listener.
func (m Model) startSession() tea.Cmd {
	if m.rt.cancelSession != nil {
		m.rt.cancelSession()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.rt.cancelSession = cancel

	s := m.deps.Store
	cmds := []tea.Cmd{
		func() tea.Msg {
			s.Initialize(ctx)
			return nil
		},
	}

	if wait := m.deps.Poller.Start(); wait != nil && !m.rt.pollWaiting {
		m.rt.pollWaiting = true
		cmds = append(cmds, wait)
	}

	if l := m.deps.Listener; l != nil {
		cmds = append(cmds, func() tea.Msg {
			return realtimeStoppedMsg{err: l.Run(ctx)}
		})
		if !m.rt.eventsWaiting {
			m.rt.eventsWaiting = true
			cmds = append(cmds, l.WaitForEvent())
		}
	}
	return tea.Batch(cmds...)
}

// stopSession halts the background loops started by startSession and
// cancels any sync still in flight.
func (m Model) stopSession() {
	m.deps.Poller.Stop()
	if m.rt.cancelSession != nil {
		m.rt.cancelSession()
		m.rt.cancelSession = nil
	}
}

func (m Model) handleLoggedIn(msg login.LoggedInMsg) (tea.Model, tea.Cmd) {
	if err := m.deps.Credentials.Save(msg.Session.Token); err != nil {
		m.log.Error().Err(err).Msg("storing session")
		return m, ui.Failure("Could not store the session", err)
	}

	m.signIn(Account{Name: msg.Session.Name, Role: msg.Session.Role})
	m.currentView = ViewNotifications
	m.log.Info().Str("user", msg.Session.UserID).Msg("signed in")

	return m, tea.Batch(
		m.startSession(),
		ui.Notice("Signed in as %s", msg.Session.Name),
	)
}

// logout forgets the session and everything cached for it, then shows
// the login form with reason.
func (m *Model) logout(reason string) tea.Cmd {
	m.stopSession()

	var errs []error
	if err := m.deps.Credentials.Clear(); err != nil {
		errs = append(errs, err)
	}
	m.deps.Store.ClearAll()

	ctx := context.Background()
	if m.deps.Local != nil {
		if err := m.deps.Local.ClearNotifications(ctx, store.NotificationNamespace); err != nil {
			errs = append(errs, fmt.Errorf("clearing notification snapshot: %w", err))
		}
	}
	if m.deps.Cache != nil {
		if err := m.deps.Cache.Invalidate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("clearing query cache: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		m.log.Warn().Err(err).Msg("logout left local state behind")
	}

	m.account = nil
	m.live = false
	m.helpView.SetAccount("", "")
	m.bell.Close()
	m.buildPages()
	m.currentView = ViewLogin
	m.log.Info().Str("reason", reason).Msg("signed out")

	return m.loginView.Start(reason)
}

// quit stops the background work and exits the program.
func (m Model) quit() tea.Cmd {
	m.stopSession()
	m.rt.watcher.Close()
	return tea.Quit
}

func (m Model) handleSyncResult(msg appsync.SyncResultMsg) (tea.Model, tea.Cmd) {
	wait := m.deps.Poller.WaitForNextResult()

	switch {
	case msg.AuthError:
		if m.account == nil {
			return m, wait
		}
		cmd := m.logout("Your session has expired. Sign in again.")
		return m, tea.Batch(wait, cmd)
	case msg.Error != nil && msg.Manual:
		return m, tea.Batch(wait, ui.Failure("Refresh failed", msg.Error))
	case msg.Manual:
		return m, tea.Batch(wait, ui.Notice("Notifications up to date"))
	}
	return m, wait
}

func (m Model) handleRealtime(msg realtime.EventMsg) (tea.Model, tea.Cmd) {
	wait := m.deps.Listener.WaitForEvent()

	switch msg.Kind {
	case realtime.EventConnected:
		m.live = true
	case realtime.EventDisconnected:
		m.live = false
	case realtime.EventNotification:
		return m, tea.Batch(wait, ui.Notice("New notification: %s", msg.Notification.Title))
	case realtime.EventGaveUp:
		m.live = false
		return m, tea.Batch(wait, ui.Failure("Live updates unavailable", msg.Err))
	}
	return m, wait
}
