package ui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// NoticeDuration is how long a toast stays in the status bar.
const NoticeDuration = 4 * time.Second

// NoticeMsg asks the root model to show a toast in the status bar.
type NoticeMsg struct {
	Text  string
	Error bool
}

// NoticeExpiredMsg clears the toast with the given sequence number.
type NoticeExpiredMsg struct {
	Seq int
}

// Notice returns a command emitting an informational toast.
func Notice(format string, args ...any) tea.Cmd {
	text := fmt.Sprintf(format, args...)
	return func() tea.Msg { return NoticeMsg{Text: text} }
}

// Failure returns a command emitting an error toast for err.
func Failure(what string, err error) tea.Cmd {
	text := fmt.Sprintf("%s: %v", what, err)
	return func() tea.Msg { return NoticeMsg{Text: text, Error: true} }
}

// ExpireNotice schedules the removal of toast seq.
func ExpireNotice(seq int) tea.Cmd {
	return tea.Tick(NoticeDuration, func(time.Time) tea.Msg {
		return NoticeExpiredMsg{Seq: seq}
	})
}

// AuthExpiredMsg reports that the server rejected the session token.
type AuthExpiredMsg struct {
	Err error
}
