package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/jonoseba/portal/internal/theme"
)

// Layout splits the terminal into a one-line header, the page content and
// a one-line status bar.
type Layout struct {
	Width  int
	Height int
}

// chromeRows is the number of rows taken by the header and status bar.
const chromeRows = 2

// NewLayout creates a Layout for the given terminal dimensions.
func NewLayout(width, height int) Layout {
	return Layout{Width: width, Height: height}
}

// Resize returns a copy of the layout for new terminal dimensions.
func (l Layout) Resize(width, height int) Layout {
	l.Width, l.Height = width, height
	return l
}

// ContentWidth returns the width available to pages.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the rows left between the header and status bar.
func (l Layout) ContentHeight() int {
	return max(l.Height-chromeRows, 0)
}

// RenderHeader lays out the title on the left with the bell badge and
// connection status pinned to the right.
func (l Layout) RenderHeader(title, bell, status string) string {
	right := bell + theme.HeaderStyle.Render(status)
	return l.bar(theme.HeaderStyle, theme.HeaderStyle.Render(title), right)
}

// RenderStatusBar shows the toast notice when there is one and the key
// hints otherwise.
func (l Layout) RenderStatusBar(hints, notice string) string {
	if notice != "" {
		hints = notice
	}
	return l.bar(theme.StatusBarStyle, theme.StatusBarStyle.Render(hints), "")
}

// bar joins left and right across the full width on style's background.
// The left side is cut when both do not fit.
func (l Layout) bar(style lipgloss.Style, left, right string) string {
	room := l.Width - lipgloss.Width(right)
	if lipgloss.Width(left) > room {
		left = ansi.Truncate(left, max(room, 0), "…")
	}
	gap := max(room-lipgloss.Width(left), 0)
	pad := lipgloss.NewStyle().Width(gap).Background(style.GetBackground()).Render("")
	return left + pad + right
}

// RenderWithFrame stacks the header, content and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}
