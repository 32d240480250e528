// Package datatable draws a table.Table in the terminal: a search box,
// the grid, the pagination footer and the row action menu.
package datatable

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	btable "github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/jonoseba/portal/internal/keys"
	"github.com/jonoseba/portal/internal/table"
	"github.com/jonoseba/portal/internal/theme"
)

// ActionTimeout bounds a single row action.
const ActionTimeout = 20 * time.Second

// ActionDoneMsg reports the outcome of a row action.
type ActionDoneMsg struct {
	Label string
	Err   error
}

// Column widths used when a column does not set its own.
const (
	minColumnWidth = 4
	maxColumnWidth = 40
	actionsWidth   = 3
)

// chrome is the number of lines taken by everything except grid rows:
// title, search box, column header and its border, footer.
const chrome = 6

type mode int

const (
	modeGrid mode = iota
	modeSearch
	modeMenu
	modeConfirm
)

// Model is the Bubble Tea widget over a *table.Table. The table is shared:
// its owner mutates Data, IsLoading and the paging fields and then calls
// Refresh.
type Model[T any] struct {
	Table *table.Table[T]

	title   string
	keys    *keys.KeyMap
	grid    btable.Model
	search  textinput.Model
	spinner spinner.Model

	mode      mode
	menuIdx   int
	pending   int
	confirmed *bool
	confirm   *huh.Form

	width  int
	height int
}

// New creates a widget for t.
func New[T any](title string, t *table.Table[T], k *keys.KeyMap, width, height int) Model[T] {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "Search..."
	ti.SetValue(t.SearchValue)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)

	styles := btable.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.ColorBorder).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(theme.ColorWhite).
		Background(theme.ColorBlue).
		Bold(true)

	grid := btable.New(btable.WithFocused(true))
	grid.SetStyles(styles)

	m := Model[T]{
		Table:     t,
		title:     title,
		keys:      k,
		grid:      grid,
		search:    ti,
		spinner:   sp,
		confirmed: new(bool),
	}
	m.SetSize(width, height)
	m.Refresh()
	return m
}

// Init starts the loading spinner.
func (m Model[T]) Init() tea.Cmd {
	return m.spinner.Tick
}

// SetLoading toggles the loading state and restarts the spinner.
func (m *Model[T]) SetLoading(loading bool) tea.Cmd {
	m.Table.IsLoading = loading
	m.Refresh()
	if loading {
		return m.spinner.Tick
	}
	return nil
}

// Capturing reports whether the widget owns the keyboard (search box,
// action menu or confirm dialog), so global keys must not be intercepted.
func (m Model[T]) Capturing() bool {
	return m.mode != modeGrid
}

// Selected returns the row under the cursor on the current page.
func (m Model[T]) Selected() (T, bool) {
	var zero T
	if m.Table.IsLoading {
		return zero, false
	}
	rows := m.Table.PageRows()
	i := m.grid.Cursor()
	if i < 0 || i >= len(rows) {
		return zero, false
	}
	return rows[i], true
}

// Refresh rebuilds the grid from the table. Call it after changing the
// table from outside the widget. The cursor stays on the same index,
// clamped to the rows now on the page.
func (m *Model[T]) Refresh() {
	m.refreshAt(m.grid.Cursor())
}

// refreshAt rebuilds the grid and puts the cursor on row i.
func (m *Model[T]) refreshAt(i int) {
	v := m.Table.View()

	cols := make([]btable.Column, 0, v.Span())
	for i, h := range v.Headers {
		cols = append(cols, btable.Column{Title: h, Width: m.columnWidth(v, i)})
	}
	if v.HasActions {
		cols = append(cols, btable.Column{Title: "", Width: actionsWidth})
	}

	rows := make([]btable.Row, 0, len(v.Rows))
	for _, cells := range v.Rows {
		row := btable.Row(cells)
		if v.HasActions {
			row = append(row, "⋯")
		}
		rows = append(rows, row)
	}

	// Rows must never be wider than the column set.
	m.grid.SetRows(nil)
	m.grid.SetColumns(cols)
	m.grid.SetRows(rows)
	if len(rows) > 0 {
		m.grid.SetCursor(min(max(i, 0), len(rows)-1))
	}
}

func (m Model[T]) columnWidth(v table.View, i int) int {
	if v.Widths[i] > 0 {
		return v.Widths[i]
	}
	w := lipgloss.Width(v.Headers[i])
	for _, cells := range v.Rows {
		w = max(w, lipgloss.Width(cells[i]))
	}
	return min(max(w, minColumnWidth), maxColumnWidth)
}

// Update handles keys and spinner ticks.
func (m Model[T]) Update(msg tea.Msg) (Model[T], tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.Table.IsLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeMenu:
			return m.updateMenu(msg)
		case modeConfirm:
			return m.updateConfirm(msg)
		default:
			return m.updateGrid(msg)
		}
	}

	if m.mode == modeConfirm {
		return m.updateConfirm(msg)
	}
	return m, nil
}

func (m Model[T]) updateGrid(msg tea.KeyMsg) (Model[T], tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Search):
		if !m.Table.SearchEnabled() {
			return m, nil
		}
		m.mode = modeSearch
		cmd := m.search.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Down):
		m.grid.MoveDown(1)

	case key.Matches(msg, m.keys.Up):
		m.grid.MoveUp(1)

	case key.Matches(msg, m.keys.NextPage):
		if m.Table.Next() {
			m.refreshAt(0)
		}

	case key.Matches(msg, m.keys.PrevPage):
		if m.Table.Previous() {
			m.refreshAt(0)
		}

	case key.Matches(msg, m.keys.Select):
		if row, ok := m.Selected(); ok {
			m.Table.ClickRow(row)
		}

	case key.Matches(msg, m.keys.Actions):
		if _, ok := m.Selected(); ok && len(m.Table.RowActions) > 0 {
			m.mode = modeMenu
			m.menuIdx = 0
		}
	}
	return m, nil
}

func (m Model[T]) updateSearch(msg tea.KeyMsg) (Model[T], tea.Cmd) {
	switch msg.String() {
	case "esc", "enter":
		m.mode = modeGrid
		m.search.Blur()
		return m, nil
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if after := m.search.Value(); after != before {
		m.Table.SetSearch(after)
		m.refreshAt(0)
	}
	return m, cmd
}

func (m Model[T]) updateMenu(msg tea.KeyMsg) (Model[T], tea.Cmd) {
	n := len(m.Table.RowActions)
	switch {
	case key.Matches(msg, m.keys.Back):
		m.mode = modeGrid

	case key.Matches(msg, m.keys.Down):
		m.menuIdx = (m.menuIdx + 1) % n

	case key.Matches(msg, m.keys.Up):
		m.menuIdx = (m.menuIdx - 1 + n) % n

	case key.Matches(msg, m.keys.Select):
		row, ok := m.Selected()
		if !ok {
			m.mode = modeGrid
			return m, nil
		}
		if m.Table.RowActions[m.menuIdx].Variant == table.VariantDestructive {
			m.pending = m.menuIdx
			*m.confirmed = false
			m.confirm = m.buildConfirm(m.Table.RowActions[m.menuIdx].Label)
			m.mode = modeConfirm
			return m, m.confirm.Init()
		}
		m.mode = modeGrid
		return m, m.dispatch(m.menuIdx, row)
	}
	return m, nil
}

func (m Model[T]) buildConfirm(label string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(label + "?").
				Description("This cannot be undone.").
				Affirmative("Yes").
				Negative("Cancel").
				Value(m.confirmed),
		),
	).WithWidth(min(max(m.width-4, 30), 80))
}

func (m Model[T]) updateConfirm(msg tea.Msg) (Model[T], tea.Cmd) {
	if m.confirm == nil {
		m.mode = modeGrid
		return m, nil
	}
	mdl, cmd := m.confirm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirm = f
	}
	switch m.confirm.State {
	case huh.StateCompleted:
		m.mode = modeGrid
		if !*m.confirmed {
			return m, nil
		}
		row, ok := m.Selected()
		if !ok {
			return m, nil
		}
		return m, m.dispatch(m.pending, row)
	case huh.StateAborted:
		m.mode = modeGrid
		return m, nil
	}
	return m, cmd
}

// dispatch runs a row action off the UI goroutine.
func (m Model[T]) dispatch(index int, row T) tea.Cmd {
	t := m.Table
	label := t.RowActions[index].Label
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), ActionTimeout)
		defer cancel()
		return ActionDoneMsg{Label: label, Err: t.Dispatch(ctx, index, row)}
	}
}

// View renders the widget.
func (m Model[T]) View() string {
	if m.mode == modeConfirm && m.confirm != nil {
		return lipgloss.NewStyle().Padding(1, 2).Render(m.confirm.View())
	}

	v := m.Table.View()
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")

	if v.ShowSearch {
		if m.mode == modeSearch || m.search.Value() != "" {
			b.WriteString(m.search.View())
		} else {
			b.WriteString(theme.HelpStyle.Render("/ to search"))
		}
	}
	b.WriteString("\n")

	switch v.State {
	case table.StateLoading:
		b.WriteString(m.message(m.spinner.View() + " " + v.Message))
	case table.StateEmpty:
		b.WriteString(m.message(theme.DimmedStyle.Render(v.Message)))
	default:
		b.WriteString(m.grid.View())
	}
	b.WriteString("\n")

	if v.Footer != nil {
		b.WriteString(renderFooter(*v.Footer))
	}

	body := b.String()
	if m.mode == modeMenu {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, "  ", m.renderMenu())
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(body)
}

// message renders a state message spanning the grid.
func (m Model[T]) message(s string) string {
	return lipgloss.NewStyle().
		Width(max(m.width-2, 0)).
		Height(max(m.height-chrome, 1)).
		Align(lipgloss.Center, lipgloss.Center).
		Render(s)
}

func renderFooter(f table.Footer) string {
	prev := theme.DimmedStyle.Render("← prev")
	if f.CanPrevious {
		prev = theme.HelpStyle.Render("← prev")
	}
	next := theme.DimmedStyle.Render("next →")
	if f.CanNext {
		next = theme.HelpStyle.Render("next →")
	}
	status := fmt.Sprintf("Page %d of %d", f.Page, f.TotalPages)
	if f.TotalItems > 0 {
		status += fmt.Sprintf(" (%d items)", f.TotalItems)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, status, "   ", prev, "  ", next)
}

func (m Model[T]) renderMenu() string {
	var lines []string
	for i, e := range m.Table.ActionMenu() {
		if e.SeparatorBefore {
			lines = append(lines, theme.DimmedStyle.Render(strings.Repeat("─", 16)))
		}
		label := e.Label
		if e.Icon != "" {
			label = e.Icon + " " + label
		}
		style := theme.ListItemStyle
		if e.Destructive {
			style = style.Foreground(theme.ColorRed)
		}
		if i == m.menuIdx {
			style = theme.SelectedItemStyle
			if e.Destructive {
				style = style.Foreground(theme.ColorRed)
			}
		}
		lines = append(lines, style.Render(label))
	}
	return theme.BorderStyle.Padding(0, 1).Render(strings.Join(lines, "\n"))
}

// SetSize updates the widget dimensions.
func (m *Model[T]) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.search.Width = max(width-6, 10)
	m.grid.SetWidth(max(width-2, 0))
	m.grid.SetHeight(max(height-chrome, 3))
}

// SetTitle changes the heading above the grid.
func (m *Model[T]) SetTitle(title string) {
	m.title = title
}
