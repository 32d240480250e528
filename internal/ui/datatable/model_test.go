package datatable

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonoseba/portal/internal/keys"
	"github.com/jonoseba/portal/internal/table"
)

type person struct {
	Name string
	Town string
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newPeople(n int) *table.Table[person] {
	t := table.New([]table.Column[person]{
		{Key: "name", Header: "Name", Value: func(p person) any { return p.Name }},
		{Key: "town", Header: "Town", Value: func(p person) any { return p.Town }},
	})
	for i := range n {
		t.Data = append(t.Data, person{Name: fmt.Sprintf("person-%02d", i+1), Town: "Dhaka"})
	}
	t.OnPageChange = func(p int) { t.CurrentPage = p }
	t.OnSearchChange = func(q string) {
		t.SearchValue = q
		t.CurrentPage = 1
	}
	return t
}

func TestPagingKeys(t *testing.T) {
	tbl := newPeople(23)
	m := New("People", tbl, keys.DefaultKeyMap(), 80, 30)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, 2, tbl.CurrentPage)

	row, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "person-11", row.Name)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, 3, tbl.CurrentPage, "cannot page past the last page")
	assert.Len(t, tbl.PageRows(), 3)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	assert.Equal(t, 2, tbl.CurrentPage)
	assert.Contains(t, m.View(), "Page 2 of 3")
}

func TestCursorMovement(t *testing.T) {
	m := New("People", newPeople(5), keys.DefaultKeyMap(), 80, 30)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(runes("j"))
	row, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "person-03", row.Name)

	m, _ = m.Update(runes("k"))
	row, _ = m.Selected()
	assert.Equal(t, "person-02", row.Name)
}

func TestFreshGridSelectsFirstRow(t *testing.T) {
	m := New("People", newPeople(3), keys.DefaultKeyMap(), 80, 30)

	row, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "person-01", row.Name)
}

func TestSelectionSurvivesRefresh(t *testing.T) {
	tbl := newPeople(5)
	m := New("People", tbl, keys.DefaultKeyMap(), 80, 30)

	m, _ = m.Update(runes("j"))
	m, _ = m.Update(runes("j"))
	m, _ = m.Update(runes("j"))
	m.Refresh()
	row, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "person-04", row.Name)

	tbl.Data = tbl.Data[:2]
	m.Refresh()
	row, ok = m.Selected()
	require.True(t, ok, "cursor is clamped when rows shrink")
	assert.Equal(t, "person-02", row.Name)

	tbl.Data = nil
	m.Refresh()
	_, ok = m.Selected()
	assert.False(t, ok)

	tbl.Data = newPeople(2).Data
	m.Refresh()
	row, ok = m.Selected()
	require.True(t, ok, "rows coming back are selectable again")
	assert.Equal(t, "person-01", row.Name)
}

func TestPagingResetsCursorToTop(t *testing.T) {
	m := New("People", newPeople(23), keys.DefaultKeyMap(), 80, 30)

	m, _ = m.Update(runes("j"))
	m, _ = m.Update(runes("j"))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRight})

	row, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "person-11", row.Name)
}

func TestSearchFiltersRows(t *testing.T) {
	tbl := newPeople(0)
	tbl.Data = []person{{"Karim", "Dhaka"}, {"Rahim", "Sylhet"}, {"Karima", "Khulna"}}
	m := New("People", tbl, keys.DefaultKeyMap(), 80, 30)

	m, _ = m.Update(runes("/"))
	require.True(t, m.Capturing())

	m, _ = m.Update(runes("kar"))
	assert.Equal(t, "kar", tbl.SearchValue)
	assert.Len(t, tbl.Filtered(), 2)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.Capturing())
	assert.Equal(t, "kar", tbl.SearchValue, "leaving the box keeps the query")
}

func TestSearchDisabledWithoutHandler(t *testing.T) {
	tbl := newPeople(3)
	tbl.OnSearchChange = nil
	m := New("People", tbl, keys.DefaultKeyMap(), 80, 30)

	m, _ = m.Update(runes("/"))
	assert.False(t, m.Capturing())
	assert.NotContains(t, m.View(), "to search")
}

func TestEnterClicksRow(t *testing.T) {
	tbl := newPeople(3)
	var clicked string
	tbl.OnRowClick = func(p person) { clicked = p.Name }
	m := New("People", tbl, keys.DefaultKeyMap(), 80, 30)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "person-02", clicked)
}

func TestActionMenuDispatch(t *testing.T) {
	tbl := newPeople(2)
	var got []string
	tbl.RowActions = []table.RowAction[person]{
		{Label: "Greet", OnClick: func(_ context.Context, p person) error {
			got = append(got, "greet "+p.Name)
			return nil
		}},
		{Label: "Fail", OnClick: func(context.Context, person) error {
			return errors.New("boom")
		}},
	}
	m := New("People", tbl, keys.DefaultKeyMap(), 80, 30)

	m, _ = m.Update(runes("."))
	require.True(t, m.Capturing())
	assert.Contains(t, m.View(), "Greet")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.False(t, m.Capturing())

	done := cmd().(ActionDoneMsg)
	assert.Equal(t, "Greet", done.Label)
	assert.NoError(t, done.Err)
	assert.Equal(t, []string{"greet person-01"}, got)

	m, _ = m.Update(runes("."))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	done = cmd().(ActionDoneMsg)
	assert.Equal(t, "Fail", done.Label)
	assert.EqualError(t, done.Err, "boom")
}

func TestDestructiveActionAsksFirst(t *testing.T) {
	tbl := newPeople(1)
	called := false
	tbl.RowActions = []table.RowAction[person]{
		{Label: "Delete", Variant: table.VariantDestructive, OnClick: func(context.Context, person) error {
			called = true
			return nil
		}},
	}
	m := New("People", tbl, keys.DefaultKeyMap(), 80, 30)

	m, _ = m.Update(runes("."))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, modeConfirm, m.mode)
	assert.False(t, called)
	assert.Contains(t, m.View(), "Delete?")
}

func TestLoadingAndEmptyStates(t *testing.T) {
	tbl := newPeople(0)
	m := New("People", tbl, keys.DefaultKeyMap(), 80, 30)
	assert.Contains(t, m.View(), table.DefaultEmptyMessage)

	cmd := m.SetLoading(true)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), table.DefaultLoadingMessage)
	_, ok := m.Selected()
	assert.False(t, ok)

	assert.Nil(t, m.SetLoading(false))
	assert.False(t, strings.Contains(m.View(), table.DefaultLoadingMessage))
}

func TestActionsColumnAndFooterHiddenOnOnePage(t *testing.T) {
	tbl := newPeople(4)
	tbl.RowActions = []table.RowAction[person]{{Label: "Open"}}
	m := New("People", tbl, keys.DefaultKeyMap(), 80, 30)

	view := m.View()
	assert.Contains(t, view, "⋯")
	assert.NotContains(t, view, "Page 1 of")
}
