// Package table implements a generic data grid: client-side search
// filtering, pagination windows, cell rendering and row actions. It holds
// no domain knowledge about the rows it shows and does no terminal
// drawing; internal/ui/datatable renders its View.
package table

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// DefaultPageSize is used when PageSize is not positive.
const DefaultPageSize = 10

// Placeholder is shown for cells whose value is missing.
const Placeholder = "-"

// Default state messages.
const (
	DefaultEmptyMessage   = "No data found"
	DefaultLoadingMessage = "Loading..."
)

// ErrNoAction is returned by Dispatch for an out-of-range action index.
var ErrNoAction = errors.New("no such row action")

// Column describes one column of the grid.
type Column[T any] struct {
	Key    string
	Header string

	// Value extracts the cell value from a row. A nil Value, or a nil
	// result, means the field is missing.
	Value func(T) any

	// Render, when set, formats the cell instead of the default text
	// conversion and is also called for missing values.
	Render func(value any, row T) string

	Width    int
	Sortable bool

	// NoSearch excludes the column from the default searchable set.
	NoSearch bool
}

// Variant styles a row action.
type Variant int

const (
	VariantDefault Variant = iota
	VariantDestructive
)

// RowAction is an entry in the per-row action menu.
type RowAction[T any] struct {
	Label   string
	OnClick func(ctx context.Context, row T) error
	Variant Variant
	Icon    string
}

// Matcher reports whether value contains query.
type Matcher func(value, query string) bool

// LowerMatcher is the default case-insensitive substring match using
// simple lowercasing.
func LowerMatcher(value, query string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(query))
}

// Table is the configuration of a grid. The zero value is usable but
// starts on page 0; use New for the defaults.
type Table[T any] struct {
	Columns []Column[T]
	Data    []T

	// SearchValue is the current query. Filtering only happens when
	// OnSearchChange is set; otherwise the caller is assumed to have
	// filtered Data already.
	SearchValue    string
	OnSearchChange func(string)

	// SearchableFields overrides the searchable column keys.
	SearchableFields []string

	RowActions []RowAction[T]
	OnRowClick func(T)

	IsLoading bool

	PageSize int

	// TotalItems is the server-reported total for server-side paging.
	// Zero means the filtered local length is used.
	TotalItems int

	// CurrentPage is 1-indexed and is not corrected when out of range.
	CurrentPage  int
	OnPageChange func(int)

	EmptyMessage   string
	LoadingMessage string

	// Matcher replaces LowerMatcher when set.
	Matcher Matcher
}

// New returns a table over columns with the default page size, page 1 and
// the default messages.
func New[T any](columns []Column[T]) *Table[T] {
	return &Table[T]{
		Columns:        columns,
		PageSize:       DefaultPageSize,
		CurrentPage:    1,
		EmptyMessage:   DefaultEmptyMessage,
		LoadingMessage: DefaultLoadingMessage,
	}
}

func (t *Table[T]) pageSize() int {
	if t.PageSize <= 0 {
		return DefaultPageSize
	}
	return t.PageSize
}

func (t *Table[T]) matcher() Matcher {
	if t.Matcher != nil {
		return t.Matcher
	}
	return LowerMatcher
}

// SearchEnabled reports whether the table shows a search box.
func (t *Table[T]) SearchEnabled() bool {
	return t.OnSearchChange != nil
}

// SetSearch forwards a new query to OnSearchChange.
func (t *Table[T]) SetSearch(q string) {
	if t.OnSearchChange != nil {
		t.OnSearchChange(q)
	}
}

// searchColumns resolves the columns consulted by the search filter.
func (t *Table[T]) searchColumns() []Column[T] {
	if t.SearchableFields != nil {
		cols := make([]Column[T], 0, len(t.SearchableFields))
		for _, key := range t.SearchableFields {
			if i := slices.IndexFunc(t.Columns, func(c Column[T]) bool { return c.Key == key }); i >= 0 {
				cols = append(cols, t.Columns[i])
			}
		}
		return cols
	}

	cols := make([]Column[T], 0, len(t.Columns))
	for _, c := range t.Columns {
		if !c.NoSearch {
			cols = append(cols, c)
		}
	}
	return cols
}

// Filtered returns the rows that match SearchValue, or all of Data when
// there is no query or no search handler.
func (t *Table[T]) Filtered() []T {
	if t.SearchValue == "" || t.OnSearchChange == nil {
		return t.Data
	}

	cols := t.searchColumns()
	match := t.matcher()
	out := make([]T, 0, len(t.Data))
	for _, row := range t.Data {
		for _, c := range cols {
			s, ok := text(value(c, row))
			if ok && match(s, t.SearchValue) {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

func (t *Table[T]) effectiveTotal(filtered []T) int {
	if t.TotalItems > 0 {
		return t.TotalItems
	}
	return len(filtered)
}

// TotalPages is ceil(total / page size).
func (t *Table[T]) TotalPages() int {
	return ceilDiv(t.effectiveTotal(t.Filtered()), t.pageSize())
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}

// PageRows returns the window of filtered rows for CurrentPage. Pages
// outside 1..TotalPages yield an empty slice.
func (t *Table[T]) PageRows() []T {
	return window(t.Filtered(), t.CurrentPage, t.pageSize())
}

func window[T any](rows []T, page, size int) []T {
	if page < 1 {
		return []T{}
	}
	start := (page - 1) * size
	if start >= len(rows) {
		return []T{}
	}
	end := min(start+size, len(rows))
	return rows[start:end]
}

// CanPrevious reports whether a previous page exists.
func (t *Table[T]) CanPrevious() bool {
	return t.CurrentPage > 1
}

// CanNext reports whether a next page exists.
func (t *Table[T]) CanNext() bool {
	return t.CurrentPage < t.TotalPages()
}

// Next requests the following page through OnPageChange.
func (t *Table[T]) Next() bool {
	if !t.CanNext() || t.OnPageChange == nil {
		return false
	}
	t.OnPageChange(t.CurrentPage + 1)
	return true
}

// Previous requests the preceding page through OnPageChange.
func (t *Table[T]) Previous() bool {
	if !t.CanPrevious() || t.OnPageChange == nil {
		return false
	}
	t.OnPageChange(t.CurrentPage - 1)
	return true
}

// Cell renders column c of row.
func (t *Table[T]) Cell(row T, c Column[T]) string {
	v := value(c, row)
	if c.Render != nil {
		return c.Render(v, row)
	}
	s, ok := text(v)
	if !ok {
		return Placeholder
	}
	return s
}

// ClickRow forwards row to OnRowClick.
func (t *Table[T]) ClickRow(row T) {
	if t.OnRowClick != nil {
		t.OnRowClick(row)
	}
}

// Dispatch runs the row action at index on row and returns its error.
func (t *Table[T]) Dispatch(ctx context.Context, index int, row T) error {
	if index < 0 || index >= len(t.RowActions) {
		return fmt.Errorf("%w: %d", ErrNoAction, index)
	}
	a := t.RowActions[index]
	if a.OnClick == nil {
		return nil
	}
	return a.OnClick(ctx, row)
}

func value[T any](c Column[T], row T) any {
	if c.Value == nil {
		return nil
	}
	return c.Value(row)
}

// text converts a cell value to its display form. It reports false for
// missing values: nil, nil pointers and nil interfaces.
func text(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "", false
		}
		if _, ok := rv.Interface().(fmt.Stringer); ok {
			break
		}
		rv = rv.Elem()
	}
	return fmt.Sprint(rv.Interface()), true
}
