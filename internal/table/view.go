package table

// State is what the body of the grid shows.
type State int

const (
	StateRows State = iota
	StateLoading
	StateEmpty
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateEmpty:
		return "empty"
	default:
		return "rows"
	}
}

// Footer is the pagination bar. It is only present with more than one page.
type Footer struct {
	Page        int
	TotalPages  int
	TotalItems  int
	CanPrevious bool
	CanNext     bool
}

// MenuEntry is one line of a row action menu.
type MenuEntry struct {
	Label       string
	Icon        string
	Destructive bool

	// SeparatorBefore is set for destructive actions after the first entry.
	SeparatorBefore bool
}

// View is everything a renderer needs to draw the grid.
type View struct {
	State      State
	ShowSearch bool
	Search     string

	Headers []string
	Widths  []int

	// HasActions adds a trailing action column.
	HasActions bool

	// Rows holds the rendered cells of the current page.
	Rows [][]string

	// Message is the loading or empty text spanning all columns.
	Message string

	Footer *Footer
}

// Span is the number of columns a message row covers.
func (v View) Span() int {
	if v.HasActions {
		return len(v.Headers) + 1
	}
	return len(v.Headers)
}

// View computes the current render state. Loading takes precedence over
// an empty page.
func (t *Table[T]) View() View {
	v := View{
		ShowSearch: t.SearchEnabled(),
		Search:     t.SearchValue,
		HasActions: len(t.RowActions) > 0,
	}
	for _, c := range t.Columns {
		v.Headers = append(v.Headers, c.Header)
		v.Widths = append(v.Widths, c.Width)
	}

	filtered := t.Filtered()
	rows := window(filtered, t.CurrentPage, t.pageSize())

	switch {
	case t.IsLoading:
		v.State = StateLoading
		v.Message = t.LoadingMessage
		if v.Message == "" {
			v.Message = DefaultLoadingMessage
		}
	case len(rows) == 0:
		v.State = StateEmpty
		v.Message = t.EmptyMessage
		if v.Message == "" {
			v.Message = DefaultEmptyMessage
		}
	default:
		v.State = StateRows
		v.Rows = make([][]string, 0, len(rows))
		for _, row := range rows {
			cells := make([]string, len(t.Columns))
			for i, c := range t.Columns {
				cells[i] = t.Cell(row, c)
			}
			v.Rows = append(v.Rows, cells)
		}
	}

	total := t.effectiveTotal(filtered)
	if pages := ceilDiv(total, t.pageSize()); pages > 1 {
		v.Footer = &Footer{
			Page:        t.CurrentPage,
			TotalPages:  pages,
			TotalItems:  t.TotalItems,
			CanPrevious: t.CurrentPage > 1,
			CanNext:     t.CurrentPage < pages,
		}
	}

	return v
}

// ActionMenu lists the row actions in order.
func (t *Table[T]) ActionMenu() []MenuEntry {
	entries := make([]MenuEntry, len(t.RowActions))
	for i, a := range t.RowActions {
		destructive := a.Variant == VariantDestructive
		entries[i] = MenuEntry{
			Label:           a.Label,
			Icon:            a.Icon,
			Destructive:     destructive,
			SeparatorBefore: i > 0 && destructive,
		}
	}
	return entries
}
