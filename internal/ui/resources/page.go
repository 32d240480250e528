// Package resources renders the paginated portal collections (services,
// applications, complaints, users) with server-side paging, search and
// sorting, and their row actions.
package resources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jonoseba/portal/internal/api"
	"github.com/jonoseba/portal/internal/keys"
	"github.com/jonoseba/portal/internal/model"
	"github.com/jonoseba/portal/internal/store"
	"github.com/jonoseba/portal/internal/table"
	"github.com/jonoseba/portal/internal/ui"
	"github.com/jonoseba/portal/internal/ui/datatable"
)

// SearchDebounce is the quiet period before a typed query hits the server.
const SearchDebounce = 300 * time.Millisecond

const fetchTimeout = 20 * time.Second

// Lister fetches one page of a collection.
type Lister[T any] func(ctx context.Context, q model.PageQuery) (*model.Page[T], error)

// APILister lists resource through the portal API.
func APILister[T any](c *api.Client, resource string) Lister[T] {
	return func(ctx context.Context, q model.PageQuery) (*model.Page[T], error) {
		return api.List[T](ctx, c, resource, q)
	}
}

// Definition describes one collection page.
type Definition[T any] struct {
	Title    string
	Resource string
	Columns  []table.Column[T]

	Actions []table.RowAction[T]

	// Filters are sent with every request.
	Filters map[string]string
}

type loadedMsg[T any] struct {
	resource string
	seq      int
	page     int
	result   model.Page[T]
	err      error
}

type searchTickMsg struct {
	resource string
	seq      int
}

// Page is a Bubble Tea model over one collection.
type Page[T any] struct {
	def   Definition[T]
	list  Lister[T]
	cache *store.QueryCache
	keys  *keys.KeyMap
	log   zerolog.Logger

	tbl  *table.Table[T]
	grid datatable.Model[T]

	// pages holds the rows fetched for each page number. The table windows
	// Data by page, so Data is the concatenation of pages 1..n.
	pages map[int][]T

	query   model.PageQuery
	sortIdx int
	seq     int
	loaded  bool

	// pending is written by the table's search callback; typed and
	// searchSeq drive the debounce.
	pending   *string
	typed     string
	searchSeq int
}

// NewPage creates a page for def. cache may be nil.
func NewPage[T any](def Definition[T], list Lister[T], cache *store.QueryCache, k *keys.KeyMap, pageSize int, logger zerolog.Logger) Page[T] {
	tbl := table.New(def.Columns)
	tbl.PageSize = pageSize
	tbl.RowActions = def.Actions
	tbl.EmptyMessage = "No " + strings.ToLower(def.Title) + " found"

	// Search runs on the server: the query is recorded here and the table's
	// own SearchValue stays empty so rows are not filtered twice.
	pending := new(string)
	tbl.OnSearchChange = func(q string) { *pending = q }
	tbl.OnPageChange = func(p int) { tbl.CurrentPage = p }

	p := Page[T]{
		def:     def,
		list:    list,
		cache:   cache,
		keys:    k,
		log:     logger.With().Str("component", "resources").Str("resource", def.Resource).Logger(),
		tbl:     tbl,
		grid:    datatable.New(def.Title, tbl, k, 80, 24),
		pages:   map[int][]T{},
		query:   model.PageQuery{Page: 1, Size: tbl.PageSize, Filters: def.Filters},
		pending: pending,
		sortIdx: -1,
	}
	return p
}

// Title is the page heading.
func (p Page[T]) Title() string { return p.def.Title }

// Capturing reports whether the page owns the keyboard.
func (p Page[T]) Capturing() bool { return p.grid.Capturing() }

// Init loads the first page.
func (p *Page[T]) Init() tea.Cmd {
	if p.loaded {
		return nil
	}
	return p.reload()
}

// Reload drops cached pages and fetches the current one again.
func (p *Page[T]) Reload() tea.Cmd {
	return p.reload()
}

func (p *Page[T]) reload() tea.Cmd {
	clear(p.pages)
	p.tbl.CurrentPage = 1
	p.query.Page = 1
	return p.fetch(1)
}

func (p *Page[T]) fetch(page int) tea.Cmd {
	p.seq++
	seq := p.seq
	resource := p.def.Resource
	q := p.query
	q.Page = page
	list := p.list
	cache := p.cache

	spin := p.grid.SetLoading(true)
	load := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		fetch := func(ctx context.Context) (model.Page[T], error) {
			res, err := list(ctx, q)
			if err != nil {
				return model.Page[T]{}, err
			}
			return *res, nil
		}

		var (
			res model.Page[T]
			err error
		)
		if cache != nil {
			res, err = store.Fetch(ctx, cache, api.QueryKey(resource, q), fetch)
		} else {
			res, err = fetch(ctx)
		}
		return loadedMsg[T]{resource: resource, seq: seq, page: page, result: res, err: err}
	}
	return tea.Batch(spin, load)
}

// Update handles messages for the page.
func (p Page[T]) Update(msg tea.Msg) (Page[T], tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg[T]:
		if msg.resource != p.def.Resource || msg.seq != p.seq {
			return p, nil
		}
		return p.applyLoaded(msg)

	case searchTickMsg:
		if msg.resource != p.def.Resource || msg.seq != p.searchSeq || p.typed == p.query.Search {
			return p, nil
		}
		p.query.Search = p.typed
		cmd := p.reload()
		return p, cmd

	case datatable.ActionDoneMsg:
		if msg.Err != nil {
			if api.IsAuthError(msg.Err) {
				return p, func() tea.Msg { return ui.AuthExpiredMsg{Err: msg.Err} }
			}
			return p, ui.Failure(msg.Label+" failed", msg.Err)
		}
		// Row actions change server state; cached pages are now stale.
		if p.cache != nil {
			if err := p.cache.Invalidate(context.Background()); err != nil {
				p.log.Warn().Err(err).Msg("invalidating query cache")
			}
		}
		cmd := p.refetchCurrent()
		return p, tea.Batch(ui.Notice("%s: done", msg.Label), cmd)

	case tea.KeyMsg:
		if !p.grid.Capturing() && key.Matches(msg, p.keys.CycleSort) {
			p.cycleSort()
			cmd := p.reload()
			return p, cmd
		}
	}

	before := p.tbl.CurrentPage
	var cmd tea.Cmd
	p.grid, cmd = p.grid.Update(msg)
	cmds := []tea.Cmd{cmd}

	if p.tbl.CurrentPage != before {
		cmds = append(cmds, p.gotoPage(p.tbl.CurrentPage))
	}
	if *p.pending != p.typed {
		p.typed = *p.pending
		p.searchSeq++
		seq, resource := p.searchSeq, p.def.Resource
		cmds = append(cmds, tea.Tick(SearchDebounce, func(time.Time) tea.Msg {
			return searchTickMsg{resource: resource, seq: seq}
		}))
	}
	return p, tea.Batch(cmds...)
}

func (p Page[T]) applyLoaded(msg loadedMsg[T]) (Page[T], tea.Cmd) {
	p.grid.SetLoading(false)
	p.loaded = true

	var cmd tea.Cmd
	if msg.err != nil {
		p.log.Warn().Err(msg.err).Int("page", msg.page).Msg("listing failed")
		if api.IsAuthError(msg.err) {
			return p, func() tea.Msg { return ui.AuthExpiredMsg{Err: msg.err} }
		}
		if msg.result.Content == nil {
			// Stay on the last page that loaded.
			if _, ok := p.pages[p.query.Page]; ok {
				p.tbl.CurrentPage = p.query.Page
			}
			p.grid.Refresh()
			return p, ui.Failure("Could not load "+strings.ToLower(p.def.Title), msg.err)
		}
		cmd = ui.Notice("Offline: showing cached %s", strings.ToLower(p.def.Title))
	}

	p.pages[msg.page] = msg.result.Content
	p.query.Page = msg.page
	p.tbl.TotalItems = msg.result.PageInfo.TotalElements
	p.tbl.Data = p.contiguous()
	p.grid.Refresh()
	return p, cmd
}

// contiguous concatenates the fetched pages starting at page 1.
func (p Page[T]) contiguous() []T {
	var rows []T
	for n := 1; ; n++ {
		page, ok := p.pages[n]
		if !ok {
			return rows
		}
		rows = append(rows, page...)
		if len(page) < p.tbl.PageSize {
			return rows
		}
	}
}

func (p *Page[T]) gotoPage(n int) tea.Cmd {
	if _, ok := p.pages[n]; ok {
		p.query.Page = n
		p.grid.Refresh()
		return nil
	}
	return p.fetch(n)
}

func (p *Page[T]) refetchCurrent() tea.Cmd {
	n := p.tbl.CurrentPage
	for k := range p.pages {
		if k >= n {
			delete(p.pages, k)
		}
	}
	return p.fetch(n)
}

// cycleSort steps through the sortable columns: ascending, descending,
// then the next column, then unsorted.
func (p *Page[T]) cycleSort() {
	var sortable []string
	for _, c := range p.def.Columns {
		if c.Sortable {
			sortable = append(sortable, c.Key)
		}
	}
	if len(sortable) == 0 {
		return
	}

	switch {
	case p.sortIdx >= 0 && !p.query.Desc:
		p.query.Desc = true
	default:
		p.sortIdx++
		p.query.Desc = false
		if p.sortIdx >= len(sortable) {
			p.sortIdx = -1
		}
	}

	if p.sortIdx < 0 {
		p.query.Sort = ""
		p.grid.SetTitle(p.def.Title)
		return
	}
	p.query.Sort = sortable[p.sortIdx]
	dir := "↑"
	if p.query.Desc {
		dir = "↓"
	}
	p.grid.SetTitle(fmt.Sprintf("%s · sorted by %s %s", p.def.Title, p.query.Sort, dir))
}

// View renders the page.
func (p Page[T]) View() string {
	return p.grid.View()
}

// SetSize updates the page dimensions.
func (p *Page[T]) SetSize(width, height int) {
	p.grid.SetSize(width, height)
}

// KeyHints returns the status bar hints for the page.
func (p Page[T]) KeyHints() string {
	if p.grid.Capturing() {
		return "enter select | esc back"
	}
	return "j/k move | h/l page | / search | tab sort | . actions | r refresh"
}
