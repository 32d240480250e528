package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Paging
	NextPage key.Binding
	PrevPage key.Binding

	// Selection
	Select  key.Binding
	Actions key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// Search
	Search key.Binding

	// Command palette
	Command key.Binding

	// Help toggle
	Help key.Binding

	// Manual refresh
	Refresh key.Binding

	// Pages
	Notifications key.Binding
	Applications  key.Binding
	Complaints    key.Binding
	Services      key.Binding
	Users         key.Binding

	// Notification actions
	Bell        key.Binding
	MarkRead    key.Binding
	MarkAllRead key.Binding
	Delete      key.Binding
	ClearAll    key.Binding
	UnreadOnly  key.Binding

	// Sort
	CycleSort key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("l", "right", "pgdown"),
			key.WithHelp("l/→", "next page"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("h", "left", "pgup"),
			key.WithHelp("h/←", "prev page"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Actions: key.NewBinding(
			key.WithKeys("."),
			key.WithHelp(".", "row actions"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Command: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "command palette"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Notifications: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "notifications"),
		),
		Applications: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "applications"),
		),
		Complaints: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "complaints"),
		),
		Services: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "services"),
		),
		Users: key.NewBinding(
			key.WithKeys("5"),
			key.WithHelp("5", "users"),
		),
		MarkRead: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mark read"),
		),
		MarkAllRead: key.NewBinding(
			key.WithKeys("M"),
			key.WithHelp("M", "mark all read"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		ClearAll: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "clear all"),
		),
		Bell: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "bell"),
		),
		UnreadOnly: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "unread only"),
		),
		CycleSort: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "cycle sort"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Select, k.Back,
		k.Quit, k.Help, k.Search,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.NextPage, k.PrevPage, k.Select, k.Back, k.Quit},
		{k.Search, k.Actions, k.CycleSort, k.Command, k.Help, k.Refresh},
		{k.Notifications, k.Applications, k.Complaints, k.Services, k.Users},
		{k.Bell, k.MarkRead, k.MarkAllRead, k.Delete, k.ClearAll, k.UnreadOnly},
	}
}
