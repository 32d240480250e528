package notifications

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// ChangedMsg is delivered after the notification store changed.
type ChangedMsg struct{}

// Source is the part of the notification store the views subscribe to.
type Source interface {
	Subscribe(fn func()) (unsubscribe func())
}

// Watcher bridges store change callbacks into Bubble Tea messages.
// Bursts of changes collapse into one pending ChangedMsg.
type Watcher struct {
	ch          chan struct{}
	done        chan struct{}
	once        sync.Once
	unsubscribe func()
}

// Watch subscribes to src. Close the watcher to unsubscribe.
func Watch(src Source) *Watcher {
	w := &Watcher{
		ch:   make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	w.unsubscribe = src.Subscribe(func() {
		select {
		case w.ch <- struct{}{}:
		default:
		}
	})
	return w
}

// Wait returns a tea.Cmd that blocks until the next change. Call it again
// after handling each ChangedMsg to keep listening.
func (w *Watcher) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-w.ch:
			return ChangedMsg{}
		case <-w.done:
			return nil
		}
	}
}

// Close unsubscribes and releases any pending Wait.
func (w *Watcher) Close() {
	w.once.Do(func() {
		w.unsubscribe()
		close(w.done)
	})
}
