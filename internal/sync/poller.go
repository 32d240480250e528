package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/jonoseba/portal/internal/api"
)

// SyncState represents the current state of the reconciliation loop.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus describes the last reconciliation run.
type SyncStatus struct {
	State    SyncState
	LastSync time.Time
	Error    error
}

// SyncResultMsg is a tea.Msg sent when a reconciliation run completes.
type SyncResultMsg struct {
	Error     error
	AuthError bool
	Manual    bool
	At        time.Time
}

// Syncer is what the poller reconciles, usually the notification store.
type Syncer interface {
	SyncFromServer(ctx context.Context) error
}

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = 120 * time.Second

// fetchTimeout is the maximum time allowed for a single run.
const fetchTimeout = 30 * time.Second

// Poller periodically reconciles a Syncer with the server on a cron
// schedule and on demand.
type Poller struct {
	target    Syncer
	interval  time.Duration
	cron      *cron.Cron
	entry     cron.EntryID
	status    SyncStatus
	resultCh  chan SyncResultMsg
	triggerCh chan bool
	cancel    context.CancelFunc
	mu        gosync.Mutex
	running   bool
	log       zerolog.Logger
}

// New creates a Poller that syncs target every interval.
func New(target Syncer, interval time.Duration, logger zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		target:    target,
		interval:  interval,
		cron:      cron.New(),
		resultCh:  make(chan SyncResultMsg, 16),
		triggerCh: make(chan bool, 16),
		log:       logger.With().Str("component", "sync").Logger(),
	}
}

// Start schedules the periodic run and returns a tea.Cmd that waits for
// the first result. A stopped poller can be started again.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	schedule := fmt.Sprintf("@every %s", p.interval)
	id, err := p.cron.AddFunc(schedule, func() { p.trigger(false) })
	if err != nil {
		p.log.Error().Err(err).Str("schedule", schedule).Msg("scheduling sync")
	}
	p.entry = id
	p.cron.Start()

	go p.loop(ctx)

	return p.waitForResult()
}

// Stop halts the schedule and the worker goroutine. A sync in flight is
// cancelled and its result is not applied.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	<-p.cron.Stop().Done()
	p.cron.Remove(p.entry)
	p.cancel()
	p.running = false
}

// RefreshAll triggers an immediate run.
func (p *Poller) RefreshAll() tea.Cmd {
	p.trigger(true)
	return nil
}

// Status returns the state of the last run.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) trigger(manual bool) {
	select {
	case p.triggerCh <- manual:
	default:
		// A run is already queued.
	}
}

func (p *Poller) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case manual := <-p.triggerCh:
			p.run(ctx, manual)
		}
	}
}

func (p *Poller) run(ctx context.Context, manual bool) {
	p.setStatus(SyncRunning, nil)

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	err := p.target.SyncFromServer(ctx)
	if err != nil {
		p.setStatus(SyncError, err)
		p.log.Warn().Err(err).Bool("manual", manual).Msg("sync failed")
	} else {
		p.setStatus(SyncIdle, nil)
	}

	p.sendResult(SyncResultMsg{
		Error:     err,
		AuthError: api.IsAuthError(err),
		Manual:    manual,
		At:        time.Now(),
	})
}

func (p *Poller) setStatus(state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == SyncIdle {
		p.status.LastSync = time.Now()
	}
}

// sendResult sends a SyncResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next sync result.
// Call it after handling each SyncResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
