// Package realtime listens on the portal websocket for pushed
// notifications and feeds them into the notification store.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/jonoseba/portal/internal/model"
)

// TypeNotification is the message type carrying a new notification.
const TypeNotification = "NOTIFICATION"

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = 3 * time.Second
)

// ErrGaveUp is returned by Run once the reconnect budget is exhausted.
var ErrGaveUp = errors.New("websocket reconnect attempts exhausted")

// Message is the push envelope.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Sink receives pushed notifications.
type Sink interface {
	AddNotification(n model.Notification)
	ByID(id string) (model.Notification, bool)
}

// EventKind classifies listener events.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventNotification
	EventGaveUp
)

// Event reports connection changes and received notifications to the UI.
type Event struct {
	Kind         EventKind
	Notification model.Notification
	Attempt      int
	Err          error
}

// Listener keeps one websocket connection open, reconnecting with
// exponential backoff after it drops.
type Listener struct {
	url         string
	token       func() string
	sink        Sink
	dialer      *websocket.Dialer
	maxAttempts int
	baseDelay   time.Duration
	events      chan Event
	log         zerolog.Logger
}

// Option configures a Listener.
type Option func(*Listener)

// WithBackoff overrides the reconnect budget and base delay. The n-th
// reconnect waits base * 2^(n-1).
func WithBackoff(maxAttempts int, base time.Duration) Option {
	return func(l *Listener) {
		l.maxAttempts = maxAttempts
		l.baseDelay = base
	}
}

// WithLogger sets the listener logger.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Listener) { l.log = log.With().Str("component", "realtime").Logger() }
}

// NewListener creates a listener for wsURL. The session token is appended
// as the token query parameter on every dial.
func NewListener(wsURL string, token func() string, sink Sink, opts ...Option) *Listener {
	l := &Listener{
		url:         wsURL,
		token:       token,
		sink:        sink,
		dialer:      websocket.DefaultDialer,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		events:      make(chan Event, 32),
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Events delivers listener events. Events are dropped when nobody reads.
func (l *Listener) Events() <-chan Event {
	return l.events
}

func (l *Listener) emit(e Event) {
	select {
	case l.events <- e:
	default:
	}
}

func (l *Listener) dialURL() (string, error) {
	u, err := url.Parse(l.url)
	if err != nil {
		return "", fmt.Errorf("parsing websocket url: %w", err)
	}
	if l.token != nil {
		if tok := l.token(); tok != "" {
			q := u.Query()
			q.Set("token", tok)
			u.RawQuery = q.Encode()
		}
	}
	return u.String(), nil
}

// Run connects and processes messages until ctx is cancelled or the
// reconnect budget is spent. A successful connection resets the budget.
func (l *Listener) Run(ctx context.Context) error {
	attempt := 0
	for {
		connected, err := l.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			attempt = 0
		}
		l.emit(Event{Kind: EventDisconnected, Err: err, Attempt: attempt})

		if attempt >= l.maxAttempts {
			l.log.Warn().Err(err).Int("attempts", attempt).Msg("giving up on websocket")
			l.emit(Event{Kind: EventGaveUp, Err: err, Attempt: attempt})
			return ErrGaveUp
		}
		attempt++
		delay := l.baseDelay * time.Duration(1<<(attempt-1))
		l.log.Info().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("reconnecting websocket")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// session dials once and reads until the connection drops. It reports
// whether the dial succeeded.
func (l *Listener) session(ctx context.Context) (bool, error) {
	target, err := l.dialURL()
	if err != nil {
		return false, err
	}

	conn, _, err := l.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return false, fmt.Errorf("dialing websocket: %w", err)
	}
	defer conn.Close()

	l.log.Info().Msg("websocket connected")
	l.emit(Event{Kind: EventConnected})

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("reading websocket: %w", err)
		}
		l.handle(data)
	}
}

func (l *Listener) handle(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		l.log.Warn().Err(err).Msg("malformed websocket message")
		return
	}
	if msg.Type != TypeNotification {
		l.log.Debug().Str("type", msg.Type).Msg("ignoring websocket message")
		return
	}

	var n model.Notification
	if err := json.Unmarshal(msg.Payload, &n); err != nil {
		l.log.Warn().Err(err).Msg("malformed notification payload")
		return
	}

	// Pushes can repeat what the last sync already delivered.
	if n.ID != "" {
		if _, ok := l.sink.ByID(n.ID); ok {
			return
		}
	}

	l.sink.AddNotification(n)
	l.emit(Event{Kind: EventNotification, Notification: n})
}

// EventMsg is a tea.Msg wrapping a listener event.
type EventMsg Event

// WaitForEvent returns a tea.Cmd that blocks until the next listener
// event. Call it again after handling each EventMsg to keep listening.
func (l *Listener) WaitForEvent() tea.Cmd {
	return func() tea.Msg {
		e, ok := <-l.events
		if !ok {
			return nil
		}
		return EventMsg(e)
	}
}
