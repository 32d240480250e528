package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonoseba/portal/internal/model"
)

type memSink struct {
	mu    sync.Mutex
	items []model.Notification
}

func (m *memSink) AddNotification(n model.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append([]model.Notification{n}, m.items...)
}

func (m *memSink) ByID(id string) (model.Notification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.items {
		if n.ID == id {
			return n, true
		}
	}
	return model.Notification{}, false
}

func (m *memSink) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.items))
	for i, n := range m.items {
		out[i] = n.ID
	}
	return out
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestListenerDeliversNotifications(t *testing.T) {
	var hits int32
	var gotToken string
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) > 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		gotToken = r.URL.Query().Get("token")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for _, msg := range []string{
			`{"type":"NOTIFICATION","payload":{"id":"n1","type":"APPLICATION_UPDATE","title":"Approved","read":false}}`,
			`{"type":"NOTIFICATION","payload":{"id":"n1","type":"APPLICATION_UPDATE","title":"Approved","read":false}}`,
			`{"type":"PING"}`,
			`not json`,
			`{"type":"NOTIFICATION","payload":{"id":"n2","type":"SYSTEM","title":"Maintenance"}}`,
		} {
			assert.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
		}
	}))
	defer srv.Close()

	sink := &memSink{}
	l := NewListener(wsURL(srv), func() string { return "tok" }, sink, WithBackoff(1, time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := l.Run(ctx)
	require.ErrorIs(t, err, ErrGaveUp)

	assert.Equal(t, "tok", gotToken)
	assert.Equal(t, []string{"n2", "n1"}, sink.ids())
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))

	var kinds []EventKind
	for len(l.Events()) > 0 {
		kinds = append(kinds, (<-l.Events()).Kind)
	}
	assert.Equal(t, []EventKind{
		EventConnected,
		EventNotification,
		EventNotification,
		EventDisconnected,
		EventDisconnected,
		EventGaveUp,
	}, kinds)
}

func TestListenerBacksOffExponentially(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	l := NewListener(wsURL(srv), nil, &memSink{}, WithBackoff(3, 5*time.Millisecond))

	start := time.Now()
	err := l.Run(context.Background())
	require.ErrorIs(t, err, ErrGaveUp)

	// One dial plus three reconnects waiting 5, 10 and 20ms.
	assert.Equal(t, int32(4), atomic.LoadInt32(&hits))
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestListenerStopsOnCancel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// Hold the connection open until the client goes away.
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	l := NewListener(wsURL(srv), nil, &memSink{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case e := <-l.Events():
		assert.Equal(t, EventConnected, e.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("listener never connected")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestDialURLKeepsExistingQuery(t *testing.T) {
	l := NewListener("wss://portal.example/ws?lang=bn", func() string { return "a b" }, &memSink{})
	u, err := l.dialURL()
	require.NoError(t, err)
	assert.Equal(t, "wss://portal.example/ws?lang=bn&token=a+b", u)
}
