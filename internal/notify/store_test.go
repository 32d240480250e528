package notify_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonoseba/portal/internal/model"
	"github.com/jonoseba/portal/internal/notify"
	"github.com/jonoseba/portal/internal/testutil"
)

// fakeRemote records calls and fails on demand.
type fakeRemote struct {
	mu        sync.Mutex
	list      []model.Notification
	listErr   error
	markErr   error
	deleteErr map[string]error
	block     bool
	calls     []string
}

func (f *fakeRemote) record(c string) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeRemote) wait(ctx context.Context) error {
	if !f.block {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeRemote) List(ctx context.Context) ([]model.Notification, error) {
	f.record("list")
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.list, f.listErr
}

func (f *fakeRemote) MarkRead(ctx context.Context, id string) error {
	f.record("read " + id)
	if err := f.wait(ctx); err != nil {
		return err
	}
	return f.markErr
}

func (f *fakeRemote) MarkAllRead(ctx context.Context) error {
	f.record("read-all")
	if err := f.wait(ctx); err != nil {
		return err
	}
	return f.markErr
}

func (f *fakeRemote) Delete(ctx context.Context, id string) error {
	f.record("delete " + id)
	if err := f.wait(ctx); err != nil {
		return err
	}
	return f.deleteErr[id]
}

func n(id string, read bool) model.Notification {
	return model.Notification{
		ID:        id,
		UserID:    "u1",
		Type:      model.NotificationApplicationUpdate,
		Title:     "Application " + id,
		Read:      read,
		CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func ids(items []model.Notification) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func countUnread(items []model.Notification) int {
	c := 0
	for _, it := range items {
		if !it.Read {
			c++
		}
	}
	return c
}

func TestLifecycle(t *testing.T) {
	s := notify.New(&fakeRemote{})
	assert.Equal(t, 0, s.UnreadCount())

	s.AddNotification(n("n1", false))
	assert.Equal(t, 1, s.UnreadCount())

	s.MarkRead("n1")
	assert.Equal(t, 0, s.UnreadCount())
	got, ok := s.ByID("n1")
	require.True(t, ok)
	assert.True(t, got.Read)

	s.RemoveNotification("n1")
	assert.Empty(t, s.Items())
	assert.Equal(t, 0, s.UnreadCount())
}

func TestAddNotificationInsertsAtHead(t *testing.T) {
	s := notify.New(&fakeRemote{})
	s.AddNotification(n("a", false))
	s.AddNotification(n("b", true))
	s.AddNotification(n("c", false))

	assert.Equal(t, []string{"c", "b", "a"}, ids(s.Items()))
	assert.Equal(t, 2, s.UnreadCount())
}

func TestAddNotificationRecountsReadItems(t *testing.T) {
	s := notify.New(&fakeRemote{})
	s.AddNotification(n("a", true))
	assert.Equal(t, 0, s.UnreadCount())
}

func TestAddNotificationAssignsIDAndTime(t *testing.T) {
	s := notify.New(&fakeRemote{})
	s.AddNotification(model.Notification{Title: "pushed"})

	items := s.Items()
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].ID)
	assert.False(t, items[0].CreatedAt.IsZero())
}

func TestMarkReadIsIdempotent(t *testing.T) {
	s := notify.New(&fakeRemote{})
	s.SetNotifications([]model.Notification{n("a", false), n("b", false)})

	s.MarkRead("a")
	first := s.Items()
	s.MarkRead("a")

	assert.Equal(t, first, s.Items())
	assert.Equal(t, 1, s.UnreadCount())
}

func TestAbsentIDsAreNoOps(t *testing.T) {
	s := notify.New(&fakeRemote{})
	s.SetNotifications([]model.Notification{n("a", false), n("b", true)})

	calls := 0
	unsub := s.Subscribe(func() { calls++ })
	defer unsub()

	before := s.Items()
	s.MarkRead("zzz")
	s.RemoveNotification("zzz")

	assert.Equal(t, before, s.Items())
	assert.Equal(t, 1, s.UnreadCount())
	assert.Equal(t, 0, calls)
}

func TestMarkAllReadAndClearAll(t *testing.T) {
	s := notify.New(&fakeRemote{})
	s.SetNotifications([]model.Notification{n("a", false), n("b", false), n("c", true)})

	s.MarkAllRead()
	assert.Equal(t, 0, s.UnreadCount())
	for _, it := range s.Items() {
		assert.True(t, it.Read)
	}

	s.ClearAll()
	assert.Empty(t, s.Items())
	assert.Equal(t, 0, s.UnreadCount())
}

func TestSetNotificationsRoundTrip(t *testing.T) {
	s := notify.New(&fakeRemote{})
	in := []model.Notification{n("x", false), n("y", true), n("z", false)}
	s.SetNotifications(in)

	assert.Equal(t, in, s.Items())
	assert.Equal(t, 2, s.UnreadCount())

	// The store keeps its own copy.
	in[0].Read = true
	got, _ := s.ByID("x")
	assert.False(t, got.Read)
}

func TestItemsReturnsCopy(t *testing.T) {
	s := notify.New(&fakeRemote{})
	s.SetNotifications([]model.Notification{n("a", false)})

	items := s.Items()
	items[0].Read = true
	assert.Equal(t, 1, s.UnreadCount())
	got, _ := s.ByID("a")
	assert.False(t, got.Read)
}

func TestUnreadCountInvariantUnderRandomMutations(t *testing.T) {
	s := notify.New(&fakeRemote{})
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		id := fmt.Sprintf("n%d", r.Intn(20))
		switch r.Intn(6) {
		case 0:
			s.AddNotification(n(id, r.Intn(2) == 0))
		case 1:
			s.MarkRead(id)
		case 2:
			s.RemoveNotification(id)
		case 3:
			if r.Intn(10) == 0 {
				s.MarkAllRead()
			}
		case 4:
			if r.Intn(20) == 0 {
				s.ClearAll()
			}
		case 5:
			if r.Intn(10) == 0 {
				s.SetNotifications([]model.Notification{n(id, false), n(id+"x", true)})
			}
		}
		require.Equal(t, countUnread(s.Items()), s.UnreadCount(), "after step %d", i)
	}
}

func TestAccessors(t *testing.T) {
	s := notify.New(&fakeRemote{})
	sys := n("s", false)
	sys.Type = model.NotificationSystem
	s.SetNotifications([]model.Notification{n("a", false), sys, n("b", true), n("c", false)})

	assert.Equal(t, []string{"a", "s", "c"}, ids(s.Unread()))
	assert.Equal(t, []string{"s"}, ids(s.ByType(model.NotificationSystem)))
	assert.Equal(t, []string{"a", "s"}, ids(s.Latest(2)))
	assert.Len(t, s.Latest(99), 4)
	assert.Empty(t, s.Latest(0))
	assert.Empty(t, s.ByType(model.NotificationReminder))

	_, ok := s.ByID("missing")
	assert.False(t, ok)
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	s := notify.New(&fakeRemote{})

	var seen []int
	unsub := s.Subscribe(func() { seen = append(seen, s.UnreadCount()) })

	s.AddNotification(n("a", false))
	s.AddNotification(n("b", false))
	s.MarkRead("a")
	assert.Equal(t, []int{1, 2, 1}, seen)

	unsub()
	unsub()
	s.MarkAllRead()
	assert.Equal(t, []int{1, 2, 1}, seen)
}

func TestSubscribersCalledInOrder(t *testing.T) {
	s := notify.New(&fakeRemote{})

	var order []string
	u1 := s.Subscribe(func() { order = append(order, "bell") })
	u2 := s.Subscribe(func() { order = append(order, "page") })
	defer u1()
	defer u2()

	s.AddNotification(n("a", false))
	assert.Equal(t, []string{"bell", "page"}, order)
}

func TestSubscriberMayMutateWithoutDeadlock(t *testing.T) {
	s := notify.New(&fakeRemote{})
	unsub := s.Subscribe(func() {
		if s.UnreadCount() > 0 {
			s.MarkAllRead()
		}
	})
	defer unsub()

	s.AddNotification(n("a", false))
	assert.Equal(t, 0, s.UnreadCount())
}

func TestSyncFromServer(t *testing.T) {
	remote := &fakeRemote{list: []model.Notification{n("srv1", false), n("srv2", true)}}
	s := notify.New(remote)
	s.AddNotification(n("local", false))

	require.NoError(t, s.SyncFromServer(context.Background()))
	assert.Equal(t, []string{"srv1", "srv2"}, ids(s.Items()))
	assert.Equal(t, 1, s.UnreadCount())
}

func TestSyncFromServerFailureKeepsState(t *testing.T) {
	remote := &fakeRemote{listErr: errors.New("offline")}
	s := notify.New(remote)
	s.AddNotification(n("local", false))

	err := s.SyncFromServer(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"local"}, ids(s.Items()))

	// The initializer swallows the same failure.
	s.Initialize(context.Background())
	assert.Equal(t, []string{"local"}, ids(s.Items()))
}

// cancellingRemote cancels the caller's context once the list is fetched,
// like a logout landing while the response is in flight.
type cancellingRemote struct {
	fakeRemote
	cancel context.CancelFunc
}

func (c *cancellingRemote) List(ctx context.Context) ([]model.Notification, error) {
	items, err := c.fakeRemote.List(ctx)
	c.cancel()
	return items, err
}

func TestSyncFromServerDiscardsResultAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	remote := &cancellingRemote{
		fakeRemote: fakeRemote{list: []model.Notification{n("previous-user", false)}},
		cancel:     cancel,
	}
	s := notify.New(remote)

	err := s.SyncFromServer(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.Items())
	assert.Equal(t, 0, s.UnreadCount())
}

func TestMarkReadOnServerSuccess(t *testing.T) {
	remote := &fakeRemote{}
	s := notify.New(remote)
	s.SetNotifications([]model.Notification{n("n1", false)})

	require.NoError(t, s.MarkReadOnServer(context.Background(), "n1"))
	got, _ := s.ByID("n1")
	assert.True(t, got.Read)
	assert.Equal(t, []string{"read n1"}, remote.calls)
}

func TestMarkReadOnServerFailureReverts(t *testing.T) {
	remote := &fakeRemote{markErr: errors.New("500")}
	s := notify.New(remote)
	s.SetNotifications([]model.Notification{n("n1", false), n("n2", false)})

	var during []int
	unsub := s.Subscribe(func() { during = append(during, s.UnreadCount()) })
	defer unsub()

	err := s.MarkReadOnServer(context.Background(), "n1")
	require.Error(t, err)

	got, _ := s.ByID("n1")
	assert.False(t, got.Read)
	assert.Equal(t, 2, s.UnreadCount())
	// Optimistic apply, then revert.
	assert.Equal(t, []int{1, 2}, during)
}

func TestMarkReadOnServerKeepsAlreadyReadItem(t *testing.T) {
	remote := &fakeRemote{markErr: errors.New("500")}
	s := notify.New(remote)
	s.SetNotifications([]model.Notification{n("n1", true)})

	require.Error(t, s.MarkReadOnServer(context.Background(), "n1"))
	got, _ := s.ByID("n1")
	assert.True(t, got.Read)
}

func TestMarkReadOnServerTimeoutReverts(t *testing.T) {
	remote := &fakeRemote{block: true}
	s := notify.New(remote, notify.WithTimeout(20*time.Millisecond))
	s.SetNotifications([]model.Notification{n("n1", false)})

	err := s.MarkReadOnServer(context.Background(), "n1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	got, _ := s.ByID("n1")
	assert.False(t, got.Read)
	assert.Equal(t, 1, s.UnreadCount())
}

func TestMarkReadOnServerRevertSkipsRemovedItem(t *testing.T) {
	remote := &fakeRemote{markErr: errors.New("500")}
	s := notify.New(remote)
	s.SetNotifications([]model.Notification{n("n1", false), n("n2", false)})

	unsub := s.Subscribe(func() {
		// Removed while the request is in flight.
		if got, ok := s.ByID("n1"); ok && got.Read {
			s.RemoveNotification("n1")
		}
	})
	defer unsub()

	require.Error(t, s.MarkReadOnServer(context.Background(), "n1"))
	assert.Equal(t, []string{"n2"}, ids(s.Items()))
	assert.Equal(t, 1, s.UnreadCount())
}

func TestMarkAllReadOnServerFailureReverts(t *testing.T) {
	remote := &fakeRemote{markErr: errors.New("503")}
	s := notify.New(remote)
	s.SetNotifications([]model.Notification{n("a", false), n("b", true), n("c", false)})

	require.Error(t, s.MarkAllReadOnServer(context.Background()))

	items := s.Items()
	assert.False(t, items[0].Read)
	assert.True(t, items[1].Read)
	assert.False(t, items[2].Read)
	assert.Equal(t, 2, s.UnreadCount())
}

func TestMarkAllReadOnServerSuccess(t *testing.T) {
	remote := &fakeRemote{}
	s := notify.New(remote)
	s.SetNotifications([]model.Notification{n("a", false), n("b", false)})

	require.NoError(t, s.MarkAllReadOnServer(context.Background()))
	assert.Equal(t, 0, s.UnreadCount())
	assert.Equal(t, []string{"read-all"}, remote.calls)
}

func TestRemoveOnServerFailureReinsertsAtPosition(t *testing.T) {
	remote := &fakeRemote{deleteErr: map[string]error{"b": errors.New("404")}}
	s := notify.New(remote)
	s.SetNotifications([]model.Notification{n("a", false), n("b", false), n("c", true)})

	require.Error(t, s.RemoveOnServer(context.Background(), "b"))
	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Items()))
	assert.Equal(t, 2, s.UnreadCount())

	require.NoError(t, s.RemoveOnServer(context.Background(), "a"))
	assert.Equal(t, []string{"b", "c"}, ids(s.Items()))
}

func TestClearAllOnServerPartialFailure(t *testing.T) {
	remote := &fakeRemote{deleteErr: map[string]error{
		"b": errors.New("500"),
		"d": errors.New("500"),
	}}
	s := notify.New(remote)
	s.SetNotifications([]model.Notification{n("a", false), n("b", false), n("c", false), n("d", true)})

	err := s.ClearAllOnServer(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deleting notification b")
	assert.Contains(t, err.Error(), "deleting notification d")

	assert.Equal(t, []string{"b", "d"}, ids(s.Items()))
	assert.Equal(t, 1, s.UnreadCount())
	assert.Len(t, remote.calls, 4)
}

func TestDeleteVariants(t *testing.T) {
	t.Run("local only", func(t *testing.T) {
		remote := &fakeRemote{}
		s := notify.New(remote)
		s.SetNotifications([]model.Notification{n("a", false), n("b", false)})

		require.NoError(t, s.Delete(context.Background(), "a"))
		require.NoError(t, s.DeleteAll(context.Background()))
		assert.Empty(t, s.Items())
		assert.Empty(t, remote.calls)
		assert.False(t, s.DeletesOnServer())
	})

	t.Run("server", func(t *testing.T) {
		remote := &fakeRemote{}
		s := notify.New(remote, notify.WithServerDelete(true))
		s.SetNotifications([]model.Notification{n("a", false), n("b", false)})

		require.NoError(t, s.Delete(context.Background(), "a"))
		require.NoError(t, s.DeleteAll(context.Background()))
		assert.Empty(t, s.Items())
		assert.Equal(t, []string{"delete a", "delete b"}, remote.calls)
	})
}

func TestConcurrentMutationsKeepInvariant(t *testing.T) {
	s := notify.New(&fakeRemote{})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := fmt.Sprintf("g%d-%d", g, i)
				s.AddNotification(n(id, false))
				if i%3 == 0 {
					s.MarkRead(id)
				}
				if i%7 == 0 {
					s.MarkAllRead()
				}
			}
		}(g)
	}
	wg.Wait()

	assert.Len(t, s.Items(), 800)
	assert.Equal(t, countUnread(s.Items()), s.UnreadCount())
}

func TestPersistenceRoundTrip(t *testing.T) {
	db := testutil.NewTestStore(t)

	s := notify.New(&fakeRemote{}, notify.WithPersister(db))
	s.AddNotification(n("a", false))
	s.AddNotification(n("b", false))
	s.MarkRead("a")

	restored := notify.New(&fakeRemote{}, notify.WithPersister(db))
	require.NoError(t, restored.Load(context.Background()))
	assert.Equal(t, []string{"b", "a"}, ids(restored.Items()))
	assert.Equal(t, 1, restored.UnreadCount())
}

type failingPersister struct{ saves int }

func (f *failingPersister) SaveNotifications(context.Context, string, []model.Notification) error {
	f.saves++
	return errors.New("disk full")
}

func (f *failingPersister) LoadNotifications(context.Context, string) ([]model.Notification, error) {
	return nil, errors.New("disk full")
}

func TestPersistenceFailureDoesNotAffectState(t *testing.T) {
	p := &failingPersister{}
	s := notify.New(&fakeRemote{}, notify.WithPersister(p))

	s.AddNotification(n("a", false))
	assert.Equal(t, 1, s.UnreadCount())
	assert.Equal(t, 1, p.saves)

	require.Error(t, s.Load(context.Background()))
	assert.Equal(t, []string{"a"}, ids(s.Items()))
}
