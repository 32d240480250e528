// Package notify holds the client-side notification cache: the current
// user's notifications with their read state, optimistic local mutations,
// best-effort reconciliation with the portal and change subscriptions.
package notify

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jonoseba/portal/internal/model"
)

// Namespace is the key the snapshot is persisted under.
const Namespace = "notification-store"

// DefaultTimeout bounds a single server call when no timeout is configured.
const DefaultTimeout = 15 * time.Second

// Remote is the server side of the notification list.
type Remote interface {
	List(ctx context.Context) ([]model.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id string) error
}

// Persister stores snapshots of the notification list between runs.
type Persister interface {
	SaveNotifications(ctx context.Context, namespace string, items []model.Notification) error
	LoadNotifications(ctx context.Context, namespace string) ([]model.Notification, error)
}

// Store is the process-wide notification cache. All methods are safe for
// concurrent use. The lock is never held across a server call or a
// subscriber callback.
type Store struct {
	mu      sync.Mutex
	items   []model.Notification
	unread  int
	version uint64

	subsMu  sync.Mutex
	subs    map[int]func()
	nextSub int

	persistMu sync.Mutex
	persisted uint64

	remote         Remote
	persister      Persister
	timeout        time.Duration
	deleteOnServer bool
	log            zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPersister saves a snapshot after every mutation.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithLogger sets the store logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l.With().Str("component", "notify").Logger() }
}

// WithTimeout bounds every server call.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithServerDelete makes Delete and DeleteAll propagate to the server.
func WithServerDelete(enabled bool) Option {
	return func(s *Store) { s.deleteOnServer = enabled }
}

// New creates an empty store backed by remote.
func New(remote Remote, opts ...Option) *Store {
	s := &Store{
		items:   []model.Notification{},
		subs:    make(map[int]func()),
		remote:  remote,
		timeout: DefaultTimeout,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// === Local mutators ===

// AddNotification inserts n at the head of the list. An empty ID is
// replaced with a generated one and a zero CreatedAt with the current time.
func (s *Store) AddNotification(n model.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	s.mutate(func() bool {
		s.items = slices.Insert(s.items, 0, n)
		return true
	})
}

// MarkRead marks the notification with id as read. Unknown ids are ignored.
func (s *Store) MarkRead(id string) {
	s.mutate(func() bool {
		i := s.indexOf(id)
		if i < 0 || s.items[i].Read {
			return false
		}
		s.items[i].Read = true
		return true
	})
}

// MarkAllRead marks every notification as read.
func (s *Store) MarkAllRead() {
	s.mutate(func() bool {
		changed := false
		for i := range s.items {
			if !s.items[i].Read {
				s.items[i].Read = true
				changed = true
			}
		}
		return changed
	})
}

// RemoveNotification drops the notification with id locally.
func (s *Store) RemoveNotification(id string) {
	s.mutate(func() bool {
		i := s.indexOf(id)
		if i < 0 {
			return false
		}
		s.items = slices.Delete(s.items, i, i+1)
		return true
	})
}

// ClearAll drops every notification locally.
func (s *Store) ClearAll() {
	s.mutate(func() bool {
		if len(s.items) == 0 {
			return false
		}
		s.items = []model.Notification{}
		return true
	})
}

// SetNotifications replaces the whole list, keeping the given order.
func (s *Store) SetNotifications(list []model.Notification) {
	cp := make([]model.Notification, len(list))
	copy(cp, list)
	s.mutate(func() bool {
		s.items = cp
		return true
	})
}

// === Accessors ===

// Items returns a copy of the current list, newest first.
func (s *Store) Items() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// UnreadCount returns the number of unread notifications.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Unread returns the unread notifications in list order.
func (s *Store) Unread() []model.Notification {
	return s.filter(func(n model.Notification) bool { return !n.Read })
}

// ByType returns the notifications of type t in list order.
func (s *Store) ByType(t model.NotificationType) []model.Notification {
	return s.filter(func(n model.Notification) bool { return n.Type == t })
}

// ByID looks up a single notification.
func (s *Store) ByID(id string) (model.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.items[i], true
	}
	return model.Notification{}, false
}

// Latest returns at most n notifications from the head of the list.
func (s *Store) Latest(n int) []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		return []model.Notification{}
	}
	if n > len(s.items) {
		n = len(s.items)
	}
	return slices.Clone(s.items[:n])
}

func (s *Store) filter(keep func(model.Notification) bool) []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Notification{}
	for _, n := range s.items {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out
}

// === Subscriptions ===

// Subscribe registers fn to be called after every change. Callbacks run
// synchronously on the mutating goroutine and should read fresh state
// through the accessors. The returned func removes the subscription and
// is safe to call more than once.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
}

func (s *Store) publish() {
	s.subsMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// === Persistence ===

// Load replaces the list with the persisted snapshot, if any.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	items, err := s.persister.LoadNotifications(ctx, Namespace)
	if err != nil {
		return fmt.Errorf("loading notification snapshot: %w", err)
	}
	if items == nil {
		items = []model.Notification{}
	}

	s.mu.Lock()
	s.items = items
	s.recount()
	s.version++
	s.mu.Unlock()

	s.persistMu.Lock()
	if s.persisted < s.version {
		s.persisted = s.version
	}
	s.persistMu.Unlock()

	s.publish()
	return nil
}

func (s *Store) save(snapshot []model.Notification, version uint64) {
	if s.persister == nil {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	// A newer snapshot has already been written.
	if version <= s.persisted {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.persister.SaveNotifications(ctx, Namespace, snapshot); err != nil {
		s.log.Warn().Err(err).Int("count", len(snapshot)).Msg("persisting notifications")
		return
	}
	s.persisted = version
}

// mutate runs fn under the lock. When fn reports a change the unread
// count is recomputed, the snapshot persisted and subscribers notified.
func (s *Store) mutate(fn func() bool) {
	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	s.recount()
	s.version++
	version := s.version
	snapshot := slices.Clone(s.items)
	s.mu.Unlock()

	s.save(snapshot, version)
	s.publish()
}

func (s *Store) recount() {
	n := 0
	for _, it := range s.items {
		if !it.Read {
			n++
		}
	}
	s.unread = n
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.items, func(n model.Notification) bool { return n.ID == id })
}

// === Server reconciliation ===

func (s *Store) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// SyncFromServer replaces the list with the server's authoritative copy.
// On failure the current list is kept and the error returned. Nothing is
// applied once ctx is cancelled, even if the fetch already succeeded.
func (s *Store) SyncFromServer(ctx context.Context) error {
	callCtx, cancel := s.callCtx(ctx)
	defer cancel()

	items, err := s.remote.List(callCtx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("syncing notifications")
		return fmt.Errorf("syncing notifications: %w", err)
	}

	s.SetNotifications(items)
	s.log.Debug().Int("count", len(items)).Msg("notifications synced")
	return nil
}

// Initialize performs the start-up sync. Failures are logged and the
// cached list stays in place.
func (s *Store) Initialize(ctx context.Context) {
	if err := s.SyncFromServer(ctx); err != nil {
		s.log.Error().Err(err).Msg("initial notification sync failed")
	}
}

// readSnapshot records the read flag of the given ids (all ids when nil).
func (s *Store) readSnapshot(ids []string) map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prior := make(map[string]bool)
	if ids == nil {
		for _, n := range s.items {
			prior[n.ID] = n.Read
		}
		return prior
	}
	for _, id := range ids {
		if i := s.indexOf(id); i >= 0 {
			prior[id] = s.items[i].Read
		}
	}
	return prior
}

// restoreRead puts back the recorded read flags on items still present.
func (s *Store) restoreRead(prior map[string]bool) {
	s.mutate(func() bool {
		changed := false
		for i := range s.items {
			was, ok := prior[s.items[i].ID]
			if ok && s.items[i].Read != was {
				s.items[i].Read = was
				changed = true
			}
		}
		return changed
	})
}

// MarkReadOnServer marks id read locally, then on the server. If the
// server call fails or times out the local read flag is restored.
func (s *Store) MarkReadOnServer(ctx context.Context, id string) error {
	prior := s.readSnapshot([]string{id})
	s.MarkRead(id)

	callCtx, cancel := s.callCtx(ctx)
	defer cancel()

	if err := s.remote.MarkRead(callCtx, id); err != nil {
		s.restoreRead(prior)
		s.log.Warn().Err(err).Str("id", id).Msg("mark read reverted")
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}

// MarkAllReadOnServer marks everything read locally, then on the server.
// If the server call fails every item is restored to its prior state.
func (s *Store) MarkAllReadOnServer(ctx context.Context) error {
	prior := s.readSnapshot(nil)
	s.MarkAllRead()

	callCtx, cancel := s.callCtx(ctx)
	defer cancel()

	if err := s.remote.MarkAllRead(callCtx); err != nil {
		s.restoreRead(prior)
		s.log.Warn().Err(err).Int("count", len(prior)).Msg("mark all read reverted")
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	return nil
}

type removed struct {
	index int
	item  model.Notification
}

// reinsert puts back removed items at their original positions, skipping
// any whose id has reappeared in the meantime. rs must be in ascending
// index order.
func (s *Store) reinsert(rs []removed) {
	s.mutate(func() bool {
		changed := false
		for _, r := range rs {
			if s.indexOf(r.item.ID) >= 0 {
				continue
			}
			at := min(r.index, len(s.items))
			s.items = slices.Insert(s.items, at, r.item)
			changed = true
		}
		return changed
	})
}

// RemoveOnServer removes id locally, then deletes it on the server. If the
// server call fails the notification is put back where it was.
func (s *Store) RemoveOnServer(ctx context.Context, id string) error {
	var rs []removed
	s.mutate(func() bool {
		i := s.indexOf(id)
		if i < 0 {
			return false
		}
		rs = append(rs, removed{index: i, item: s.items[i]})
		s.items = slices.Delete(s.items, i, i+1)
		return true
	})

	callCtx, cancel := s.callCtx(ctx)
	defer cancel()

	if err := s.remote.Delete(callCtx, id); err != nil {
		s.reinsert(rs)
		s.log.Warn().Err(err).Str("id", id).Msg("delete reverted")
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return nil
}

// ClearAllOnServer clears the list locally, then deletes every item on the
// server. Items whose deletion fails are put back at their old positions.
func (s *Store) ClearAllOnServer(ctx context.Context) error {
	var rs []removed
	s.mutate(func() bool {
		if len(s.items) == 0 {
			return false
		}
		for i, n := range s.items {
			rs = append(rs, removed{index: i, item: n})
		}
		s.items = []model.Notification{}
		return true
	})

	var failed []removed
	var errs []error
	for _, r := range rs {
		callCtx, cancel := s.callCtx(ctx)
		err := s.remote.Delete(callCtx, r.item.ID)
		cancel()
		if err != nil {
			failed = append(failed, r)
			errs = append(errs, fmt.Errorf("deleting notification %s: %w", r.item.ID, err))
		}
	}

	if len(failed) > 0 {
		s.reinsert(failed)
		s.log.Warn().Int("failed", len(failed)).Int("total", len(rs)).Msg("clear all partially reverted")
		return errors.Join(errs...)
	}
	return nil
}

// Delete removes id, on the server too when server deletes are enabled.
func (s *Store) Delete(ctx context.Context, id string) error {
	if s.deleteOnServer {
		return s.RemoveOnServer(ctx, id)
	}
	s.RemoveNotification(id)
	return nil
}

// DeleteAll clears the list, on the server too when server deletes are
// enabled.
func (s *Store) DeleteAll(ctx context.Context) error {
	if s.deleteOnServer {
		return s.ClearAllOnServer(ctx)
	}
	s.ClearAll()
	return nil
}

// DeletesOnServer reports which delete variant Delete and DeleteAll use.
func (s *Store) DeletesOnServer() bool {
	return s.deleteOnServer
}
