package store

import (
	"context"
	"time"

	"github.com/jonoseba/portal/internal/model"
)

// NotificationNamespace is the key the notification snapshot is stored under.
const NotificationNamespace = "notification-store"

// CacheEntry is one cached API response.
type CacheEntry struct {
	Key       string    `db:"key"`
	Payload   []byte    `db:"payload"`
	FetchedAt time.Time `db:"fetched_at"`
}

// Stale reports whether the entry is older than maxAge at now.
func (e *CacheEntry) Stale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(e.FetchedAt) >= maxAge
}

// Store defines the local persistence used by the client: the notification
// snapshot and the query cache for paginated collections.
type Store interface {
	// === Notification snapshot ===

	SaveNotifications(ctx context.Context, namespace string, items []model.Notification) error
	LoadNotifications(ctx context.Context, namespace string) ([]model.Notification, error)
	ClearNotifications(ctx context.Context, namespace string) error

	// === Query cache ===

	GetCached(ctx context.Context, key string) (*CacheEntry, error)
	PutCached(ctx context.Context, key string, payload []byte, fetchedAt time.Time) error
	PurgeCache(ctx context.Context) error

	Close() error
}
