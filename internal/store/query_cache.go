package store

import (
	"context"
	"encoding/json"
	"time"
)

// DefaultStaleTime is how long a cached list page is served without refetching.
const DefaultStaleTime = 5 * time.Minute

// QueryCache serves API responses from the local cache while they are
// fresh and refetches them once they go stale.
type QueryCache struct {
	store  Store
	maxAge time.Duration
	now    func() time.Time
}

// NewQueryCache creates a cache over s. A non-positive maxAge disables
// serving from cache; responses are still recorded.
func NewQueryCache(s Store, maxAge time.Duration) *QueryCache {
	return &QueryCache{store: s, maxAge: maxAge, now: time.Now}
}

// Invalidate drops every cached response, forcing the next Fetch to hit
// the network.
func (q *QueryCache) Invalidate(ctx context.Context) error {
	return q.store.PurgeCache(ctx)
}

// Fetch returns the cached value for key if it is fresh, otherwise calls
// fetch and records its result. When fetch fails and a stale value is
// cached, that value is returned together with the error.
func Fetch[T any](ctx context.Context, q *QueryCache, key string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T

	entry, _ := q.store.GetCached(ctx, key)

	var cached *T
	if entry != nil {
		var v T
		if json.Unmarshal(entry.Payload, &v) == nil {
			cached = &v
			if q.maxAge > 0 && !entry.Stale(q.now(), q.maxAge) {
				return v, nil
			}
		}
	}

	v, err := fetch(ctx)
	if err != nil {
		if cached != nil {
			return *cached, err
		}
		return zero, err
	}

	// Cache writes are best effort.
	if payload, err := json.Marshal(v); err == nil {
		_ = q.store.PutCached(ctx, key, payload, q.now())
	}
	return v, nil
}
