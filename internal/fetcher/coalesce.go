package fetcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"newsfetcher/internal/cache"
)

// Producer computes a fresh value on a cache miss, typically by an outbound
// HTTP call.
type Producer func(ctx context.Context) (json.RawMessage, error)

// FetchOrCompute returns the cached value for key when its age is below ttl.
// Otherwise it evicts the stale entry if one exists, invokes producer, stores
// the result, and returns it. A producer failure propagates unchanged and
// caches nothing.
//
// The cache lock is held only for the lookup and for the store, never across
// the producer call. Two concurrent misses on the same key may therefore
// both invoke the producer; the later result wins. That duplication is
// accepted in exchange for not serializing unrelated fetches behind one lock.
func FetchOrCompute(ctx context.Context, store cache.Store, key string, producer Producer, ttl time.Duration) (json.RawMessage, error) {
	h := store.Acquire(cache.Exclusive)
	if entry, ok := h.Get(key); ok {
		if entry.Age() < ttl {
			h.Release()
			slog.Debug("cache hit", "key", key)
			return entry.Value, nil
		}
		// Expired: behaves as a miss.
		h.Pop(key)
		slog.Debug("cache entry expired", "key", key, "age", entry.Age())
	}
	h.Release()

	slog.Debug("cache miss, fetching", "key", key)
	value, err := producer(ctx)
	if err != nil {
		return nil, err
	}
	store.Put(key, value)
	return value, nil
}
