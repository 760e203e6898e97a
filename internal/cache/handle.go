package cache

import (
	"errors"

	"github.com/goccy/go-json"
)

// ErrReadOnlyHandle is returned when a mutation is attempted through a
// shared-read handle.
var ErrReadOnlyHandle = errors.New("cache: cannot modify data through a shared-read handle; acquire an exclusive handle instead")

// Mode selects the locking discipline for Acquire.
type Mode int

const (
	// Shared grants concurrent read access. Mutations fail fast.
	Shared Mode = iota
	// Exclusive grants sole read/write access.
	Exclusive
)

// Handle is a held lock over the cache's internal map. It lets callers run
// several operations under one critical section, e.g. a freshness check
// followed by an eviction. Release must be called exactly once; the usual
// shape is
//
//	h := store.Acquire(cache.Exclusive)
//	defer h.Release()
type Handle struct {
	mode     Mode
	inner    *lruMap
	release  func()
	released bool
}

// Get returns a copy of the entry regardless of expiry. Under a shared
// handle the recency order is left untouched.
func (h *Handle) Get(key string) (Entry, bool) {
	return h.inner.get(key, h.mode == Exclusive)
}

// Put inserts or replaces an entry. Fails with ErrReadOnlyHandle on a
// shared handle.
func (h *Handle) Put(key string, value json.RawMessage) error {
	if h.mode != Exclusive {
		return ErrReadOnlyHandle
	}
	h.inner.put(key, value)
	return nil
}

// Pop removes and returns an entry. Fails with ErrReadOnlyHandle on a
// shared handle.
func (h *Handle) Pop(key string) (Entry, bool, error) {
	if h.mode != Exclusive {
		return Entry{}, false, ErrReadOnlyHandle
	}
	e, ok := h.inner.pop(key)
	return e, ok, nil
}

// Release unlocks the cache. Safe to call once; subsequent calls are no-ops.
func (h *Handle) Release() {
	if h.released {
		return
	}
	h.released = true
	h.release()
}
