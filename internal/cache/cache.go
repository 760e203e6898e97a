// Package cache implements a fixed-capacity LRU map from string keys to
// timestamped JSON values. The cache is a dumb store: entries are returned
// regardless of age, and freshness policy lives with the caller.
package cache

import (
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// Entry is a cached value stamped with its insertion time. The cache owns
// its entries; callers always receive copies.
type Entry struct {
	Value      json.RawMessage
	InsertedAt time.Time
}

func (e Entry) clone() Entry {
	v := make(json.RawMessage, len(e.Value))
	copy(v, e.Value)
	return Entry{Value: v, InsertedAt: e.InsertedAt}
}

// Age returns how long the entry has been in the cache.
func (e Entry) Age() time.Duration {
	return time.Since(e.InsertedAt)
}

// Store is the contract shared by both cache variants. Put inserts or
// replaces an entry stamped with the current time, evicting the
// least-recently-used entry once capacity is exceeded. Get returns a copy of
// the entry whether or not it has expired. Pop removes and returns an entry.
// Acquire takes a lock handle for multi-step operations (see Handle).
type Store interface {
	Put(key string, value json.RawMessage)
	Get(key string) (Entry, bool)
	Pop(key string) (Entry, bool)
	Acquire(mode Mode) *Handle
}

// node is one key inside the recency list. A doubly-linked list tracks usage
// order so moves and evictions are O(1).
type node struct {
	key   string
	entry Entry
	prev  *node
	next  *node
}

// lruMap is the unsynchronized core shared by both variants. Head is the
// most recently used key, tail the least.
type lruMap struct {
	capacity int
	nodes    map[string]*node
	head     *node
	tail     *node
}

func newLRUMap(capacity int) *lruMap {
	if capacity < 1 {
		capacity = 1
	}
	return &lruMap{
		capacity: capacity,
		nodes:    make(map[string]*node, capacity),
	}
}

func (l *lruMap) put(key string, value json.RawMessage) {
	entry := Entry{Value: value, InsertedAt: time.Now()}.clone()
	if n, ok := l.nodes[key]; ok {
		n.entry = entry
		l.moveToFront(n)
		return
	}
	n := &node{key: key, entry: entry}
	l.nodes[key] = n
	l.addFront(n)
	if len(l.nodes) > l.capacity {
		l.evict()
	}
}

// get refreshes recency when refresh is true. The shared-read path of RWCache
// passes false because it must not mutate the list under a read lock.
func (l *lruMap) get(key string, refresh bool) (Entry, bool) {
	n, ok := l.nodes[key]
	if !ok {
		return Entry{}, false
	}
	if refresh {
		l.moveToFront(n)
	}
	return n.entry.clone(), true
}

func (l *lruMap) pop(key string) (Entry, bool) {
	n, ok := l.nodes[key]
	if !ok {
		return Entry{}, false
	}
	l.remove(n)
	delete(l.nodes, key)
	return n.entry, true
}

func (l *lruMap) evict() {
	if l.tail == nil {
		return
	}
	k := l.tail.key
	l.remove(l.tail)
	delete(l.nodes, k)
}

func (l *lruMap) addFront(n *node) {
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
}

func (l *lruMap) remove(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (l *lruMap) moveToFront(n *node) {
	if l.head == n {
		return
	}
	l.remove(n)
	l.addFront(n)
}

func (l *lruMap) len() int {
	return len(l.nodes)
}

// MutexCache serializes every access behind a single exclusive lock. Suited
// to write-heavy or low-contention use.
type MutexCache struct {
	mu    sync.Mutex
	inner *lruMap
}

// NewMutexCache creates a MutexCache holding at most capacity entries.
func NewMutexCache(capacity int) *MutexCache {
	return &MutexCache{inner: newLRUMap(capacity)}
}

// Put inserts or replaces an entry stamped with the current time.
func (c *MutexCache) Put(key string, value json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.put(key, value)
}

// Get returns a copy of the entry regardless of expiry.
func (c *MutexCache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.get(key, true)
}

// Pop removes and returns an entry.
func (c *MutexCache) Pop(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.pop(key)
}

// Acquire locks the cache and returns a handle. Both modes take the same
// exclusive lock here; a mutex has no shared discipline to offer, so even a
// Shared request yields a handle that permits writes.
func (c *MutexCache) Acquire(_ Mode) *Handle {
	c.mu.Lock()
	return &Handle{mode: Exclusive, inner: c.inner, release: c.mu.Unlock}
}

// Len reports the number of live entries.
func (c *MutexCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.len()
}

// RWCache allows concurrent readers and serializes writers. Intended for
// read-heavy load. Reads under the shared lock do not refresh recency;
// recency advances on writes only.
type RWCache struct {
	mu    sync.RWMutex
	inner *lruMap
}

// NewRWCache creates an RWCache holding at most capacity entries.
func NewRWCache(capacity int) *RWCache {
	return &RWCache{inner: newLRUMap(capacity)}
}

// Put inserts or replaces an entry stamped with the current time.
func (c *RWCache) Put(key string, value json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.put(key, value)
}

// Get returns a copy of the entry regardless of expiry.
func (c *RWCache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inner.get(key, false)
}

// Pop removes and returns an entry.
func (c *RWCache) Pop(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.pop(key)
}

// Acquire locks the cache in the requested mode. A Shared handle rejects
// mutation with ErrReadOnlyHandle rather than corrupting state.
func (c *RWCache) Acquire(mode Mode) *Handle {
	if mode == Shared {
		c.mu.RLock()
		return &Handle{mode: Shared, inner: c.inner, release: c.mu.RUnlock}
	}
	c.mu.Lock()
	return &Handle{mode: Exclusive, inner: c.inner, release: c.mu.Unlock}
}

// Len reports the number of live entries.
func (c *RWCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inner.len()
}
