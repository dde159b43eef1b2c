package cache

import (
	"context"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

// DefaultMemoryEntries bounds a [MemoryCache] opened by [Open].
const DefaultMemoryEntries = 512

// MemoryCache is an in-process LRU cache with per-entry expiry. It is safe
// for concurrent use.
type MemoryCache struct {
	mu     sync.Mutex
	lru    *lru.Cache
	now    func() time.Time
	closed bool
}

type memEntry struct {
	data    []byte
	expires time.Time
}

// NewMemoryCache returns a cache holding at most maxEntries values. Zero
// means unbounded.
func NewMemoryCache(maxEntries int) *MemoryCache {
	return &MemoryCache{lru: lru.New(maxEntries), now: time.Now}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, false, ErrClosed
	}
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	e := v.(memEntry)
	if !e.expires.IsZero() && c.now().After(e.expires) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	return e.data, true, nil
}

// Set stores a copy of data.
func (c *MemoryCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	e := memEntry{data: append([]byte(nil), data...)}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.lru.Add(key, e)
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
	return nil
}

func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Clear()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.lru.Clear()
	return nil
}

var _ Cache = (*MemoryCache)(nil)
