// Package toolkit bundles the reliability primitives the engine wraps around
// provider calls: response caching, rate limiting, retry with backoff, a
// circuit breaker, checkpointing, and bounded fan-out.
package toolkit

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

// CacheKey derives a stable key from a function name and its arguments.
// Arguments are JSON-encoded; encoding/json sorts map keys, so logically
// equal argument sets hash identically.
func CacheKey(function string, args any) string {
	h := sha256.New()
	h.Write([]byte(function))
	h.Write([]byte{0})
	if args != nil {
		b, err := json.Marshal(args)
		if err == nil {
			h.Write(b)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

type cacheEntry struct {
	key     string
	value   any
	expires time.Time
}

// Cache is a bounded LRU with per-entry TTL. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	order   *list.List
	items   map[string]*list.Element
	now     func() time.Time

	hits   int64
	misses int64
}

// CacheOptions configure NewCache.
type CacheOptions struct {
	MaxSize int
	TTL     time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewCache builds a cache. Defaults: 128 entries, 1 hour TTL.
func NewCache(optFns ...func(o *CacheOptions)) *Cache {
	opts := CacheOptions{MaxSize: 128, TTL: time.Hour, Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Cache{
		maxSize: opts.MaxSize,
		ttl:     opts.TTL,
		order:   list.New(),
		items:   make(map[string]*list.Element),
		now:     opts.Now,
	}
}

// Get returns the cached value for key, if present and unexpired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if c.now().After(entry.expires) {
		c.order.Remove(el)
		delete(c.items, key)
		c.misses++
		return nil, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return entry.value, true
}

// Set stores value under key, evicting the least recently used entry when the
// cache is full.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.value = value
		entry.expires = c.now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}
	for c.order.Len() >= c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
	el := c.order.PushFront(&cacheEntry{key: key, value: value, expires: c.now().Add(c.ttl)})
	c.items[key] = el
}

// Len reports the number of entries currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats reports cumulative hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Cached wraps fn so equal (function, args) pairs within the TTL window
// invoke fn once and share the result. Errors are never cached.
func Cached[A any, R any](c *Cache, function string, fn func(A) (R, error)) func(A) (R, error) {
	return func(arg A) (R, error) {
		key := CacheKey(function, arg)
		if v, ok := c.Get(key); ok {
			return v.(R), nil
		}
		out, err := fn(arg)
		if err != nil {
			return out, err
		}
		c.Set(key, out)
		return out, nil
	}
}
