package infra

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultMaxCacheEntries bounds a cache created with a non-positive size
	DefaultMaxCacheEntries = 1000

	// DefaultCacheCleanup is how often expired entries are swept
	DefaultCacheCleanup = 5 * time.Minute
)

// Clock returns the current time. Tests replace it to move time forward.
type Clock func() time.Time

type cacheEntry[V any] struct {
	value      V
	expiresAt  time.Time
	accessedAt time.Time
}

// Cache is a size-bounded LRU cache whose entries expire after a TTL.
// It is safe for concurrent use.
type Cache[V any] struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry[V]
	maxEntries int
	now        Clock

	stopCh   chan struct{}
	stopOnce sync.Once
}

// CacheOption configures a Cache
type CacheOption func(*cacheConfig)

type cacheConfig struct {
	now     Clock
	cleanup time.Duration
}

// WithCacheClock sets the clock used for expiry and LRU bookkeeping
func WithCacheClock(now Clock) CacheOption {
	return func(c *cacheConfig) {
		c.now = now
	}
}

// WithCleanupInterval sets how often expired entries are swept. Zero disables the sweeper.
func WithCleanupInterval(d time.Duration) CacheOption {
	return func(c *cacheConfig) {
		c.cleanup = d
	}
}

// NewCache creates a cache holding at most maxEntries values
func NewCache[V any](maxEntries int, opts ...CacheOption) *Cache[V] {
	cfg := cacheConfig{now: time.Now, cleanup: DefaultCacheCleanup}
	for _, opt := range opts {
		opt(&cfg)
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxCacheEntries
	}

	c := &Cache[V]{
		entries:    make(map[string]*cacheEntry[V]),
		maxEntries: maxEntries,
		now:        cfg.now,
		stopCh:     make(chan struct{}),
	}
	if cfg.cleanup > 0 {
		go c.cleanupLoop(cfg.cleanup)
	}
	return c
}

// Get returns the value for key if present and not expired
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	now := c.now()
	if !now.Before(e.expiresAt) {
		delete(c.entries, key)
		return zero, false
	}
	e.accessedAt = now
	return e.value, true
}

// Set stores value under key for ttl, evicting the least recently used
// entries when the cache is full.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = &cacheEntry[V]{value: value, expiresAt: now.Add(ttl), accessedAt: now}

	if over := len(c.entries) - c.maxEntries; over > 0 {
		c.evictLocked(over)
	}
}

// Delete removes key
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// DeletePrefix removes every key starting with prefix
func (c *Cache[V]) DeletePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

// Size returns the number of stored entries, expired ones included until swept
func (c *Cache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the background sweeper
func (c *Cache[V]) Close() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

func (c *Cache[V]) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep drops expired entries
func (c *Cache[V]) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

func (c *Cache[V]) evictLocked(n int) {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.entries[keys[i]].accessedAt.Before(c.entries[keys[j]].accessedAt)
	})
	for _, k := range keys[:n] {
		delete(c.entries, k)
	}
}
