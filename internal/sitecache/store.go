// Package sitecache stores raw siteinfo responses keyed by API endpoint.
//
// Stores only record when an entry was written; deciding whether an entry is
// still fresh is the caller's job.
package sitecache

import (
	"context"
	"time"

	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/infra"
)

// Entry is a cached siteinfo blob and the time it was written.
type Entry struct {
	Blob      []byte
	UpdatedAt time.Time
}

// Store is the site metadata cache contract. Upsert is last-writer-wins and
// assigns UpdatedAt itself.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Upsert(ctx context.Context, key string, blob []byte) error
}

// MemoryRetention is how long the in-memory store keeps an entry. It is longer
// than the resolver's freshness window so stale entries are still visible as stale.
const MemoryRetention = 24 * time.Hour

// MemoryStore keeps entries in an expiring LRU cache. Contents are lost on exit.
type MemoryStore struct {
	cache *infra.Cache[Entry]
	now   infra.Clock
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// WithClock sets the clock used to stamp entries
func WithClock(now infra.Clock) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an in-memory store holding up to maxEntries sites.
func NewMemoryStore(maxEntries int, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = infra.NewCache[Entry](maxEntries, infra.WithCacheClock(s.now))
	return s
}

// Get returns the entry for key.
func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	e, ok := s.cache.Get(key)
	return e, ok, nil
}

// Upsert stores blob under key stamped with the current time.
func (s *MemoryStore) Upsert(_ context.Context, key string, blob []byte) error {
	s.cache.Set(key, Entry{Blob: append([]byte(nil), blob...), UpdatedAt: s.now()}, MemoryRetention)
	return nil
}

// Len returns the number of cached sites.
func (s *MemoryStore) Len() int {
	return s.cache.Size()
}

// Close stops the cache sweeper.
func (s *MemoryStore) Close() error {
	s.cache.Close()
	return nil
}
