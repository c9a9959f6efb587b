package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ZaguanLabs/lazytl"
)

// memoryEntry holds a cached entry with its write time.
type memoryEntry struct {
	entry     lazytl.CacheEntry
	timestamp time.Time
}

// InMemoryStore is a thread-safe in-process store with optional TTL. It is
// meant for tests, the CLI and single-instance deployments.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[lazytl.CacheKey]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewInMemoryStore creates an in-memory store. A non-positive ttl means
// entries never expire.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	if ttl < 0 {
		ttl = 0
	}
	return &InMemoryStore{
		entries: make(map[lazytl.CacheKey]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *InMemoryStore) expired(e memoryEntry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.timestamp) > s.ttl
}

// GetMany returns the live entries for keys.
func (s *InMemoryStore) GetMany(ctx context.Context, keys []lazytl.CacheKey) ([]lazytl.CacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]lazytl.CacheEntry, 0, len(keys))
	for _, k := range dedupeKeys(keys) {
		e, ok := s.entries[k]
		if !ok || s.expired(e, now) {
			continue
		}
		out = append(out, e.entry)
	}
	return out, nil
}

// UpsertMany stores entries, overwriting existing keys.
func (s *InMemoryStore) UpsertMany(ctx context.Context, entries []lazytl.CacheEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		s.entries[e.Key()] = memoryEntry{entry: e, timestamp: now}
	}
	return nil
}

// Scan calls fn for every live entry. fn runs on a snapshot, so it may call
// back into the store.
func (s *InMemoryStore) Scan(ctx context.Context, fn func(lazytl.CacheEntry) error) error {
	now := s.now()
	s.mu.RLock()
	snapshot := make([]lazytl.CacheEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if !s.expired(e, now) {
			snapshot = append(snapshot, e.entry)
		}
	}
	s.mu.RUnlock()

	for _, e := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of entries in the store (including expired ones).
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes all entries.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[lazytl.CacheKey]memoryEntry)
}

var (
	_ Store   = (*InMemoryStore)(nil)
	_ Scanner = (*InMemoryStore)(nil)
)
