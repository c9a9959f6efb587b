// Package cache provides translation cache stores keyed by content hash and
// target locale.
package cache

import (
	"context"

	"github.com/ZaguanLabs/lazytl"
)

// Store is the persistent translation cache consumed by lazytl.Translator.
type Store = lazytl.Store

// Scanner is implemented by stores that can enumerate their entries, which
// export needs.
type Scanner interface {
	// Scan calls fn for every live entry. Iteration stops at the first
	// error returned by fn.
	Scan(ctx context.Context, fn func(lazytl.CacheEntry) error) error
}

// dedupeEntries keeps the last entry written for each key, in first-seen
// order. Bulk upserts must not touch the same row twice in one statement.
func dedupeEntries(entries []lazytl.CacheEntry) []lazytl.CacheEntry {
	pos := make(map[lazytl.CacheKey]int, len(entries))
	out := make([]lazytl.CacheEntry, 0, len(entries))
	for _, e := range entries {
		if i, ok := pos[e.Key()]; ok {
			out[i] = e
			continue
		}
		pos[e.Key()] = len(out)
		out = append(out, e)
	}
	return out
}

// dedupeKeys drops repeated keys, preserving order.
func dedupeKeys(keys []lazytl.CacheKey) []lazytl.CacheKey {
	seen := make(map[lazytl.CacheKey]bool, len(keys))
	out := make([]lazytl.CacheKey, 0, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
