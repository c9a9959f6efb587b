package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.trai.ch/zerr"

	"github.com/ZaguanLabs/lazytl"
)

// DefaultKeyPrefix prefixes every key written by RedisStore.
const DefaultKeyPrefix = "lazytl:"

// scanCount is the COUNT hint passed to SCAN during export.
const scanCount = 500

// RedisStore is a Redis-backed translation cache. Each entry is one string
// key, "<prefix><hash>:<locale>", holding a small JSON document.
type RedisStore struct {
	client    redis.UniversalClient
	ttl       time.Duration
	keyPrefix string
}

// RedisConfig holds configuration for the Redis store.
type RedisConfig struct {
	URL       string        // Redis connection URL (e.g., "redis://localhost:6379/0")
	TTL       time.Duration // Zero means no expiration
	KeyPrefix string        // Default: "lazytl:"
}

// redisValue is the stored form of an entry.
type redisValue struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, zerr.Wrap(err, "invalid redis url")
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, zerr.With(zerr.Wrap(err, "redis ping failed"), "addr", opts.Addr)
	}

	return NewRedisStoreFromClient(client, cfg.TTL, cfg.KeyPrefix), nil
}

// NewRedisStoreFromClient creates a RedisStore from an existing client.
func NewRedisStoreFromClient(client redis.UniversalClient, ttl time.Duration, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{
		client:    client,
		ttl:       ttl,
		keyPrefix: keyPrefix,
	}
}

func (s *RedisStore) key(k lazytl.CacheKey) string {
	return s.keyPrefix + k.ContentHash + ":" + string(k.TargetLocale)
}

// parseKey reverses key. It reports false for keys not written by this store.
func (s *RedisStore) parseKey(raw string) (lazytl.CacheKey, bool) {
	rest, ok := strings.CutPrefix(raw, s.keyPrefix)
	if !ok {
		return lazytl.CacheKey{}, false
	}
	hash, locale, ok := strings.Cut(rest, ":")
	if !ok || hash == "" || locale == "" {
		return lazytl.CacheKey{}, false
	}
	return lazytl.CacheKey{ContentHash: hash, TargetLocale: lazytl.Locale(locale)}, true
}

// GetMany fetches all keys with a single MGET.
func (s *RedisStore) GetMany(ctx context.Context, keys []lazytl.CacheKey) ([]lazytl.CacheEntry, error) {
	keys = dedupeKeys(keys)
	if len(keys) == 0 {
		return nil, nil
	}

	raw := make([]string, len(keys))
	for i, k := range keys {
		raw[i] = s.key(k)
	}

	vals, err := s.client.MGet(ctx, raw...).Result()
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "redis mget failed"), "keys", len(keys))
	}

	return decodeValues(keys, vals), nil
}

// decodeValues pairs MGET results with their keys. Missing and malformed
// values are skipped.
func decodeValues(keys []lazytl.CacheKey, vals []any) []lazytl.CacheEntry {
	out := make([]lazytl.CacheEntry, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok || i >= len(keys) {
			continue
		}
		var rv redisValue
		if err := json.Unmarshal([]byte(str), &rv); err != nil {
			continue
		}
		out = append(out, lazytl.CacheEntry{
			ContentHash:    keys[i].ContentHash,
			TargetLocale:   keys[i].TargetLocale,
			SourceExcerpt:  rv.Source,
			TranslatedText: rv.Text,
		})
	}
	return out
}

// UpsertMany writes entries in one pipelined round trip. SET is last-write-
// wins, so concurrent writers of the same key never conflict.
func (s *RedisStore) UpsertMany(ctx context.Context, entries []lazytl.CacheEntry) error {
	entries = dedupeEntries(entries)
	if len(entries) == 0 {
		return nil
	}

	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			payload, err := json.Marshal(redisValue{Text: e.TranslatedText, Source: e.SourceExcerpt})
			if err != nil {
				return err
			}
			pipe.Set(ctx, s.key(e.Key()), string(payload), s.ttl)
		}
		return nil
	})
	if err != nil {
		return zerr.With(zerr.Wrap(err, "redis pipelined set failed"), "entries", len(entries))
	}
	return nil
}

// Scan walks the key space under the store prefix with SCAN and fetches
// values page by page.
func (s *RedisStore) Scan(ctx context.Context, fn func(lazytl.CacheEntry) error) error {
	var cursor uint64
	for {
		rawKeys, next, err := s.client.Scan(ctx, cursor, s.keyPrefix+"*", scanCount).Result()
		if err != nil {
			return zerr.Wrap(err, "redis scan failed")
		}

		var keys []lazytl.CacheKey
		var raw []string
		for _, rk := range rawKeys {
			if k, ok := s.parseKey(rk); ok {
				keys = append(keys, k)
				raw = append(raw, rk)
			}
		}

		if len(raw) > 0 {
			vals, err := s.client.MGet(ctx, raw...).Result()
			if err != nil {
				return zerr.With(zerr.Wrap(err, "redis mget failed"), "keys", len(raw))
			}
			for _, e := range decodeValues(keys, vals) {
				if err := fn(e); err != nil {
					return err
				}
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Ping tests the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	err := s.client.Close()
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}

var (
	_ Store   = (*RedisStore)(nil)
	_ Scanner = (*RedisStore)(nil)
)
