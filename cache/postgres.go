package cache

import (
	"context"
	"embed"
	"errors"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.trai.ch/zerr"

	"github.com/ZaguanLabs/lazytl"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

const (
	pgSelectMany = `
SELECT c.content_hash, c.target_locale, c.source_excerpt, c.translated_text
FROM translation_cache AS c
JOIN unnest($1::text[], $2::text[]) AS k(content_hash, target_locale)
  ON c.content_hash = k.content_hash AND c.target_locale = k.target_locale
WHERE $3::bigint = 0 OR c.updated_at > now() - make_interval(secs => $3::bigint)`

	pgUpsertMany = `
INSERT INTO translation_cache (content_hash, target_locale, source_excerpt, translated_text)
SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::text[])
ON CONFLICT (content_hash, target_locale) DO UPDATE
SET source_excerpt = EXCLUDED.source_excerpt,
    translated_text = EXCLUDED.translated_text,
    updated_at = now()`

	pgScan = `
SELECT content_hash, target_locale, source_excerpt, translated_text
FROM translation_cache
WHERE $1::bigint = 0 OR updated_at > now() - make_interval(secs => $1::bigint)
ORDER BY target_locale, content_hash`
)

// PostgresStore keeps the translation cache in the translation_cache table.
// It is the shared store for multi-instance deployments.
type PostgresStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewPostgresStore opens a connection pool for dsn and verifies it. The
// schema must already exist; see MigratePostgres.
func NewPostgresStore(ctx context.Context, dsn string, ttl time.Duration) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, zerr.Wrap(err, "postgres pool init failed")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, zerr.Wrap(err, "postgres ping failed")
	}
	return NewPostgresStoreFromPool(pool, ttl), nil
}

// NewPostgresStoreFromPool wraps an existing pool.
func NewPostgresStoreFromPool(pool *pgxpool.Pool, ttl time.Duration) *PostgresStore {
	if ttl < 0 {
		ttl = 0
	}
	return &PostgresStore{pool: pool, ttl: ttl}
}

func (s *PostgresStore) ttlSeconds() int64 {
	return int64(s.ttl / time.Second)
}

// GetMany looks up all keys with one query joined against unnested arrays.
func (s *PostgresStore) GetMany(ctx context.Context, keys []lazytl.CacheKey) ([]lazytl.CacheEntry, error) {
	keys = dedupeKeys(keys)
	if len(keys) == 0 {
		return nil, nil
	}

	hashes := make([]string, len(keys))
	locales := make([]string, len(keys))
	for i, k := range keys {
		hashes[i] = k.ContentHash
		locales[i] = string(k.TargetLocale)
	}

	rows, err := s.pool.Query(ctx, pgSelectMany, hashes, locales, s.ttlSeconds())
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "postgres select failed"), "keys", len(keys))
	}
	defer rows.Close()

	out := make([]lazytl.CacheEntry, 0, len(keys))
	for rows.Next() {
		var e lazytl.CacheEntry
		var locale string
		if err := rows.Scan(&e.ContentHash, &locale, &e.SourceExcerpt, &e.TranslatedText); err != nil {
			return nil, zerr.Wrap(err, "postgres row scan failed")
		}
		e.TargetLocale = lazytl.Locale(locale)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "postgres select failed"), "keys", len(keys))
	}
	return out, nil
}

// UpsertMany inserts entries in one statement. Existing rows are
// overwritten, so concurrent writers of the same key both succeed.
func (s *PostgresStore) UpsertMany(ctx context.Context, entries []lazytl.CacheEntry) error {
	entries = dedupeEntries(entries)
	if len(entries) == 0 {
		return nil
	}

	hashes := make([]string, len(entries))
	locales := make([]string, len(entries))
	excerpts := make([]string, len(entries))
	texts := make([]string, len(entries))
	for i, e := range entries {
		hashes[i] = e.ContentHash
		locales[i] = string(e.TargetLocale)
		excerpts[i] = e.SourceExcerpt
		texts[i] = e.TranslatedText
	}

	if _, err := s.pool.Exec(ctx, pgUpsertMany, hashes, locales, excerpts, texts); err != nil {
		return zerr.With(zerr.Wrap(err, "postgres upsert failed"), "entries", len(entries))
	}
	return nil
}

// Scan streams every live row to fn.
func (s *PostgresStore) Scan(ctx context.Context, fn func(lazytl.CacheEntry) error) error {
	rows, err := s.pool.Query(ctx, pgScan, s.ttlSeconds())
	if err != nil {
		return zerr.Wrap(err, "postgres scan failed")
	}
	defer rows.Close()

	for rows.Next() {
		var e lazytl.CacheEntry
		var locale string
		if err := rows.Scan(&e.ContentHash, &locale, &e.SourceExcerpt, &e.TranslatedText); err != nil {
			return zerr.Wrap(err, "postgres row scan failed")
		}
		e.TargetLocale = lazytl.Locale(locale)
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close closes the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// MigratePostgres applies the embedded schema migrations to the database at
// dsn and returns the resulting schema version.
func MigratePostgres(dsn string) (uint, error) {
	src, err := iofs.New(postgresMigrations, "migrations/postgres")
	if err != nil {
		return 0, zerr.Wrap(err, "migration source init failed")
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return 0, zerr.Wrap(err, "migration init failed")
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, zerr.Wrap(err, "migration up failed")
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, zerr.Wrap(err, "migration version lookup failed")
	}
	if dirty {
		return version, zerr.With(zerr.New("schema is dirty"), "version", version)
	}
	return version, nil
}

var (
	_ Store   = (*PostgresStore)(nil)
	_ Scanner = (*PostgresStore)(nil)
)
