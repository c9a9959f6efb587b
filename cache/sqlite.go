package cache

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.trai.ch/zerr"
	_ "modernc.org/sqlite"

	"github.com/ZaguanLabs/lazytl"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

// sqliteMaxKeys bounds the number of keys per SELECT to stay well below
// SQLite's host parameter limit.
const sqliteMaxKeys = 400

// SQLiteStore keeps the translation cache in a local SQLite file. It suits
// single-node installations and development.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// OpenSQLiteStore opens (creating if needed) the SQLite database at path and
// applies the schema.
func OpenSQLiteStore(path string, ttl time.Duration) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, zerr.New("sqlite path is required")
	}

	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, zerr.Wrap(err, "open sqlite db failed")
	}
	// One connection serialises writers and avoids SQLITE_BUSY between them.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, zerr.With(zerr.Wrap(err, "ping sqlite db failed"), "path", path)
	}
	if err := applySQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if ttl < 0 {
		ttl = 0
	}
	return &SQLiteStore{db: db, ttl: ttl, now: time.Now}, nil
}

// applySQLiteSchema runs the embedded schema files in name order. Every
// statement is idempotent.
func applySQLiteSchema(db *sql.DB) error {
	files, err := fs.Glob(sqliteMigrations, "migrations/sqlite/*.sql")
	if err != nil {
		return zerr.Wrap(err, "read sqlite migrations failed")
	}
	sort.Strings(files)

	for _, name := range files {
		content, err := fs.ReadFile(sqliteMigrations, name)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "read sqlite migration failed"), "file", name)
		}
		if _, err := db.Exec(string(content)); err != nil {
			return zerr.With(zerr.Wrap(err, "apply sqlite migration failed"), "file", name)
		}
	}
	return nil
}

// cutoff returns the oldest live updated_at in unix millis, or 0 without TTL.
func (s *SQLiteStore) cutoff() int64 {
	if s.ttl == 0 {
		return 0
	}
	return s.now().Add(-s.ttl).UnixMilli()
}

// GetMany looks keys up with row-value IN queries, one per batch of keys.
func (s *SQLiteStore) GetMany(ctx context.Context, keys []lazytl.CacheKey) ([]lazytl.CacheEntry, error) {
	keys = dedupeKeys(keys)
	out := make([]lazytl.CacheEntry, 0, len(keys))

	for start := 0; start < len(keys); start += sqliteMaxKeys {
		batch := keys[start:min(start+sqliteMaxKeys, len(keys))]

		args := make([]any, 0, len(batch)*2+1)
		args = append(args, s.cutoff())
		placeholders := make([]string, len(batch))
		for i, k := range batch {
			placeholders[i] = "(?, ?)"
			args = append(args, k.ContentHash, string(k.TargetLocale))
		}

		query := fmt.Sprintf(`SELECT content_hash, target_locale, source_excerpt, translated_text
FROM translation_cache
WHERE updated_at >= ? AND (content_hash, target_locale) IN (VALUES %s)`, strings.Join(placeholders, ", "))

		entries, err := s.query(ctx, query, args...)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "sqlite select failed"), "keys", len(batch))
		}
		out = append(out, entries...)
	}
	return out, nil
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]lazytl.CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []lazytl.CacheEntry
	for rows.Next() {
		var e lazytl.CacheEntry
		var locale string
		if err := rows.Scan(&e.ContentHash, &locale, &e.SourceExcerpt, &e.TranslatedText); err != nil {
			return nil, err
		}
		e.TargetLocale = lazytl.Locale(locale)
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertMany writes entries in a single transaction.
func (s *SQLiteStore) UpsertMany(ctx context.Context, entries []lazytl.CacheEntry) error {
	entries = dedupeEntries(entries)
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return zerr.Wrap(err, "sqlite begin failed")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO translation_cache
  (content_hash, target_locale, source_excerpt, translated_text, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (content_hash, target_locale) DO UPDATE
SET source_excerpt = excluded.source_excerpt,
    translated_text = excluded.translated_text,
    updated_at = excluded.updated_at`)
	if err != nil {
		return zerr.Wrap(err, "sqlite prepare failed")
	}
	defer stmt.Close()

	now := s.now().UnixMilli()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ContentHash, string(e.TargetLocale), e.SourceExcerpt, e.TranslatedText, now); err != nil {
			return zerr.With(zerr.Wrap(err, "sqlite upsert failed"), "entries", len(entries))
		}
	}

	if err := tx.Commit(); err != nil {
		return zerr.Wrap(err, "sqlite commit failed")
	}
	return nil
}

// Scan calls fn for every live row. Rows are read fully before fn runs, so
// fn may write to the store.
func (s *SQLiteStore) Scan(ctx context.Context, fn func(lazytl.CacheEntry) error) error {
	entries, err := s.query(ctx, `SELECT content_hash, target_locale, source_excerpt, translated_text
FROM translation_cache
WHERE updated_at >= ?
ORDER BY target_locale, content_hash`, s.cutoff())
	if err != nil {
		return zerr.Wrap(err, "sqlite scan failed")
	}

	for _, e := range entries {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var (
	_ Store   = (*SQLiteStore)(nil)
	_ Scanner = (*SQLiteStore)(nil)
)
