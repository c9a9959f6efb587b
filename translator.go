package lazytl

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// DefaultBatchLimit is the per-call item limit used when neither the
// provider nor the caller declares one.
const DefaultBatchLimit = 50

// Provider is the interface for machine translation backends.
type Provider interface {
	// Translate returns one translation per request text, in order.
	// A failure applies to the whole batch; there are no per-item errors.
	Translate(ctx context.Context, req TranslateRequest) ([]string, error)
}

// BatchLimiter is implemented by providers with a hard per-call item limit.
type BatchLimiter interface {
	BatchLimit() int
}

// TranslateRequest contains the parameters for a translation request.
type TranslateRequest struct {
	Texts      []string
	TargetLang Locale
	SourceLang Locale // Optional; providers may auto-detect when empty
}

// Store is the interface for the persistent translation cache.
type Store interface {
	// GetMany returns the entries found for keys in a single round trip.
	// Missing keys are simply absent from the result.
	GetMany(ctx context.Context, keys []CacheKey) ([]CacheEntry, error)

	// UpsertMany writes entries, overwriting or ignoring existing keys.
	// Concurrent writers of the same key must not fail.
	UpsertMany(ctx context.Context, entries []CacheEntry) error
}

// Translator is the batch translation engine: cache lookup, chunked
// concurrent provider calls, ordered merge and asynchronous cache write-back.
type Translator struct {
	sourceLang   Locale
	provider     Provider
	store        Store
	writer       *Writer
	queueSize    int
	writeTimeout time.Duration
	logger       *slog.Logger
	tracer       trace.Tracer
	batchLimit   int
	maxChunks    int
	chunkTimeout time.Duration
	dedup        bool
	coalesce     bool
	flight       *singleflight.Group
}

// TranslatorOption is a functional option for configuring the Translator.
type TranslatorOption func(*Translator)

// WithStore sets the translation cache store. Without a store every call
// goes to the provider.
func WithStore(store Store) TranslatorOption {
	return func(t *Translator) {
		t.store = store
	}
}

// WithLogger sets the structured logger. The default discards output.
func WithLogger(logger *slog.Logger) TranslatorOption {
	return func(t *Translator) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithBatchLimit overrides the provider's per-call item limit.
func WithBatchLimit(n int) TranslatorOption {
	return func(t *Translator) {
		if n > 0 {
			t.batchLimit = n
		}
	}
}

// WithMaxConcurrentChunks caps how many provider chunks run at once.
// Zero means all chunks of a call are dispatched together.
func WithMaxConcurrentChunks(n int) TranslatorOption {
	return func(t *Translator) {
		t.maxChunks = n
	}
}

// WithChunkTimeout bounds each provider chunk call. A chunk that times out
// degrades to identity without affecting other chunks.
func WithChunkTimeout(d time.Duration) TranslatorOption {
	return func(t *Translator) {
		t.chunkTimeout = d
	}
}

// WithDedup controls whether identical uncached texts within one call are
// sent to the provider once and fanned out to every position.
func WithDedup(enabled bool) TranslatorOption {
	return func(t *Translator) {
		t.dedup = enabled
	}
}

// WithCoalescing makes concurrent calls that send an identical chunk to the
// provider share a single in-flight request.
func WithCoalescing(enabled bool) TranslatorOption {
	return func(t *Translator) {
		t.coalesce = enabled
	}
}

// WithWriteQueue sets the capacity of the asynchronous cache write queue and
// the timeout of each background store write.
func WithWriteQueue(size int, timeout time.Duration) TranslatorOption {
	return func(t *Translator) {
		t.queueSize = size
		t.writeTimeout = timeout
	}
}

// NewTranslator creates a Translator for content authored in sourceLang.
// A nil provider means no credential is configured: every call returns its
// input unchanged.
func NewTranslator(sourceLang Locale, provider Provider, opts ...TranslatorOption) *Translator {
	t := &Translator{
		sourceLang: sourceLang,
		provider:   provider,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:     otel.Tracer(Name),
		dedup:      true,
		flight:     &singleflight.Group{},
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.batchLimit == 0 {
		t.batchLimit = DefaultBatchLimit
		if bl, ok := provider.(BatchLimiter); ok && bl.BatchLimit() > 0 {
			t.batchLimit = bl.BatchLimit()
		}
	}

	if t.store != nil {
		t.writer = NewWriter(t.store, t.logger, t.queueSize, t.writeTimeout)
	}

	return t
}

// CallOption adjusts a single TranslateMany call.
type CallOption func(*callConfig)

type callConfig struct {
	sourceLang Locale
}

// FromLocale overrides the source locale for one call.
func FromLocale(l Locale) CallOption {
	return func(c *callConfig) {
		if l != "" {
			c.sourceLang = l
		}
	}
}

// TranslateMany translates texts into target and returns a slice of the
// same length and order. It never fails: texts that cannot be translated
// are returned unchanged.
func (t *Translator) TranslateMany(ctx context.Context, texts []string, target Locale, opts ...CallOption) []string {
	out, _ := t.TranslateManyStats(ctx, texts, target, opts...)
	return out
}

// TranslateManyStats is TranslateMany that also reports what happened.
func (t *Translator) TranslateManyStats(ctx context.Context, texts []string, target Locale, opts ...CallOption) ([]string, Stats) {
	cfg := callConfig{sourceLang: t.sourceLang}
	for _, opt := range opts {
		opt(&cfg)
	}

	stats := Stats{Total: len(texts)}

	// Translating into the source language is a no-op.
	if len(texts) == 0 || SameLanguage(target, cfg.sourceLang) {
		return texts, stats
	}

	ctx, span := t.tracer.Start(ctx, "lazytl.TranslateMany", trace.WithAttributes(
		attribute.String("lazytl.target_locale", string(target)),
		attribute.Int("lazytl.texts", len(texts)),
	))
	defer span.End()

	out := make([]string, len(texts))
	copy(out, texts)

	hashes := make([]string, len(texts))
	units := make([]TranslationUnit, 0, len(texts))
	for i, text := range texts {
		if IsBlank(text) {
			stats.Blank++
			continue
		}
		hashes[i] = HashText(text)
		units = append(units, TranslationUnit{Text: text, Index: i})
	}

	if len(units) == 0 {
		return out, stats
	}

	if t.provider == nil {
		t.logger.Warn("translation provider unavailable, returning source text",
			"component", "provider",
			"locale", string(target),
			"texts", len(units),
		)
		stats.Passthrough = len(units)
		return out, stats
	}

	hits := t.lookup(ctx, units, hashes, target)

	var misses []TranslationUnit
	for _, u := range units {
		if v, ok := hits[hashes[u.Index]]; ok {
			out[u.Index] = v
			stats.CacheHits++
			continue
		}
		misses = append(misses, u)
	}

	if len(misses) > 0 {
		pending := misses
		if t.dedup {
			pending = dedupeUnits(misses, hashes)
		}

		byIndex, calls, failed := t.scatter(ctx, splitChunks(pending, t.batchLimit), hashes, target, cfg.sourceLang)
		stats.ProviderCalls = calls
		stats.FailedChunks = failed

		byHash := make(map[string]string, len(byIndex))
		for idx, v := range byIndex {
			byHash[hashes[idx]] = v
		}

		for _, u := range misses {
			if v, ok := byIndex[u.Index]; ok {
				out[u.Index] = v
			} else if v, ok := byHash[hashes[u.Index]]; ok {
				out[u.Index] = v
			} else {
				stats.Passthrough++
				continue
			}
			stats.Translated++
		}
	}

	span.SetAttributes(
		attribute.Int("lazytl.cache_hits", stats.CacheHits),
		attribute.Int("lazytl.translated", stats.Translated),
		attribute.Int("lazytl.failed_chunks", stats.FailedChunks),
	)
	t.logger.Debug("translated batch",
		"locale", string(target),
		"texts", stats.Total,
		"blank", stats.Blank,
		"cache_hits", stats.CacheHits,
		"translated", stats.Translated,
		"passthrough", stats.Passthrough,
		"provider_calls", stats.ProviderCalls,
		"failed_chunks", stats.FailedChunks,
	)

	return out, stats
}

// lookup issues one multi-get for the distinct keys of units. A store
// failure is logged and treated as no hits.
func (t *Translator) lookup(ctx context.Context, units []TranslationUnit, hashes []string, target Locale) map[string]string {
	hits := make(map[string]string)
	if t.store == nil {
		return hits
	}

	seen := make(map[string]bool, len(units))
	keys := make([]CacheKey, 0, len(units))
	for _, u := range units {
		h := hashes[u.Index]
		if seen[h] {
			continue
		}
		seen[h] = true
		keys = append(keys, CacheKey{ContentHash: h, TargetLocale: target})
	}

	entries, err := t.store.GetMany(ctx, keys)
	if err != nil {
		t.logger.Error("cache read failed, translating without cache",
			"component", "cache",
			"locale", string(target),
			"keys", len(keys),
			"error", &CacheError{Op: "get", Keys: len(keys), Cause: err},
		)
		return hits
	}

	for _, e := range entries {
		if e.TargetLocale == target && seen[e.ContentHash] {
			hits[e.ContentHash] = e.TranslatedText
		}
	}
	return hits
}

// Close drains pending cache writes. It waits until ctx is done at most.
func (t *Translator) Close(ctx context.Context) error {
	if t.writer == nil {
		return nil
	}
	return t.writer.Close(ctx)
}

// Flush waits until every cache write queued so far has completed.
func (t *Translator) Flush(ctx context.Context) error {
	if t.writer == nil {
		return nil
	}
	return t.writer.Flush(ctx)
}

// SourceLang returns the source language.
func (t *Translator) SourceLang() Locale {
	return t.sourceLang
}

// BatchLimit returns the effective per-call item limit.
func (t *Translator) BatchLimit() int {
	return t.batchLimit
}

// Available reports whether a provider is configured.
func (t *Translator) Available() bool {
	return t.provider != nil
}

// dedupeUnits keeps the first unit of every distinct hash, in order.
func dedupeUnits(units []TranslationUnit, hashes []string) []TranslationUnit {
	seen := make(map[string]bool, len(units))
	out := make([]TranslationUnit, 0, len(units))
	for _, u := range units {
		h := hashes[u.Index]
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, u)
	}
	return out
}
