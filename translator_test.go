package lazytl

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingProvider translates "x" into "[locale] x" and records every call.
type countingProvider struct {
	calls atomic.Int32

	mu       sync.Mutex
	sizes    []int
	requests []TranslateRequest

	fail     func(req TranslateRequest) bool
	delayFor func(req TranslateRequest) time.Duration
	gate     chan struct{}
	short    bool // return one result too few
}

func (p *countingProvider) Translate(ctx context.Context, req TranslateRequest) ([]string, error) {
	p.calls.Add(1)
	p.mu.Lock()
	p.sizes = append(p.sizes, len(req.Texts))
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.delayFor != nil {
		if d := p.delayFor(req); d > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return nil, &ProviderError{Message: "call timed out", Cause: ctx.Err()}
			}
		}
	}
	if p.fail != nil && p.fail(req) {
		return nil, &ProviderError{Message: "upstream unavailable", StatusCode: 503, Retryable: true}
	}

	out := make([]string, len(req.Texts))
	for i, text := range req.Texts {
		out[i] = fmt.Sprintf("[%s] %s", req.TargetLang, text)
	}
	if p.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (p *countingProvider) batchSizes() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.sizes)
}

func containsText(req TranslateRequest, text string) bool {
	return slices.Contains(req.Texts, text)
}

// memStore is an in-package Store with failure injection.
type memStore struct {
	mu       sync.Mutex
	data     map[CacheKey]CacheEntry
	lastKeys []CacheKey
	gets     atomic.Int32
	upserts  atomic.Int32
	getErr   error
	putErr   error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[CacheKey]CacheEntry)}
}

func (s *memStore) put(text string, locale Locale, translated string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := NewCacheKey(text, locale)
	s.data[k] = CacheEntry{ContentHash: k.ContentHash, TargetLocale: locale, TranslatedText: translated}
}

func (s *memStore) GetMany(ctx context.Context, keys []CacheKey) ([]CacheEntry, error) {
	s.gets.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastKeys = slices.Clone(keys)
	if s.getErr != nil {
		return nil, s.getErr
	}
	var out []CacheEntry
	for _, k := range keys {
		if e, ok := s.data[k]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) UpsertMany(ctx context.Context, entries []CacheEntry) error {
	s.upserts.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	for _, e := range entries {
		s.data[e.Key()] = e
	}
	return nil
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func (s *memStore) get(text string, locale Locale) (CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[NewCacheKey(text, locale)]
	return e, ok
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Text %d", i)
	}
	return out
}

func TestTranslateMany_Basic(t *testing.T) {
	p := &countingProvider{}
	tr := NewTranslator("sv", p)

	got := tr.TranslateMany(context.Background(), []string{"Hej", "Välkommen"}, "en")

	want := []string{"[en] Hej", "[en] Välkommen"}
	if !slices.Equal(got, want) {
		t.Errorf("TranslateMany() = %v, want %v", got, want)
	}
	if p.calls.Load() != 1 {
		t.Errorf("Expected 1 provider call, got %d", p.calls.Load())
	}
}

func TestTranslateMany_Empty(t *testing.T) {
	p := &countingProvider{}
	tr := NewTranslator("sv", p)

	if got := tr.TranslateMany(context.Background(), nil, "en"); len(got) != 0 {
		t.Errorf("Expected empty result, got %v", got)
	}
	if p.calls.Load() != 0 {
		t.Error("Empty input must not call the provider")
	}
}

func TestTranslateMany_SourceLocaleIsNoop(t *testing.T) {
	p := &countingProvider{}
	store := newMemStore()
	tr := NewTranslator("sv", p, WithStore(store))
	defer tr.Close(context.Background())

	in := []string{"Hej", "", "Välkommen"}
	for _, target := range []Locale{"sv", "sv-FI", "sv_SE"} {
		got := tr.TranslateMany(context.Background(), in, target)
		if !slices.Equal(got, in) {
			t.Errorf("TranslateMany(%s) = %v, want input unchanged", target, got)
		}
	}
	if p.calls.Load() != 0 || store.gets.Load() != 0 {
		t.Errorf("Source locale must not touch provider or store (calls=%d gets=%d)", p.calls.Load(), store.gets.Load())
	}
}

func TestTranslateMany_ScriptAndRegionVariantsAreTranslated(t *testing.T) {
	tests := []struct {
		source, target Locale
	}{
		{"zh-Hans", "zh-Hant"},
		{"pt-BR", "pt-PT"},
		{"sr-Latn", "sr-Cyrl"},
		{"en-US", "en-GB"},
	}

	for _, tt := range tests {
		t.Run(string(tt.source)+"->"+string(tt.target), func(t *testing.T) {
			p := &countingProvider{}
			tr := NewTranslator(tt.source, p)

			got := tr.TranslateMany(context.Background(), []string{"你好"}, tt.target)
			if want := "[" + string(tt.target) + "] 你好"; got[0] != want {
				t.Errorf("got %q, want %q", got[0], want)
			}
			if p.calls.Load() != 1 {
				t.Errorf("Expected 1 provider call, got %d", p.calls.Load())
			}
		})
	}
}

func TestTranslateMany_FromLocaleOverride(t *testing.T) {
	p := &countingProvider{}
	tr := NewTranslator("sv", p)

	got := tr.TranslateMany(context.Background(), []string{"Hello"}, "en", FromLocale("en"))
	if got[0] != "Hello" || p.calls.Load() != 0 {
		t.Errorf("Per-call source equal to target should be a no-op, got %v", got)
	}

	tr.TranslateMany(context.Background(), []string{"Hello"}, "fi", FromLocale("en"))
	if p.requests[0].SourceLang != "en" {
		t.Errorf("Expected source en in request, got %q", p.requests[0].SourceLang)
	}
}

func TestTranslateMany_BlankTextsNeverHashedOrSent(t *testing.T) {
	p := &countingProvider{}
	store := newMemStore()
	tr := NewTranslator("sv", p, WithStore(store))
	defer tr.Close(context.Background())

	in := []string{"", "   ", "Hej", "\n\t"}
	got, stats := tr.TranslateManyStats(context.Background(), in, "en")

	if got[0] != "" || got[1] != "   " || got[3] != "\n\t" {
		t.Errorf("Blank texts must pass through unchanged, got %q", got)
	}
	if got[2] != "[en] Hej" {
		t.Errorf("Expected translated text, got %q", got[2])
	}
	if len(store.lastKeys) != 1 {
		t.Errorf("Expected exactly one cache key, got %v", store.lastKeys)
	}
	if sizes := p.batchSizes(); len(sizes) != 1 || sizes[0] != 1 {
		t.Errorf("Expected one call with one text, got %v", sizes)
	}
	if stats.Blank != 3 {
		t.Errorf("Expected 3 blank, got %d", stats.Blank)
	}
}

func TestTranslateMany_AllBlank(t *testing.T) {
	p := &countingProvider{}
	store := newMemStore()
	tr := NewTranslator("sv", p, WithStore(store))
	defer tr.Close(context.Background())

	tr.TranslateMany(context.Background(), []string{"", " "}, "en")
	if p.calls.Load() != 0 || store.gets.Load() != 0 {
		t.Error("All-blank input must not touch provider or store")
	}
}

func TestTranslateMany_SecondCallServedFromCache(t *testing.T) {
	ctx := context.Background()
	p := &countingProvider{}
	store := newMemStore()
	tr := NewTranslator("sv", p, WithStore(store))
	defer tr.Close(ctx)

	in := []string{"Hej", "Välkommen", "Öppettider"}
	first := tr.TranslateMany(ctx, in, "en")
	if err := tr.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	second, stats := tr.TranslateManyStats(ctx, in, "en")
	if !slices.Equal(first, second) {
		t.Errorf("Cached result %v differs from first %v", second, first)
	}
	if p.calls.Load() != 1 {
		t.Errorf("Second call must not reach the provider, calls=%d", p.calls.Load())
	}
	if stats.CacheHits != 3 || stats.ProviderCalls != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if store.gets.Load() != 2 {
		t.Errorf("Expected one multi-get per call, got %d", store.gets.Load())
	}

	e, ok := store.get("Välkommen", "en")
	if !ok || e.SourceExcerpt != "Välkommen" || e.TranslatedText != "[en] Välkommen" {
		t.Errorf("Unexpected stored entry: %+v", e)
	}
}

func TestTranslateMany_CacheIsPerLocale(t *testing.T) {
	ctx := context.Background()
	p := &countingProvider{}
	store := newMemStore()
	store.put("Hej", "en", "Hello")

	tr := NewTranslator("sv", p, WithStore(store))
	defer tr.Close(ctx)

	if got := tr.TranslateMany(ctx, []string{"Hej"}, "en"); got[0] != "Hello" {
		t.Errorf("Expected cached English, got %q", got[0])
	}
	if got := tr.TranslateMany(ctx, []string{"Hej"}, "fi"); got[0] != "[fi] Hej" {
		t.Errorf("Finnish must not reuse the English entry, got %q", got[0])
	}
}

func TestTranslateMany_PartialCacheHit(t *testing.T) {
	ctx := context.Background()
	p := &countingProvider{}
	store := newMemStore()
	store.put("Hej", "en", "Hello")

	tr := NewTranslator("sv", p, WithStore(store))
	defer tr.Close(ctx)

	got, stats := tr.TranslateManyStats(ctx, []string{"Tack", "Hej", "Välkommen"}, "en")

	want := []string{"[en] Tack", "Hello", "[en] Välkommen"}
	if !slices.Equal(got, want) {
		t.Errorf("TranslateMany() = %v, want %v", got, want)
	}
	if sizes := p.batchSizes(); len(sizes) != 1 || sizes[0] != 2 {
		t.Errorf("Only misses should be sent, got sizes %v", sizes)
	}
	if stats.CacheHits != 1 || stats.Translated != 2 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestTranslateMany_ChunksAtBatchLimit(t *testing.T) {
	p := &countingProvider{}
	tr := NewTranslator("sv", p, WithBatchLimit(2))

	in := []string{"a", "b", "c", "d", "e"}
	got := tr.TranslateMany(context.Background(), in, "en")

	sizes := p.batchSizes()
	slices.Sort(sizes)
	if !slices.Equal(sizes, []int{1, 2, 2}) {
		t.Errorf("Expected chunk sizes [1 2 2], got %v", sizes)
	}
	for i, text := range in {
		if got[i] != "[en] "+text {
			t.Errorf("position %d: got %q", i, got[i])
		}
	}
}

func TestTranslateMany_PreservesOrderWithConcurrentChunks(t *testing.T) {
	// Later chunks finish first.
	p := &countingProvider{delayFor: func(req TranslateRequest) time.Duration {
		if containsText(req, "Text 0") {
			return 30 * time.Millisecond
		}
		return 0
	}}
	tr := NewTranslator("sv", p, WithBatchLimit(3))

	in := texts(20)
	got := tr.TranslateMany(context.Background(), in, "fi")

	if len(got) != len(in) {
		t.Fatalf("Expected %d results, got %d", len(in), len(got))
	}
	for i, text := range in {
		if got[i] != "[fi] "+text {
			t.Errorf("position %d: got %q, want %q", i, got[i], "[fi] "+text)
		}
	}
	if p.calls.Load() != 7 {
		t.Errorf("Expected 7 chunks, got %d", p.calls.Load())
	}
}

func TestTranslateMany_FailedChunkDegradesToSource(t *testing.T) {
	ctx := context.Background()
	p := &countingProvider{fail: func(req TranslateRequest) bool { return containsText(req, "c") }}
	store := newMemStore()
	tr := NewTranslator("sv", p, WithStore(store), WithBatchLimit(2))
	defer tr.Close(ctx)

	got, stats := tr.TranslateManyStats(ctx, []string{"a", "b", "c", "d"}, "en")

	want := []string{"[en] a", "[en] b", "c", "d"}
	if !slices.Equal(got, want) {
		t.Errorf("TranslateMany() = %v, want %v", got, want)
	}
	if stats.FailedChunks != 1 || stats.Passthrough != 2 || stats.Translated != 2 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	if err := tr.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if store.len() != 2 {
		t.Errorf("Only the successful chunk should be cached, store has %d", store.len())
	}
	if _, ok := store.get("c", "en"); ok {
		t.Error("Identity fallback must never be cached")
	}
}

func TestTranslateMany_AllChunksFail(t *testing.T) {
	p := &countingProvider{fail: func(TranslateRequest) bool { return true }}
	tr := NewTranslator("sv", p, WithBatchLimit(1))

	in := []string{"a", "b"}
	if got := tr.TranslateMany(context.Background(), in, "en"); !slices.Equal(got, in) {
		t.Errorf("Expected identity output, got %v", got)
	}
}

func TestTranslateMany_CountMismatchDegrades(t *testing.T) {
	p := &countingProvider{short: true}
	tr := NewTranslator("sv", p)

	in := []string{"a", "b"}
	got, stats := tr.TranslateManyStats(context.Background(), in, "en")
	if !slices.Equal(got, in) || stats.FailedChunks != 1 {
		t.Errorf("Short provider response should degrade to source, got %v %+v", got, stats)
	}
}

func TestTranslateMany_ChunkTimeout(t *testing.T) {
	p := &countingProvider{delayFor: func(req TranslateRequest) time.Duration {
		if containsText(req, "slow") {
			return time.Second
		}
		return 0
	}}
	tr := NewTranslator("sv", p, WithBatchLimit(1), WithChunkTimeout(20*time.Millisecond))

	start := time.Now()
	got := tr.TranslateMany(context.Background(), []string{"fast", "slow"}, "en")

	if got[0] != "[en] fast" || got[1] != "slow" {
		t.Errorf("Unexpected result: %v", got)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Slow chunk should be cut off by the chunk timeout")
	}
}

func TestTranslateMany_NoProviderPassesThrough(t *testing.T) {
	store := newMemStore()
	tr := NewTranslator("sv", nil, WithStore(store))
	defer tr.Close(context.Background())

	in := []string{"Hej", "", "Tack"}
	got, stats := tr.TranslateManyStats(context.Background(), in, "en")

	if !slices.Equal(got, in) {
		t.Errorf("Expected input unchanged, got %v", got)
	}
	if stats.Passthrough != 2 {
		t.Errorf("Expected 2 passthrough, got %d", stats.Passthrough)
	}
	if store.gets.Load() != 0 {
		t.Error("Unavailable provider should skip the cache")
	}
	if tr.Available() {
		t.Error("Available() should be false without provider")
	}
}

func TestTranslateMany_CacheReadErrorTranslatesAnyway(t *testing.T) {
	ctx := context.Background()
	p := &countingProvider{}
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	tr := NewTranslator("sv", p, WithStore(store))
	defer tr.Close(ctx)

	got := tr.TranslateMany(ctx, []string{"Hej"}, "en")
	if got[0] != "[en] Hej" {
		t.Errorf("Expected translation despite cache failure, got %q", got[0])
	}
}

func TestTranslateMany_CacheWriteErrorIsSwallowed(t *testing.T) {
	ctx := context.Background()
	p := &countingProvider{}
	store := newMemStore()
	store.putErr = errors.New("disk full")
	tr := NewTranslator("sv", p, WithStore(store))
	defer tr.Close(ctx)

	got := tr.TranslateMany(ctx, []string{"Hej"}, "en")
	if got[0] != "[en] Hej" {
		t.Errorf("Expected translation despite write failure, got %q", got[0])
	}
	if err := tr.Flush(ctx); err != nil {
		t.Errorf("Flush should not surface write errors: %v", err)
	}
	if store.upserts.Load() != 1 {
		t.Errorf("Expected one write attempt, got %d", store.upserts.Load())
	}
}

func TestTranslateMany_Dedup(t *testing.T) {
	p := &countingProvider{}
	tr := NewTranslator("sv", p)

	in := []string{"Hej", "Tack", "Hej", "Hej", "Tack"}
	got, stats := tr.TranslateManyStats(context.Background(), in, "en")

	for i, text := range in {
		if got[i] != "[en] "+text {
			t.Errorf("position %d: got %q", i, got[i])
		}
	}
	if sizes := p.batchSizes(); len(sizes) != 1 || sizes[0] != 2 {
		t.Errorf("Expected one call with 2 distinct texts, got %v", sizes)
	}
	if stats.Translated != 5 {
		t.Errorf("Every duplicate position counts as translated, got %d", stats.Translated)
	}
}

func TestTranslateMany_DedupDisabled(t *testing.T) {
	p := &countingProvider{}
	tr := NewTranslator("sv", p, WithDedup(false))

	tr.TranslateMany(context.Background(), []string{"Hej", "Hej", "Hej"}, "en")
	if sizes := p.batchSizes(); len(sizes) != 1 || sizes[0] != 3 {
		t.Errorf("Expected duplicates to be sent, got %v", sizes)
	}
}

func TestTranslateMany_DuplicatesCachedOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	tr := NewTranslator("sv", &countingProvider{}, WithStore(store))
	defer tr.Close(ctx)

	tr.TranslateMany(ctx, []string{"Hej", "Hej"}, "en")
	_ = tr.Flush(ctx)

	if len(store.lastKeys) != 1 {
		t.Errorf("Duplicate texts should share one lookup key, got %d", len(store.lastKeys))
	}
	if store.len() != 1 {
		t.Errorf("Expected 1 cache entry, got %d", store.len())
	}
}

func TestTranslateMany_ConcurrentMissesSameText(t *testing.T) {
	ctx := context.Background()
	p := &countingProvider{}
	store := newMemStore()
	tr := NewTranslator("sv", p, WithStore(store))
	defer tr.Close(ctx)

	var wg sync.WaitGroup
	results := make([][]string, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = tr.TranslateMany(ctx, []string{"Hej", "Tack"}, "en")
		}()
	}
	wg.Wait()

	for i, r := range results {
		if r[0] != "[en] Hej" || r[1] != "[en] Tack" {
			t.Errorf("caller %d got %v", i, r)
		}
	}
	if err := tr.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if store.len() != 2 {
		t.Errorf("Concurrent writers should converge on 2 entries, got %d", store.len())
	}
}

func TestTranslateMany_Coalescing(t *testing.T) {
	ctx := context.Background()
	gate := make(chan struct{})
	p := &countingProvider{gate: gate}
	tr := NewTranslator("sv", p, WithCoalescing(true))

	var wg sync.WaitGroup
	results := make([][]string, 2)
	start := func(i int) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = tr.TranslateMany(ctx, []string{"Hej", "Tack"}, "en")
		}()
	}

	start(0)
	waitFor(t, func() bool { return p.calls.Load() == 1 })
	start(1)
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if p.calls.Load() != 1 {
		t.Errorf("Coalesced callers should share one provider call, got %d", p.calls.Load())
	}
	for i, r := range results {
		if !slices.Equal(r, []string{"[en] Hej", "[en] Tack"}) {
			t.Errorf("caller %d got %v", i, r)
		}
	}
}

func TestTranslateMany_CoalescingSurvivesCanceledLeader(t *testing.T) {
	gate := make(chan struct{})
	p := &countingProvider{gate: gate}
	tr := NewTranslator("sv", p, WithCoalescing(true))

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderDone := make(chan []string, 1)
	go func() {
		leaderDone <- tr.TranslateMany(leaderCtx, []string{"Hej"}, "en")
	}()
	waitFor(t, func() bool { return p.calls.Load() == 1 })

	followerDone := make(chan []string, 1)
	go func() {
		followerDone <- tr.TranslateMany(context.Background(), []string{"Hej"}, "en")
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	if got := <-leaderDone; got[0] != "Hej" {
		t.Errorf("Canceled caller should get source text, got %q", got[0])
	}

	close(gate)
	if got := <-followerDone; got[0] != "[en] Hej" {
		t.Errorf("Live caller should not fail with the canceled one, got %q", got[0])
	}
	if p.calls.Load() != 1 {
		t.Errorf("Expected one shared provider call, got %d", p.calls.Load())
	}
}

func TestTranslateMany_NoCoalescingByDefault(t *testing.T) {
	ctx := context.Background()
	gate := make(chan struct{})
	p := &countingProvider{gate: gate}
	tr := NewTranslator("sv", p)

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.TranslateMany(ctx, []string{"Hej"}, "en")
		}()
	}
	waitFor(t, func() bool { return p.calls.Load() == 2 })
	close(gate)
	wg.Wait()
}

func TestTranslateMany_CanceledContext(t *testing.T) {
	p := &countingProvider{gate: make(chan struct{})}
	tr := NewTranslator("sv", p)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	got := tr.TranslateMany(ctx, []string{"Hej"}, "en")
	if got[0] != "Hej" {
		t.Errorf("Canceled call should return source text, got %q", got[0])
	}
}

func TestTranslateMany_AfterClose(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	tr := NewTranslator("sv", &countingProvider{}, WithStore(store))
	if err := tr.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := tr.TranslateMany(ctx, []string{"Hej"}, "en"); got[0] != "[en] Hej" {
		t.Errorf("Translation should still work after Close, got %q", got[0])
	}
	if err := tr.Close(ctx); err != nil {
		t.Errorf("Second Close should be a no-op: %v", err)
	}
}

func TestTranslateMany_InputNotModified(t *testing.T) {
	tr := NewTranslator("sv", &countingProvider{})

	in := []string{"Hej", "Tack"}
	tr.TranslateMany(context.Background(), in, "en")
	if in[0] != "Hej" || in[1] != "Tack" {
		t.Errorf("Input slice was modified: %v", in)
	}
}

func TestNewTranslator_BatchLimit(t *testing.T) {
	if got := NewTranslator("sv", &countingProvider{}).BatchLimit(); got != DefaultBatchLimit {
		t.Errorf("Default batch limit = %d, want %d", got, DefaultBatchLimit)
	}
	if got := NewTranslator("sv", &failingProvider{}).BatchLimit(); got != 7 {
		t.Errorf("Provider batch limit = %d, want 7", got)
	}
	if got := NewTranslator("sv", &failingProvider{}, WithBatchLimit(3)).BatchLimit(); got != 3 {
		t.Errorf("Explicit batch limit = %d, want 3", got)
	}
	if got := NewTranslator("sv", nil).BatchLimit(); got != DefaultBatchLimit {
		t.Errorf("Nil provider batch limit = %d, want %d", got, DefaultBatchLimit)
	}
}

func TestTranslateMany_MaxConcurrentChunks(t *testing.T) {
	var inFlight, peak atomic.Int32
	p := &countingProvider{delayFor: func(TranslateRequest) time.Duration {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return 0
	}}
	tr := NewTranslator("sv", p, WithBatchLimit(1), WithMaxConcurrentChunks(2))

	tr.TranslateMany(context.Background(), texts(8), "en")
	if peak.Load() > 2 {
		t.Errorf("Expected at most 2 concurrent chunks, saw %d", peak.Load())
	}
}

func TestTranslator_Accessors(t *testing.T) {
	tr := NewTranslator("sv", &countingProvider{})
	if tr.SourceLang() != "sv" {
		t.Errorf("SourceLang() = %q", tr.SourceLang())
	}
	if !tr.Available() {
		t.Error("Available() should be true with a provider")
	}
	if err := tr.Flush(context.Background()); err != nil {
		t.Errorf("Flush without store should be a no-op: %v", err)
	}
}

// waitFor polls cond for up to a second.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met within 1s")
}
