package lazytl

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// splitChunks splits units into consecutive chunks of at most limit items.
func splitChunks(units []TranslationUnit, limit int) [][]TranslationUnit {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	chunks := make([][]TranslationUnit, 0, (len(units)+limit-1)/limit)
	for start := 0; start < len(units); start += limit {
		end := min(start+limit, len(units))
		chunks = append(chunks, units[start:end])
	}
	return chunks
}

// scatter sends every chunk to the provider concurrently and gathers the
// results into a map keyed by original input index. Failed chunks are
// simply missing from the map. It returns the number of provider calls and
// of failed chunks.
func (t *Translator) scatter(ctx context.Context, chunks [][]TranslationUnit, hashes []string, target, source Locale) (map[int]string, int, int) {
	results := make(map[int]string)
	var mu sync.Mutex
	failed := 0

	// Chunk goroutines never return an error, so one failure cannot cancel
	// its siblings.
	var g errgroup.Group
	if t.maxChunks > 0 {
		g.SetLimit(t.maxChunks)
	}

	for _, chunk := range chunks {
		g.Go(func() error {
			translated, ok := t.translateChunk(ctx, chunk, hashes, target, source)

			mu.Lock()
			defer mu.Unlock()
			if !ok {
				failed++
				return nil
			}
			for i, u := range chunk {
				results[u.Index] = translated[i]
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, len(chunks), failed
}

// translateChunk performs one provider call and queues the cache write for
// its results as soon as it succeeds, independent of slower chunks.
func (t *Translator) translateChunk(ctx context.Context, chunk []TranslationUnit, hashes []string, target, source Locale) ([]string, bool) {
	ctx, span := t.tracer.Start(ctx, "lazytl.provider_chunk", trace.WithAttributes(
		attribute.String("lazytl.target_locale", string(target)),
		attribute.Int("lazytl.chunk_size", len(chunk)),
	))
	defer span.End()

	if t.chunkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.chunkTimeout)
		defer cancel()
	}

	texts := make([]string, len(chunk))
	for i, u := range chunk {
		texts[i] = u.Text
	}

	req := TranslateRequest{Texts: texts, TargetLang: target, SourceLang: source}

	var translated []string
	var err error
	if t.coalesce {
		translated, err = t.coalescedTranslate(ctx, req, chunk, hashes)
	} else {
		translated, err = t.provider.Translate(ctx, req)
	}
	if err == nil && len(translated) != len(texts) {
		err = &CountMismatchError{Expected: len(texts), Got: len(translated)}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider chunk failed")
		t.logger.Warn("provider chunk failed, returning source text",
			"component", "provider",
			"locale", string(target),
			"chunk_size", len(chunk),
			"error", err,
		)
		return nil, false
	}

	if t.writer != nil {
		entries := make([]CacheEntry, 0, len(chunk))
		for i, u := range chunk {
			entries = append(entries, CacheEntry{
				ContentHash:    hashes[u.Index],
				TargetLocale:   target,
				SourceExcerpt:  Excerpt(u.Text),
				TranslatedText: translated[i],
			})
		}
		t.writer.Enqueue(entries)
	}

	return translated, true
}
