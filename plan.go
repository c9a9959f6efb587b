package lazytl

import (
	"context"
	"strconv"
)

// Plan describes what TranslateMany would do with a batch, without calling
// the provider or writing to the store. Nodes are distinct texts in order of
// first appearance; ID is the index of that first appearance.
type Plan struct {
	Target  Locale
	Skipped bool // Target shares the source language; nothing to do
	Blank   int
	Cached  []TextNode
	Missing []TextNode

	occurrences int // Missing positions, duplicates included
	dedup       bool
	batchLimit  int
}

// PlanStats summarizes a Plan.
type PlanStats struct {
	Cached  int
	Missing int
	Blank   int
	Chunks  int // Provider calls TranslateMany would make
}

// Stats returns summary statistics for the plan.
func (p *Plan) Stats() PlanStats {
	pending := p.occurrences
	if p.dedup {
		pending = len(p.Missing)
	}
	chunks := 0
	if pending > 0 && p.batchLimit > 0 {
		chunks = (pending + p.batchLimit - 1) / p.batchLimit
	}
	return PlanStats{
		Cached:  len(p.Cached),
		Missing: len(p.Missing),
		Blank:   p.Blank,
		Chunks:  chunks,
	}
}

// HasWork reports whether any text would be sent to the provider.
func (p *Plan) HasWork() bool {
	return len(p.Missing) > 0
}

// Plan performs the cache lookup of TranslateMany and reports which texts
// are already cached for target and which would be translated.
func (t *Translator) Plan(ctx context.Context, texts []string, target Locale, opts ...CallOption) *Plan {
	cfg := callConfig{sourceLang: t.sourceLang}
	for _, opt := range opts {
		opt(&cfg)
	}

	plan := &Plan{Target: target, dedup: t.dedup, batchLimit: t.batchLimit}
	if SameLanguage(target, cfg.sourceLang) {
		plan.Skipped = true
		return plan
	}

	hashes := make([]string, len(texts))
	units := make([]TranslationUnit, 0, len(texts))
	for i, text := range texts {
		if IsBlank(text) {
			plan.Blank++
			continue
		}
		hashes[i] = HashText(text)
		units = append(units, TranslationUnit{Text: text, Index: i})
	}

	hits := t.lookup(ctx, units, hashes, target)

	seen := make(map[string]bool, len(units))
	for _, u := range units {
		h := hashes[u.Index]
		_, cached := hits[h]
		if !cached {
			plan.occurrences++
		}
		if seen[h] {
			continue
		}
		seen[h] = true

		node := TextNode{ID: strconv.Itoa(u.Index), Text: u.Text, Hash: h}
		if cached {
			plan.Cached = append(plan.Cached, node)
		} else {
			plan.Missing = append(plan.Missing, node)
		}
	}
	return plan
}
