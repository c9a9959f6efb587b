package lazytl

import (
	"context"
	"log/slog"
	"maps"
	"reflect"
	"strings"
)

// Record is a loosely typed content item, as decoded from JSON or a
// database row.
type Record = map[string]any

// BatchTranslator translates a flat list of texts. *Translator implements it.
type BatchTranslator interface {
	TranslateMany(ctx context.Context, texts []string, target Locale, opts ...CallOption) []string
}

// ContentProcessor splits structured field content (such as rich-text HTML)
// into text nodes and reassembles it from translations keyed by node hash.
type ContentProcessor interface {
	Extract(content string) (any, []TextNode, error)
	Apply(parsed any, nodes []TextNode, translations map[string]string) (string, error)
	ContentType() string
}

// FieldMapper translates named string fields of content items. However many
// items and fields are involved, one call issues a single TranslateMany.
type FieldMapper struct {
	translator BatchTranslator
	processors map[string]ContentProcessor
	logger     *slog.Logger
}

// FieldMapperOption is a functional option for configuring the FieldMapper.
type FieldMapperOption func(*FieldMapper)

// WithFieldProcessor marks field as structured content handled by p; its
// text nodes are translated instead of the raw value.
func WithFieldProcessor(field string, p ContentProcessor) FieldMapperOption {
	return func(m *FieldMapper) {
		m.processors[field] = p
	}
}

// WithMapperLogger sets the logger used for processor failures.
func WithMapperLogger(logger *slog.Logger) FieldMapperOption {
	return func(m *FieldMapper) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewFieldMapper creates a FieldMapper backed by translator.
func NewFieldMapper(translator BatchTranslator, opts ...FieldMapperOption) *FieldMapper {
	m := &FieldMapper{
		translator: translator,
		processors: make(map[string]ContentProcessor),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// fieldSlot is one translatable field value of one item.
type fieldSlot struct {
	field string
	value string
	set   func(string)
}

// structuredSlot tracks a field expanded into text nodes.
type structuredSlot struct {
	slot   fieldSlot
	proc   ContentProcessor
	parsed any
	nodes  []TextNode
	offset int
}

// TranslateFields returns a shallow clone of item with the named string
// fields translated into target. Absent, non-string and blank fields are
// copied through unchanged. item is never modified.
func (m *FieldMapper) TranslateFields(ctx context.Context, item Record, fields []string, target Locale) Record {
	return m.TranslateArray(ctx, []Record{item}, fields, target)[0]
}

// TranslateArray is the multi-item variant of TranslateFields: the named
// fields of every item are flattened into one list and translated with a
// single TranslateMany call.
func (m *FieldMapper) TranslateArray(ctx context.Context, items []Record, fields []string, target Locale) []Record {
	out := make([]Record, len(items))
	for i, item := range items {
		out[i] = maps.Clone(item)
	}

	fields = uniqueFields(fields)
	if len(out) == 0 || len(fields) == 0 {
		return out
	}

	m.translateSlots(ctx, recordSlots(out, fields), target)
	return out
}

// Texts returns the texts TranslateArray would send for items, in order
// and including the text nodes of processed fields. It makes no calls.
func (m *FieldMapper) Texts(items []Record, fields []string) []string {
	return m.collect(recordSlots(items, uniqueFields(fields))).texts
}

// recordSlots builds a slot for every non-blank string field of items.
// Setters write into items.
func recordSlots(items []Record, fields []string) []fieldSlot {
	var slots []fieldSlot
	for _, rec := range items {
		if rec == nil {
			continue
		}
		for _, f := range fields {
			s, ok := rec[f].(string)
			if !ok || IsBlank(s) {
				continue
			}
			slots = append(slots, fieldSlot{field: f, value: s, set: func(v string) { rec[f] = v }})
		}
	}
	return slots
}

// slotTexts is the flattened text list of a set of slots.
type slotTexts struct {
	texts      []string
	plain      []int // index into texts, -1 for structured
	structured []structuredSlot
}

func (m *FieldMapper) collect(slots []fieldSlot) slotTexts {
	st := slotTexts{plain: make([]int, len(slots))}

	for i, slot := range slots {
		proc, ok := m.processors[slot.field]
		if !ok {
			st.plain[i] = len(st.texts)
			st.texts = append(st.texts, slot.value)
			continue
		}

		st.plain[i] = -1
		parsed, nodes, err := proc.Extract(slot.value)
		if err != nil {
			m.logger.Warn("field content could not be parsed, leaving untranslated",
				"field", slot.field,
				"content_type", proc.ContentType(),
				"error", err,
			)
			continue
		}
		if len(nodes) == 0 {
			continue
		}

		st.structured = append(st.structured, structuredSlot{
			slot:   slot,
			proc:   proc,
			parsed: parsed,
			nodes:  nodes,
			offset: len(st.texts),
		})
		for _, n := range nodes {
			st.texts = append(st.texts, n.Text)
		}
	}
	return st
}

// translateSlots flattens slots into one text list, translates it and
// scatters the results back through each slot's setter.
func (m *FieldMapper) translateSlots(ctx context.Context, slots []fieldSlot, target Locale) {
	if len(slots) == 0 {
		return
	}

	st := m.collect(slots)
	if len(st.texts) == 0 {
		return
	}

	translated := m.translator.TranslateMany(ctx, st.texts, target)

	for i, slot := range slots {
		if st.plain[i] >= 0 {
			slot.set(translated[st.plain[i]])
		}
	}

	for _, s := range st.structured {
		byHash := make(map[string]string, len(s.nodes))
		changed := false
		for j, n := range s.nodes {
			v := translated[s.offset+j]
			byHash[n.Hash] = v
			changed = changed || v != n.Text
		}
		// Untranslated content keeps its authored markup.
		if !changed {
			continue
		}
		result, err := s.proc.Apply(s.parsed, s.nodes, byHash)
		if err != nil {
			m.logger.Warn("field content could not be rebuilt, leaving untranslated",
				"field", s.slot.field,
				"content_type", s.proc.ContentType(),
				"error", err,
			)
			continue
		}
		s.slot.set(result)
	}
}

// TranslateStruct returns a copy of item with the named string fields
// translated. Fields are matched by Go name or json tag; string, named
// string and *string fields are supported. Pointers are copied, never
// written through.
func TranslateStruct[T any](ctx context.Context, m *FieldMapper, item T, fields []string, target Locale) T {
	return TranslateStructs(ctx, m, []T{item}, fields, target)[0]
}

// TranslateStructs is the multi-item variant of TranslateStruct and, like
// TranslateArray, issues a single TranslateMany call.
func TranslateStructs[T any](ctx context.Context, m *FieldMapper, items []T, fields []string, target Locale) []T {
	out := make([]T, len(items))
	copy(out, items)

	fields = uniqueFields(fields)
	if len(out) == 0 || len(fields) == 0 {
		return out
	}

	var slots []fieldSlot
	for i := range out {
		v := reflect.ValueOf(&out[i]).Elem()
		if v.Kind() == reflect.Pointer {
			if v.IsNil() {
				continue
			}
			clone := reflect.New(v.Type().Elem())
			clone.Elem().Set(v.Elem())
			v.Set(clone)
			v = clone.Elem()
		}
		if v.Kind() != reflect.Struct {
			continue
		}
		for _, f := range fields {
			if slot, ok := structSlot(v, f); ok {
				slots = append(slots, slot)
			}
		}
	}

	m.translateSlots(ctx, slots, target)
	return out
}

// structSlot builds a slot for the field of struct value v named name.
func structSlot(v reflect.Value, name string) (fieldSlot, bool) {
	fv, ok := lookupField(v, name)
	if !ok || !fv.CanSet() {
		return fieldSlot{}, false
	}

	switch {
	case fv.Kind() == reflect.String:
		s := fv.String()
		if IsBlank(s) {
			return fieldSlot{}, false
		}
		return fieldSlot{field: name, value: s, set: func(t string) { fv.SetString(t) }}, true

	case fv.Kind() == reflect.Pointer && fv.Type().Elem().Kind() == reflect.String:
		if fv.IsNil() {
			return fieldSlot{}, false
		}
		s := fv.Elem().String()
		if IsBlank(s) {
			return fieldSlot{}, false
		}
		return fieldSlot{field: name, value: s, set: func(t string) {
			p := reflect.New(fv.Type().Elem())
			p.Elem().SetString(t)
			fv.Set(p)
		}}, true
	}

	return fieldSlot{}, false
}

// lookupField finds an exported field by Go name or json tag name.
func lookupField(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if sf.Name == name || (tag != "" && tag != "-" && tag == name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func uniqueFields(fields []string) []string {
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
