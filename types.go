package lazytl

// Locale is a BCP 47 language tag such as "sv", "en" or "fi".
type Locale string

// CacheKey identifies one cached translation. Keys are values and never
// change once built.
type CacheKey struct {
	ContentHash  string // HashText of the exact source text
	TargetLocale Locale // Locale the text was translated into
}

// CacheEntry is one persisted translation.
type CacheEntry struct {
	ContentHash    string
	TargetLocale   Locale
	SourceExcerpt  string // Leading part of the source text, for auditing only
	TranslatedText string
}

// Key returns the cache key of the entry.
func (e CacheEntry) Key() CacheKey {
	return CacheKey{ContentHash: e.ContentHash, TargetLocale: e.TargetLocale}
}

// TranslationUnit is a text awaiting translation together with its position
// in the caller's input. Units only live for the duration of one call.
type TranslationUnit struct {
	Text  string
	Index int
}

// TextNode represents a translatable unit inside structured content such as
// an HTML fragment.
type TextNode struct {
	ID       string            // Position-derived identifier within the document
	Text     string            // Text content (trimmed)
	Hash     string            // HashText of Text
	Metadata map[string]string // Additional info (parent tag, etc.)
}

// Stats describes what a TranslateMany call did.
type Stats struct {
	Total         int // Input texts
	Blank         int // Empty or whitespace-only texts passed through
	CacheHits     int // Positions served from the store
	Translated    int // Positions filled from a provider response
	Passthrough   int // Non-blank positions returned untranslated
	ProviderCalls int // Chunks sent to the provider
	FailedChunks  int // Chunks that degraded to identity
}

// IgnoredTags contains HTML tags whose content should not be translated.
var IgnoredTags = map[string]bool{
	"script":   true,
	"style":    true,
	"code":     true,
	"pre":      true,
	"textarea": true,
	"noscript": true,
}
