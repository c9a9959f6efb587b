package lazytl

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

// excerptRunes is the number of source runes kept alongside a cache entry.
const excerptRunes = 200

// HashText computes the content hash of text: the xxhash64 digest of the
// exact bytes rendered as 16 hex digits. It is unseeded, so the same text
// hashes identically across processes and restarts.
//
// Callers must not hash blank text; see IsBlank.
func HashText(text string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(text))
}

// IsBlank reports whether text is empty or whitespace only.
// Blank text is never hashed, cached or sent to a provider.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

// NewCacheKey builds the cache key for text translated into target.
func NewCacheKey(text string, target Locale) CacheKey {
	return CacheKey{ContentHash: HashText(text), TargetLocale: target}
}

// Excerpt returns the audit excerpt stored with a cache entry.
func Excerpt(text string) string {
	if utf8.RuneCountInString(text) <= excerptRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:excerptRunes])
}

// String renders the key in the "hash:locale" form used by key/value stores.
func (k CacheKey) String() string {
	return k.ContentHash + ":" + string(k.TargetLocale)
}
