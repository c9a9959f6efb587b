package lazytl

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// RTLLanguages contains base language codes that use right-to-left text direction.
var RTLLanguages = map[string]bool{
	"ar": true, // Arabic
	"he": true, // Hebrew
	"fa": true, // Persian/Farsi
	"ur": true, // Urdu
	"ps": true, // Pashto
	"sd": true, // Sindhi
	"ug": true, // Uyghur
}

// ParseLocale validates s as a language tag and returns its canonical form
// ("en_gb" → "en-GB").
func ParseLocale(s string) (Locale, error) {
	tag, err := language.Parse(NormalizeLocale(s))
	if err != nil {
		return "", fmt.Errorf("parse locale %q: %w", s, err)
	}
	return Locale(tag.String()), nil
}

// NormalizeLocale converts a language code to BCP 47 separators (e.g., "es_ES" → "es-ES").
func NormalizeLocale(code string) string {
	return strings.ReplaceAll(strings.TrimSpace(code), "_", "-")
}

// Base returns the base language subtag ("sv" for "sv-FI").
// Unparseable locales are lower-cased up to the first separator.
func (l Locale) Base() string {
	tag, err := language.Parse(NormalizeLocale(string(l)))
	if err != nil {
		return strings.ToLower(strings.Split(NormalizeLocale(string(l)), "-")[0])
	}
	base, _ := tag.Base()
	return base.String()
}

// SameLanguage reports whether translating between a and b is a no-op.
// Base language and script must match, with the script inferred when absent
// ("zh" is "zh-Hans"). Regions must match only when both locales name one,
// so "sv-FI" matches "sv" but "pt-BR" does not match "pt-PT".
func SameLanguage(a, b Locale) bool {
	ta, errA := language.Parse(NormalizeLocale(string(a)))
	tb, errB := language.Parse(NormalizeLocale(string(b)))
	if errA != nil || errB != nil {
		return strings.EqualFold(NormalizeLocale(string(a)), NormalizeLocale(string(b)))
	}
	if ta == tb {
		return true
	}

	baseA, _ := ta.Base()
	baseB, _ := tb.Base()
	scriptA, _ := ta.Script()
	scriptB, _ := tb.Script()
	if baseA != baseB || scriptA != scriptB {
		return false
	}

	regionA, confA := ta.Region()
	regionB, confB := tb.Region()
	return confA != language.Exact || confB != language.Exact || regionA == regionB
}

// GetLanguageName returns the English name of a locale for provider prompts.
// Falls back to the code itself if unknown.
func GetLanguageName(l Locale) string {
	tag, err := language.Parse(NormalizeLocale(string(l)))
	if err != nil {
		return string(l)
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return string(l)
}

// GetDirection returns "rtl" for right-to-left languages, "ltr" otherwise.
func GetDirection(l Locale) string {
	if RTLLanguages[l.Base()] {
		return "rtl"
	}
	return "ltr"
}

// IsRTL returns true if the language uses right-to-left text direction.
func IsRTL(l Locale) bool {
	return GetDirection(l) == "rtl"
}

// LocaleSet is the fixed set of locales a site publishes in, one of which is
// the source locale content is authored in.
type LocaleSet struct {
	Source    Locale
	Supported []Locale
}

// NewLocaleSet parses the source and supported locales. The source locale
// is added to the supported set when missing.
func NewLocaleSet(source string, supported []string) (LocaleSet, error) {
	src, err := ParseLocale(source)
	if err != nil {
		return LocaleSet{}, err
	}
	set := LocaleSet{Source: src}
	seen := map[Locale]bool{}
	for _, s := range append([]string{source}, supported...) {
		if strings.TrimSpace(s) == "" {
			continue
		}
		l, err := ParseLocale(s)
		if err != nil {
			return LocaleSet{}, err
		}
		if !seen[l] {
			seen[l] = true
			set.Supported = append(set.Supported, l)
		}
	}
	return set, nil
}

// Contains reports whether l is one of the supported locales, compared by
// base language.
func (s LocaleSet) Contains(l Locale) bool {
	for _, sl := range s.Supported {
		if sl.Base() == l.Base() {
			return true
		}
	}
	return false
}

// IsSource reports whether l is the source locale.
func (s LocaleSet) IsSource(l Locale) bool {
	return SameLanguage(s.Source, l)
}

// Targets returns the supported locales other than the source.
func (s LocaleSet) Targets() []Locale {
	var out []Locale
	for _, l := range s.Supported {
		if !s.IsSource(l) {
			out = append(out, l)
		}
	}
	return out
}
