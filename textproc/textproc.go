// Package textproc holds the pure string transforms used to turn a source
// track's fields into search queries for a foreign catalog.
package textproc

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Approach is a named combination of normalization toggles. A plan is an
// ordered list of approaches, most literal first.
type Approach struct {
	ID             string `json:"id"`
	Filtered       bool   `json:"filtered,omitempty"`
	Trim           bool   `json:"trim,omitempty"`
	RemoveQuotes   bool   `json:"removeQuotes,omitempty"`
	FoldDiacritics bool   `json:"foldDiacritics,omitempty"`
}

// Config is the shared vocabulary consumed by the normalizer.
// Matching against it is case-insensitive.
type Config struct {
	FilterOutWords   []string `json:"filterOutWords"`
	FilterOutQuotes  []string `json:"filterOutQuotes"`
	CutOffSeparators []string `json:"cutOffSeparators"`
}

const featuringMarker = "feat"

var (
	whitespaceRegex   = regexp.MustCompile(`\s+`)
	emptyBracketRegex = regexp.MustCompile(`\(\s*\)|\[\s*\]|\{\s*\}`)

	wordPatterns      sync.Map // lower-cased word -> *regexp.Regexp
	separatorPatterns sync.Map // separator -> *regexp.Regexp
)

// RemoveFeaturing truncates text at the first "feat" or "(" and returns
// everything before it. The marker is case-sensitive: "Feat" and "FEAT" are
// left alone.
func RemoveFeaturing(text string) string {
	cut := -1
	if i := strings.Index(text, featuringMarker); i != -1 {
		cut = i
	}
	if i := strings.IndexByte(text, '('); i != -1 && (cut == -1 || i < cut) {
		cut = i
	}
	if cut == -1 {
		return text
	}
	return text[:cut]
}

// FilterOutWords removes every whole-word occurrence of the given words,
// ignoring case. Brackets emptied by the removal are dropped as well.
func FilterOutWords(text string, words []string) string {
	if text == "" || len(words) == 0 {
		return text
	}

	result := text
	for _, word := range words {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		re := wordPattern(word)
		// Adjacent occurrences share a boundary character, so repeat until stable.
		for {
			next := re.ReplaceAllString(result, "${1}${2}")
			if next == result {
				break
			}
			result = next
		}
	}

	if result == text {
		return text
	}
	result = emptyBracketRegex.ReplaceAllString(result, "")
	return CollapseWhitespace(result)
}

func wordPattern(word string) *regexp.Regexp {
	key := strings.ToLower(word)
	if re, ok := wordPatterns.Load(key); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(`(?i)(^|[^\p{L}\p{N}])` + regexp.QuoteMeta(word) + `([^\p{L}\p{N}]|$)`)
	wordPatterns.Store(key, re)
	return re
}

// FilterOutQuotes strips every configured quote character.
func FilterOutQuotes(text string, quotes []string) string {
	for _, q := range quotes {
		if q == "" {
			continue
		}
		text = strings.ReplaceAll(text, q, "")
	}
	return text
}

// CutOffSeparators truncates text at the earliest occurrence of any of the
// separators. The comparison ignores case. A separator found at the very start
// would leave nothing to search for, so it is ignored.
func CutOffSeparators(text string, separators []string) string {
	cut := -1
	for _, sep := range separators {
		if sep == "" {
			continue
		}
		loc := separatorPattern(sep).FindStringIndex(text)
		if loc == nil || loc[0] == 0 {
			continue
		}
		i := loc[0]
		if cut == -1 || i < cut {
			cut = i
		}
	}
	if cut == -1 {
		return text
	}
	return strings.TrimSpace(text[:cut])
}

func separatorPattern(sep string) *regexp.Regexp {
	if re, ok := separatorPatterns.Load(sep); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(sep))
	separatorPatterns.Store(sep, re)
	return re
}

// FoldDiacritics decomposes text and drops combining marks, so "Beyoncé"
// becomes "Beyonce".
func FoldDiacritics(text string) string {
	decomposed := norm.NFKD.String(text)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}

// CollapseWhitespace trims text and folds internal whitespace runs to one space.
func CollapseWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(text, " "))
}

// Normalize applies the approach's toggles to a single field. The order is
// fixed: quote removal, then separator cutoff, then stopword filtering.
// Diacritic folding, when enabled, runs before all of them.
func Normalize(text string, approach Approach, cfg Config) string {
	if approach.FoldDiacritics {
		text = FoldDiacritics(text)
	}
	if approach.RemoveQuotes {
		text = FilterOutQuotes(text, cfg.FilterOutQuotes)
	}
	if approach.Trim {
		text = CutOffSeparators(text, cfg.CutOffSeparators)
	}
	if approach.Filtered {
		text = FilterOutWords(text, cfg.FilterOutWords)
	}
	return text
}
