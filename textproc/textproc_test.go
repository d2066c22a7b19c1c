package textproc

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

var testVocabulary = Config{
	FilterOutWords:   []string{"remastered", "radio edit", "live", "feat."},
	FilterOutQuotes:  []string{"'", "\"", "’", "‘", "“", "”", "«", "»", "„"},
	CutOffSeparators: []string{" - ", " (", " feat"},
}

func TestRemoveFeaturing(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"feat marker", "Shape of You feat. Ed Sheeran", "Shape of You "},
		{"parenthesis", "Get It Right (feat. MØ)", "Get It Right "},
		{"parenthesis before feat", "Song (Remix) feat. Someone", "Song "},
		{"feat before parenthesis", "Song feat. Someone (Remix)", "Song "},
		{"capitalised Feat is not a marker", "Song Feat. Someone", "Song Feat. Someone"},
		{"upper case FEAT is not a marker", "Song FEAT Someone", "Song FEAT Someone"},
		{"no marker", "Bohemian Rhapsody", "Bohemian Rhapsody"},
		{"empty", "", ""},
		{"marker at start", "(Intro)", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RemoveFeaturing(tt.input))
		})
	}
}

func TestRemoveFeaturingIsIdempotent(t *testing.T) {
	inputs := []string{
		"Shape of You feat. Ed Sheeran",
		"Song (Live) feat Someone",
		"Plain title",
		"(((",
		"featfeat",
		"",
		"Défeat (x)",
	}
	for _, input := range inputs {
		once := RemoveFeaturing(input)
		assert.Equal(t, once, RemoveFeaturing(once), "input %q", input)
	}
}

func TestFilterOutWords(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"single word any case", "Heroes REMASTERED", "Heroes"},
		{"multi word", "Spotlight Radio Edit", "Spotlight"},
		{"inside brackets", "Song (Live)", "Song"},
		{"repeated adjacent", "Live live Song", "Song"},
		{"not a whole word", "Alive", "Alive"},
		{"word with punctuation", "Song feat. Someone", "Song Someone"},
		{"nothing to remove", "Hey  Jude", "Hey  Jude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FilterOutWords(tt.input, testVocabulary.FilterOutWords))
		})
	}
}

func TestFilterOutQuotes(t *testing.T) {
	assert.Equal(t, "Dont Stop Me Now", FilterOutQuotes("Don’t Stop Me Now", testVocabulary.FilterOutQuotes))
	assert.Equal(t, "Say It", FilterOutQuotes("«Say» „It“", testVocabulary.FilterOutQuotes))
	assert.Equal(t, "Rock n Roll", FilterOutQuotes("Rock 'n' Roll", testVocabulary.FilterOutQuotes))
	assert.Equal(t, "untouched", FilterOutQuotes("untouched", nil))
}

func TestCutOffSeparators(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"dash", "Spotlight - Single Edit", "Spotlight"},
		{"earliest wins over configured order", "Song (Live) - Remastered", "Song"},
		{"feat separator", "Song feat. Someone - Remix", "Song"},
		{"case insensitive", "Song FEAT Someone", "Song"},
		{"no separator", "Plain", "Plain"},
		{"separator at start is ignored", " - Intro", " - Intro"},
		{"multi-byte letters that shrink when lowered", "ȺȺȺȺȺȺ - Live", "ȺȺȺȺȺȺ"},
		{"kelvin sign", "\u212aKK Song - Remix", "\u212aKK Song"},
		{"dotted capital I", "İstanbul - Live", "İstanbul"},
		{"accented text before a bracket", "Été (Édit radio)", "Été"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CutOffSeparators(tt.input, testVocabulary.CutOffSeparators))
		})
	}
}

func TestCutOffSeparatorsKeepsValidUTF8(t *testing.T) {
	assert.Equal(t, "ȺȺȺȺȺȺ", CutOffSeparators("ȺȺȺȺȺȺ -", []string{" -"}))
	assert.Equal(t, "ȺȺȺȺȺȺ", Normalize("ȺȺȺȺȺȺ - Live", Approach{ID: "trim", Trim: true}, testVocabulary))

	for _, input := range []string{"\u212a\u212a\u212a Song - Remix", "ΣΑΣ feat Someone", "İİİ (Live)"} {
		out := CutOffSeparators(input, testVocabulary.CutOffSeparators)
		assert.True(t, utf8.ValidString(out), "output for %q is not valid UTF-8: %q", input, out)
	}
}

func TestFoldDiacritics(t *testing.T) {
	assert.Equal(t, "Beyonce", FoldDiacritics("Beyoncé"))
	assert.Equal(t, "Sigur Ros", FoldDiacritics("Sigur Rós"))
	assert.Equal(t, "Motley Crue", FoldDiacritics("Mötley Crüe"))
	assert.Equal(t, "plain", FoldDiacritics("plain"))
}

func TestNormalizeOrder(t *testing.T) {
	all := Approach{ID: "all", Filtered: true, Trim: true, RemoveQuotes: true}

	t.Run("each step is optional", func(t *testing.T) {
		input := "Don’t Stop - Live Remastered"
		assert.Equal(t, input, Normalize(input, Approach{ID: "normal"}, testVocabulary))
		assert.Equal(t, "Dont Stop - Live Remastered", Normalize(input, Approach{ID: "q", RemoveQuotes: true}, testVocabulary))
		assert.Equal(t, "Don’t Stop", Normalize(input, Approach{ID: "t", Trim: true}, testVocabulary))
		assert.Equal(t, "Don’t Stop -", Normalize(input, Approach{ID: "f", Filtered: true}, testVocabulary))
		assert.Equal(t, "Dont Stop", Normalize(input, all, testVocabulary))
	})

	t.Run("trim runs before filtering", func(t *testing.T) {
		// Filtering first would leave "- Forever", which no separator matches.
		input := "Live - Forever"
		assert.Equal(t, "", Normalize(input, Approach{ID: "f", Filtered: true, Trim: true}, Config{
			FilterOutWords:   []string{"live"},
			CutOffSeparators: []string{" - "},
		}))
		assert.Equal(t, "- Forever", FilterOutWords(input, []string{"live"}))
	})

	t.Run("diacritics folded first", func(t *testing.T) {
		assert.Equal(t, "Beyonce", Normalize("Beyoncé", Approach{ID: "fold", FoldDiacritics: true}, testVocabulary))
	})
}
