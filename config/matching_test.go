package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garry/tracklink/matching"
	"github.com/garry/tracklink/search"
	"github.com/garry/tracklink/textproc"
)

func TestDefaultMatchingIsValid(t *testing.T) {
	m := DefaultMatching()
	require.NoError(t, m.Validate())
	assert.NotNil(t, m.Filter())

	opts := m.SearchOptions(true, false)
	assert.True(t, opts.UseCache)
	assert.Equal(t, search.DefaultAdapterTimeout, opts.AdapterTimeout)
	assert.Equal(t, 1, opts.MinMatches)
	assert.Len(t, opts.Approaches, 5)
}

func TestDefaultMatchingReturnsFreshCopies(t *testing.T) {
	a := DefaultMatching()
	a.SearchApproaches[0].ID = "changed"
	a.TextProcessing.FilterOutWords[0] = "changed"

	b := DefaultMatching()
	assert.Equal(t, "exact", b.SearchApproaches[0].ID)
	assert.Equal(t, "remastered", b.TextProcessing.FilterOutWords[0])
}

func TestParseMatchingPartialDocument(t *testing.T) {
	m, err := ParseMatching([]byte(`{
		"searchApproaches": [{"id": "only", "trim": true}],
		"textProcessing": {"filterOutWords": ["live"]},
		"matchFilters": ["title:match", {"filter": "artist:contains", "reason": "artist only"}],
		"adapterTimeout": "5s"
	}`))
	require.NoError(t, err)

	defaults := DefaultMatching()
	assert.Equal(t, []textproc.Approach{{ID: "only", Trim: true}}, m.SearchApproaches)
	assert.Equal(t, []string{"live"}, m.TextProcessing.FilterOutWords)
	assert.Equal(t, defaults.TextProcessing.FilterOutQuotes, m.TextProcessing.FilterOutQuotes, "sibling keys inherit")
	assert.Equal(t, defaults.TextProcessing.CutOffSeparators, m.TextProcessing.CutOffSeparators)
	assert.Equal(t, []matching.Rule{{Filter: "title:match"}, {Filter: "artist:contains", Reason: "artist only"}}, m.MatchFilters)
	assert.Equal(t, defaults.SimilarityMetric, m.SimilarityMetric)
	assert.Equal(t, Duration(5*time.Second), m.AdapterTimeout)

	reason, ok := m.Filter().Evaluate(matching.Scores{Artist: matching.FieldMatch{Contains: true}})
	assert.True(t, ok)
	assert.Equal(t, "artist only", reason)
}

func TestParseMatchingReplacesWholeApproaches(t *testing.T) {
	m, err := ParseMatching([]byte(`{"searchApproaches": [{"id": "exact"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []textproc.Approach{{ID: "exact"}}, m.SearchApproaches)
}

func TestParseMatchingNumericTimeout(t *testing.T) {
	m, err := ParseMatching([]byte(`{"adapterTimeout": 2.5}`))
	require.NoError(t, err)
	assert.Equal(t, Duration(2500*time.Millisecond), m.AdapterTimeout)
}

func TestParseMatchingErrors(t *testing.T) {
	tests := map[string]string{
		"not json":            `{`,
		"bad rule":            `{"matchFilters": ["title:matches"]}`,
		"duplicate ids":       `{"searchApproaches": [{"id": "a"}, {"id": "a"}]}`,
		"missing id":          `{"searchApproaches": [{"trim": true}]}`,
		"empty approaches":    `{"searchApproaches": []}`,
		"empty filters":       `{"matchFilters": []}`,
		"unknown metric":      `{"similarityMetric": "soundex"}`,
		"unknown mode":        `{"containsMode": "sideways"}`,
		"unknown scoring":     `{"scoreAgainst": "both"}`,
		"zero min matches":    `{"minMatches": 0}`,
		"bad timeout":         `{"adapterTimeout": "soon"}`,
		"wrong type":          `{"minMatches": "one"}`,
		"bad text processing": `{"textProcessing": {"filterOutWords": "live"}}`,
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMatching([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidMatching), "got %v", err)
		})
	}
}

func TestParseMatchingRuleErrorIsClassified(t *testing.T) {
	_, err := ParseMatching([]byte(`{"matchFilters": ["title:match", "title and artist"]}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, matching.ErrInvalidRule))

	var ruleErr *matching.RuleError
	require.True(t, errors.As(err, &ruleErr))
	assert.Equal(t, "title and artist", ruleErr.Rule)
}

func TestLoadMatchingMissingFileUsesDefaults(t *testing.T) {
	m, err := LoadMatching(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultMatching().SearchApproaches, m.SearchApproaches)
	assert.NotNil(t, m.Filter())
}

func TestMatchingSourceReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matching.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"minMatches": 2}`), 0o644))

	source, err := NewMatchingSource(path)
	require.NoError(t, err)
	assert.Equal(t, 2, source.Current().MinMatches)

	changed, err := source.Reload()
	require.NoError(t, err)
	assert.False(t, changed, "unchanged file is not reloaded")

	require.NoError(t, os.WriteFile(path, []byte(`{"minMatches": 3}`), 0o644))
	touch(t, path, time.Now().Add(time.Minute))
	changed, err = source.Reload()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 3, source.Current().MinMatches)

	require.NoError(t, os.WriteFile(path, []byte(`{"matchFilters": ["nonsense"]}`), 0o644))
	touch(t, path, time.Now().Add(2*time.Minute))
	changed, err = source.Reload()
	assert.Error(t, err)
	assert.False(t, changed)
	assert.Equal(t, 3, source.Current().MinMatches, "last good configuration stays active")
}

func TestNewMatchingSourceRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matching.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"matchFilters": ["title OR"]}`), 0o644))

	_, err := NewMatchingSource(path)
	assert.True(t, errors.Is(err, ErrInvalidMatching))
}

func touch(t *testing.T, path string, when time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(path, when, when))
}
