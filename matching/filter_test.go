package matching

import (
	"errors"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRuleDefaultsToMatch(t *testing.T) {
	expr, err := ParseRule("title")
	require.NoError(t, err)
	assert.Equal(t, Term{Field: FieldTitle, Op: OpMatch}, expr)
}

func TestParseRuleOperators(t *testing.T) {
	expr, err := ParseRule("artist:contains AND album:similarity>=0.75")
	require.NoError(t, err)
	assert.Equal(t, And{
		Left:  Term{Field: FieldArtist, Op: OpContains},
		Right: Term{Field: FieldAlbum, Op: OpSimilarity, Threshold: 0.75},
	}, expr)
}

func TestParseRuleToleratesSpacedComparison(t *testing.T) {
	expr, err := ParseRule("title:similarity >= 0.5")
	require.NoError(t, err)
	assert.Equal(t, Term{Field: FieldTitle, Op: OpSimilarity, Threshold: 0.5}, expr)
}

func TestParseRuleIsStrictlyLeftToRight(t *testing.T) {
	expr, err := ParseRule("artist OR title AND album")
	require.NoError(t, err)
	assert.Equal(t, "((artist:match OR title:match) AND album:match)", expr.String())

	// With conventional precedence this would be accepted: artist alone is true.
	scores := Scores{Artist: FieldMatch{Match: true}}
	assert.False(t, expr.Eval(scores))

	expr, err = ParseRule("artist AND title OR album")
	require.NoError(t, err)
	assert.Equal(t, "((artist:match AND title:match) OR album:match)", expr.String())
	assert.True(t, expr.Eval(Scores{Album: FieldMatch{Match: true}}))
}

func TestParseRuleErrors(t *testing.T) {
	tests := []string{
		"",
		"duration:match",
		"title:equals",
		"title:similarity>=abc",
		"title:similarity>=1.5",
		"title:similarity>=NaN",
		"title:similarity>=-0.1",
		"title AND",
		"title and artist",
		"title XOR artist",
		"Title:match",
	}

	for _, rule := range tests {
		t.Run(rule, func(t *testing.T) {
			_, err := ParseRule(rule)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRule))

			var ruleErr *RuleError
			require.True(t, errors.As(err, &ruleErr))
			assert.Equal(t, rule, ruleErr.Rule)
		})
	}
}

func TestFilterFirstMatchingRuleWins(t *testing.T) {
	filter, err := NewFilter([]Rule{
		{Filter: "title:match AND artist:match", Reason: "exact"},
		{Filter: "title:similarity>=0.7", Reason: "loose"},
	})
	require.NoError(t, err)

	scores := Scores{
		Title:  FieldMatch{Match: false, Similarity: 0.8},
		Artist: FieldMatch{Match: false},
	}
	reason, ok := filter.Evaluate(scores)
	assert.True(t, ok)
	assert.Equal(t, "loose", reason)

	scores.Title.Match = true
	scores.Artist.Match = true
	reason, ok = filter.Evaluate(scores)
	assert.True(t, ok)
	assert.Equal(t, "exact", reason)
}

func TestFilterRejectsWhenNoRuleHolds(t *testing.T) {
	filter, err := NewFilter([]Rule{{Filter: "title:match"}})
	require.NoError(t, err)

	reason, ok := filter.Evaluate(Scores{})
	assert.False(t, ok)
	assert.Empty(t, reason)
}

func TestFilterIsDeterministic(t *testing.T) {
	filter, err := NewFilter([]Rule{
		{Filter: "artist:contains AND title:contains", Reason: "contains"},
		{Filter: "artistWithTitle:similarity>=0.9", Reason: "combined"},
		{Filter: "artistInTitle:contains", Reason: "embedded"},
	})
	require.NoError(t, err)

	scores := Scores{
		ArtistWithTitle: FieldMatch{Similarity: 0.95},
		ArtistInTitle:   FieldMatch{Contains: true},
	}
	first, ok := filter.Evaluate(scores)
	require.True(t, ok)
	for i := 0; i < 50; i++ {
		reason, ok := filter.Evaluate(scores)
		assert.True(t, ok)
		assert.Equal(t, first, reason)
	}
	assert.Equal(t, "combined", first)
}

func TestNewFilterReportsEveryBadRule(t *testing.T) {
	_, err := NewFilter([]Rule{
		{Filter: "title:match"},
		{Filter: "bogus"},
		{Filter: "title:nearly"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRule))
	assert.Contains(t, err.Error(), "bogus")
	assert.Contains(t, err.Error(), "nearly")
}

func TestRuleReasonFallsBackToExpression(t *testing.T) {
	filter, err := NewFilter([]Rule{{Filter: "album:contains"}})
	require.NoError(t, err)

	reason, ok := filter.Evaluate(Scores{Album: FieldMatch{Contains: true}})
	assert.True(t, ok)
	assert.Equal(t, "album:contains", reason)
}

func TestRuleUnmarshalJSON(t *testing.T) {
	var rules []Rule
	err := jsoniter.Unmarshal([]byte(`["title:match", {"filter": "artist:contains", "reason": "artist contained"}]`), &rules)
	require.NoError(t, err)

	assert.Equal(t, []Rule{
		{Filter: "title:match"},
		{Filter: "artist:contains", Reason: "artist contained"},
	}, rules)

	err = jsoniter.Unmarshal([]byte(`[42]`), &rules)
	assert.Error(t, err)
}

func TestNewFilterRejectsNaNThreshold(t *testing.T) {
	_, err := NewFilter([]Rule{{Filter: "title:similarity>=NaN", Reason: "never"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRule))
}
