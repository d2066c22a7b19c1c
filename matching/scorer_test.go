package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var similaritySamples = []string{
	"",
	"a",
	"Shape of You",
	"shape of you",
	"Shape of You - Acoustic",
	"Bohemian Rhapsody",
	"Beyoncé",
	"Beyonce",
	"The Lakes",
	"Lakes",
}

func TestMetricsAreReflexiveAndSymmetric(t *testing.T) {
	for _, name := range []string{MetricLevenshtein, MetricJaroWinkler, MetricSorensenDice} {
		t.Run(name, func(t *testing.T) {
			metric, err := NewMetric(name)
			require.NoError(t, err)

			for _, a := range similaritySamples {
				assert.Equal(t, 1.0, metric.Compare(a, a), "reflexive for %q", a)
				for _, b := range similaritySamples {
					ab, ba := metric.Compare(a, b), metric.Compare(b, a)
					assert.InDelta(t, ab, ba, 1e-12, "symmetric for %q/%q", a, b)
					assert.GreaterOrEqual(t, ab, 0.0)
					assert.LessOrEqual(t, ab, 1.0)
				}
			}
		})
	}
}

func TestLevenshteinRatioGrowsWithOverlap(t *testing.T) {
	metric, err := NewMetric(MetricLevenshtein)
	require.NoError(t, err)

	far := metric.Compare("shape of you", "castle on the hill")
	near := metric.Compare("shape of you", "shape of me")
	assert.Greater(t, near, far)
	assert.InDelta(t, 1.0-3.0/12.0, near, 1e-9)
}

func TestNewMetricUnknown(t *testing.T) {
	_, err := NewMetric("soundex")
	assert.Error(t, err)
}

func TestScorerFieldMatches(t *testing.T) {
	scorer, err := NewScorer(MetricLevenshtein, ContainsBidirectional)
	require.NoError(t, err)

	q := Query{Artist: "Ed Sheeran", Title: "Shape of You", Album: "÷"}
	c := Candidate{ID: "1", Artist: "ed  sheeran", Title: "Shape of You (Acoustic)", Album: ""}

	scores := scorer.Score(q, c)

	assert.True(t, scores.Artist.Match, "case and whitespace are ignored")
	assert.True(t, scores.Artist.Contains)
	assert.Equal(t, 1.0, scores.Artist.Similarity)

	assert.False(t, scores.Title.Match)
	assert.True(t, scores.Title.Contains)
	assert.Greater(t, scores.Title.Similarity, 0.5)
	assert.Less(t, scores.Title.Similarity, 1.0)

	assert.Equal(t, FieldMatch{}, scores.Album, "an empty side scores zero")

	assert.False(t, scores.ArtistWithTitle.Match)
	assert.True(t, scores.ArtistWithTitle.Contains)
}

func TestScorerContainsDirection(t *testing.T) {
	q := Query{Title: "Shape of You (Acoustic)"}
	c := Candidate{Title: "Shape of You"}

	both, err := NewScorer("", "")
	require.NoError(t, err)
	assert.True(t, both.Score(q, c).Title.Contains)

	directional, err := NewScorer("", ContainsSourceInCandidate)
	require.NoError(t, err)
	assert.False(t, directional.Score(q, c).Title.Contains)
	assert.True(t, directional.Score(Query{Title: "Shape of You"}, Candidate{Title: "Shape of You (Acoustic)"}).Title.Contains)

	_, err = NewScorer("", "sideways")
	assert.Error(t, err)
}

func TestScorerArtistInTitle(t *testing.T) {
	scorer, err := NewScorer("", "")
	require.NoError(t, err)

	t.Run("artist embedded as a dash part", func(t *testing.T) {
		scores := scorer.Score(
			Query{Artist: "Daft Punk", Title: "One More Time"},
			Candidate{Title: "Daft Punk - One More Time", Artist: "Various Artists"},
		)
		assert.True(t, scores.ArtistInTitle.Match)
		assert.True(t, scores.ArtistInTitle.Contains)
		assert.Equal(t, 1.0, scores.ArtistInTitle.Similarity)
	})

	t.Run("fuzzy artist inside title", func(t *testing.T) {
		scores := scorer.Score(
			Query{Artist: "Beyonce", Title: "Halo"},
			Candidate{Title: "Halo by Beyoncé"},
		)
		assert.False(t, scores.ArtistInTitle.Match)
		assert.False(t, scores.ArtistInTitle.Contains)
		assert.InDelta(t, 1.0-1.0/7.0, scores.ArtistInTitle.Similarity, 1e-9)
	})

	t.Run("artist absent", func(t *testing.T) {
		scores := scorer.Score(Query{Artist: "Adele", Title: "Hello"}, Candidate{Title: ""})
		assert.Equal(t, FieldMatch{}, scores.ArtistInTitle)
	})
}

func TestScorerArtistWithTitle(t *testing.T) {
	scorer, err := NewScorer("", "")
	require.NoError(t, err)

	// Catalog swapped artist and title around; the concatenation still lines up
	// once both sides are joined the same way.
	scores := scorer.Score(
		Query{Artist: "Queen", Title: "Bohemian Rhapsody"},
		Candidate{Artist: "Queen Bohemian", Title: "Rhapsody"},
	)
	assert.False(t, scores.Artist.Match)
	assert.False(t, scores.Title.Match)
	assert.True(t, scores.ArtistWithTitle.Match)
}
