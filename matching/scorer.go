package matching

import (
	"fmt"
	"strings"
)

// Field names a compared attribute in a Scores set.
type Field string

// Fields a filter rule can refer to.
const (
	FieldArtist          Field = "artist"
	FieldTitle           Field = "title"
	FieldAlbum           Field = "album"
	FieldArtistInTitle   Field = "artistInTitle"
	FieldArtistWithTitle Field = "artistWithTitle"
)

// Contains modes.
const (
	ContainsBidirectional     = "bidirectional"
	ContainsSourceInCandidate = "source-in-candidate"
)

// FieldMatch is the comparison of one field between source and candidate.
type FieldMatch struct {
	Match      bool    `json:"match"`
	Contains   bool    `json:"contains"`
	Similarity float64 `json:"similarity"`
}

// Scores holds one FieldMatch per compared field.
type Scores struct {
	Artist          FieldMatch `json:"artist"`
	Title           FieldMatch `json:"title"`
	Album           FieldMatch `json:"album"`
	ArtistInTitle   FieldMatch `json:"artistInTitle"`
	ArtistWithTitle FieldMatch `json:"artistWithTitle"`
}

// Get returns the FieldMatch for f.
func (s Scores) Get(f Field) (FieldMatch, bool) {
	switch f {
	case FieldArtist:
		return s.Artist, true
	case FieldTitle:
		return s.Title, true
	case FieldAlbum:
		return s.Album, true
	case FieldArtistInTitle:
		return s.ArtistInTitle, true
	case FieldArtistWithTitle:
		return s.ArtistWithTitle, true
	default:
		return FieldMatch{}, false
	}
}

// Scorer computes Scores for candidates. It never rejects anything.
type Scorer struct {
	metric      Metric
	directional bool
}

// NewScorer builds a scorer for the named metric and contains mode.
func NewScorer(metricName, containsMode string) (*Scorer, error) {
	metric, err := NewMetric(metricName)
	if err != nil {
		return nil, err
	}

	s := &Scorer{metric: metric}
	switch containsMode {
	case "", ContainsBidirectional:
	case ContainsSourceInCandidate:
		s.directional = true
	default:
		return nil, fmt.Errorf("unknown contains mode %q", containsMode)
	}
	return s, nil
}

// Similarity exposes the scorer's metric on compare keys.
func (s *Scorer) Similarity(a, b string) float64 {
	return s.metric.Compare(compareKey(a), compareKey(b))
}

// Score compares the source fields of q against a candidate.
func (s *Scorer) Score(q Query, c Candidate) Scores {
	return Scores{
		Artist:          s.compare(q.Artist, c.Artist),
		Title:           s.compare(q.Title, c.Title),
		Album:           s.compare(q.Album, c.Album),
		ArtistInTitle:   s.artistInTitle(q.Artist, c.Title),
		ArtistWithTitle: s.compare(joinNonEmpty(q.Artist, q.Title), joinNonEmpty(c.Artist, c.Title)),
	}
}

func (s *Scorer) compare(source, candidate string) FieldMatch {
	src, cand := compareKey(source), compareKey(candidate)
	if src == "" || cand == "" {
		return FieldMatch{}
	}

	contains := strings.Contains(cand, src)
	if !s.directional && !contains {
		contains = strings.Contains(src, cand)
	}

	return FieldMatch{
		Match:      src == cand,
		Contains:   contains,
		Similarity: s.metric.Compare(src, cand),
	}
}

// artistInTitle looks for the source artist inside the candidate's title, for
// catalogs that store "Artist - Title" in the title field.
func (s *Scorer) artistInTitle(artist, title string) FieldMatch {
	a, t := compareKey(artist), compareKey(title)
	if a == "" || t == "" {
		return FieldMatch{}
	}

	fm := FieldMatch{Contains: strings.Contains(t, a)}
	for _, part := range strings.Split(t, " - ") {
		if strings.TrimSpace(part) == a {
			fm.Match = true
			break
		}
	}

	words := strings.Fields(t)
	size := len(strings.Fields(a))
	if size >= len(words) {
		fm.Similarity = s.metric.Compare(a, t)
		return fm
	}
	for i := 0; i+size <= len(words); i++ {
		if sim := s.metric.Compare(a, strings.Join(words[i:i+size], " ")); sim > fm.Similarity {
			fm.Similarity = sim
		}
	}
	return fm
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
