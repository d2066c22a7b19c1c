// Package matching decides whether a candidate from a foreign catalog is the
// same recording as a source track, using only title, artist and album text.
package matching

import (
	"github.com/garry/tracklink/textproc"
)

// SourceTrack is the track being looked for. ID is the source catalog's
// identifier and the key every cached link is stored under.
type SourceTrack struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Artists []string `json:"artists"`
	Album   string   `json:"album,omitempty"`
	AlbumID string   `json:"albumId,omitempty"`
	ISRC    string   `json:"isrc,omitempty"`
}

// PrimaryArtist returns the first credited artist, or "" when there is none.
func (t SourceTrack) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// Query is the literal text sent to a backend for one search attempt.
type Query struct {
	Approach string `json:"approach"`
	Artist   string `json:"artist"`
	Title    string `json:"title"`
	Album    string `json:"album"`
}

// SameText reports whether two queries would send identical text.
func (q Query) SameText(other Query) bool {
	return q.Artist == other.Artist && q.Title == other.Title && q.Album == other.Album
}

// Candidate is one entry returned by a backend.
type Candidate struct {
	ID     string         `json:"id"`
	Title  string         `json:"title"`
	Artist string         `json:"artist"`
	Album  string         `json:"album"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// Plan expands the approaches into one query each, in order. Album text is
// normalized with the same rules as the title. Identical queries are kept;
// skipping them is up to the caller.
func Plan(track SourceTrack, approaches []textproc.Approach, vocab textproc.Config) []Query {
	queries := make([]Query, 0, len(approaches))
	for _, approach := range approaches {
		queries = append(queries, Query{
			Approach: approach.ID,
			Artist:   textproc.Normalize(track.PrimaryArtist(), approach, vocab),
			Title:    textproc.Normalize(track.Title, approach, vocab),
			Album:    textproc.Normalize(track.Album, approach, vocab),
		})
	}
	return queries
}

// RawQuery returns the track's un-normalized fields as a query.
func RawQuery(track SourceTrack) Query {
	return Query{
		Approach: "raw",
		Artist:   track.PrimaryArtist(),
		Title:    track.Title,
		Album:    track.Album,
	}
}
