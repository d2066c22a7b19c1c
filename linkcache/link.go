// Package linkcache persists the ids a source track resolved to on each
// foreign catalog, so later runs can skip searching.
package linkcache

import "fmt"

// Backend tags the catalog a cached id list belongs to.
type Backend string

const (
	BackendPlex        Backend = "plex"
	BackendTidal       Backend = "tidal"
	BackendSlskd       Backend = "slskd"
	BackendMusicBrainz Backend = "musicbrainz"
)

// ParseBackend validates a backend tag.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(s); b {
	case BackendPlex, BackendTidal, BackendSlskd, BackendMusicBrainz:
		return b, nil
	default:
		return "", fmt.Errorf("unknown backend %q", s)
	}
}

// SlskdFile is a file on a Soulseek peer.
type SlskdFile struct {
	Username string `json:"username"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// TrackLink is the cached mapping for one source id. The source id is either
// a track id or, for album links, the album's id.
type TrackLink struct {
	SpotifyID     string      `json:"spotify_id"`
	PlexID        []string    `json:"plex_id,omitempty"`
	TidalID       []string    `json:"tidal_id,omitempty"`
	SlskdFiles    []SlskdFile `json:"slskd_files,omitempty"`
	MusicBrainzID []string    `json:"musicbrainz_id,omitempty"`
}

// IDs returns the cached id list for b. For slskd the ids are the file names.
func (l TrackLink) IDs(b Backend) []string {
	switch b {
	case BackendPlex:
		return l.PlexID
	case BackendTidal:
		return l.TidalID
	case BackendMusicBrainz:
		return l.MusicBrainzID
	case BackendSlskd:
		ids := make([]string, 0, len(l.SlskdFiles))
		for _, f := range l.SlskdFiles {
			ids = append(ids, f.Filename)
		}
		return ids
	default:
		return nil
	}
}

// Has reports whether the link carries anything for b.
func (l TrackLink) Has(b Backend) bool {
	if b == BackendSlskd {
		return len(l.SlskdFiles) > 0
	}
	return len(l.IDs(b)) > 0
}

// set overwrites the backend's field.
func (l *TrackLink) set(b Backend, ids []string, files []SlskdFile) {
	switch b {
	case BackendPlex:
		l.PlexID = ids
	case BackendTidal:
		l.TidalID = ids
	case BackendMusicBrainz:
		l.MusicBrainzID = ids
	case BackendSlskd:
		l.SlskdFiles = files
	}
}
