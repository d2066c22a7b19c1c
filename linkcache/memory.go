package linkcache

import (
	"context"
	"sync"
)

// MemoryStore keeps the document in memory. Loads return a deep copy.
type MemoryStore struct {
	mu    sync.Mutex
	links []TrackLink
	saves int
}

// NewMemoryStore returns a store seeded with links.
func NewMemoryStore(links ...TrackLink) *MemoryStore {
	return &MemoryStore{links: copyLinks(links)}
}

func (m *MemoryStore) Load(ctx context.Context) ([]TrackLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyLinks(m.links), nil
}

func (m *MemoryStore) Save(ctx context.Context, links []TrackLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = copyLinks(links)
	m.saves++
	return nil
}

// Saves counts Save calls.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func copyLinks(links []TrackLink) []TrackLink {
	out := make([]TrackLink, len(links))
	for i, l := range links {
		out[i] = TrackLink{
			SpotifyID:     l.SpotifyID,
			PlexID:        cloneStrings(l.PlexID),
			TidalID:       cloneStrings(l.TidalID),
			SlskdFiles:    cloneFiles(l.SlskdFiles),
			MusicBrainzID: cloneStrings(l.MusicBrainzID),
		}
	}
	return out
}
