package linkcache

import (
	"context"
	"fmt"
	"sync"
)

// Store loads and saves the whole link document.
type Store interface {
	Load(ctx context.Context) ([]TrackLink, error)
	Save(ctx context.Context, links []TrackLink) error
}

// Entry is one successful search result to record.
type Entry struct {
	SpotifyID string
	IDs       []string
	Files     []SlskdFile
}

func (e Entry) empty(b Backend) bool {
	if b == BackendSlskd {
		return len(e.Files) == 0
	}
	return len(e.IDs) == 0
}

// Cache serializes read-modify-write cycles against a Store. Every in-process
// writer must go through the same Cache.
type Cache struct {
	mu    sync.Mutex
	store Store
}

// New returns a cache over store.
func New(store Store) *Cache {
	return &Cache{store: store}
}

// Lookup returns the links among ids that hold a non-empty id list for b, in
// the order the ids were given. Anything else is a miss and must be searched.
func (c *Cache) Lookup(ctx context.Context, ids []string, b Backend) ([]TrackLink, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	links, err := c.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load link cache: %w", err)
	}

	byID := make(map[string]TrackLink, len(links))
	for _, l := range links {
		byID[l.SpotifyID] = l
	}

	var hits []TrackLink
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if l, ok := byID[id]; ok && l.Has(b) {
			hits = append(hits, l)
		}
	}
	return hits, nil
}

// All returns every stored link.
func (c *Cache) All(ctx context.Context) ([]TrackLink, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Load(ctx)
}

// Add records entries for backend b. The backend field of each link is
// overwritten, never appended to. Entries without ids are ignored. When
// albumID is set, the album's own link receives the de-duplicated union of
// all entry ids.
func (c *Cache) Add(ctx context.Context, b Backend, entries []Entry, albumID string) error {
	if _, err := ParseBackend(string(b)); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	links, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load link cache: %w", err)
	}

	index := make(map[string]int, len(links))
	for i, l := range links {
		index[l.SpotifyID] = i
	}
	upsert := func(id string, ids []string, files []SlskdFile) {
		i, ok := index[id]
		if !ok {
			links = append(links, TrackLink{SpotifyID: id})
			i = len(links) - 1
			index[id] = i
		}
		links[i].set(b, ids, files)
	}

	var (
		albumIDs   []string
		albumFiles []SlskdFile
		seenIDs    = make(map[string]bool)
		seenFiles  = make(map[SlskdFile]bool)
		changed    bool
	)
	for _, e := range entries {
		if e.SpotifyID == "" || e.empty(b) {
			continue
		}
		upsert(e.SpotifyID, cloneStrings(e.IDs), cloneFiles(e.Files))
		changed = true

		for _, id := range e.IDs {
			if !seenIDs[id] {
				seenIDs[id] = true
				albumIDs = append(albumIDs, id)
			}
		}
		for _, f := range e.Files {
			if !seenFiles[f] {
				seenFiles[f] = true
				albumFiles = append(albumFiles, f)
			}
		}
	}
	if !changed {
		return nil
	}
	if albumID != "" {
		upsert(albumID, albumIDs, albumFiles)
	}

	if err := c.store.Save(ctx, links); err != nil {
		return fmt.Errorf("failed to save link cache: %w", err)
	}
	return nil
}

func cloneStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return append([]string(nil), s...)
}

func cloneFiles(f []SlskdFile) []SlskdFile {
	if len(f) == 0 {
		return nil
	}
	return append([]SlskdFile(nil), f...)
}
