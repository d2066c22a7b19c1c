package linkcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FileStore keeps the links as a JSON array in a single file. Every Save
// rewrites the whole file through a temporary file and a rename.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path. The file is created on the
// first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the document. A missing file is an empty cache. A file that does
// not parse is also treated as empty: a warning is logged and the file is
// copied to <path>.corrupt so the next Save does not lose it.
func (s *FileStore) Load(ctx context.Context) ([]TrackLink, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var links []TrackLink
	if err := json.Unmarshal(data, &links); err != nil {
		log.Printf("⚠️  Warning: link cache %s is corrupt, starting from an empty cache: %v", s.path, err)
		if err := os.WriteFile(s.path+".corrupt", data, 0o644); err != nil {
			log.Printf("⚠️  Warning: failed to keep a copy of the corrupt cache: %v", err)
		}
		return nil, nil
	}
	return links, nil
}

// Save replaces the document.
func (s *FileStore) Save(ctx context.Context, links []TrackLink) error {
	if links == nil {
		links = []TrackLink{}
	}
	data, err := json.MarshalIndent(links, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode link cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}
