package linkcache

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps one row per link. Id lists are stored as JSON text.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open link cache database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS track_links (
			position       INTEGER NOT NULL,
			spotify_id     TEXT PRIMARY KEY,
			plex_id        TEXT,
			tidal_id       TEXT,
			slskd_files    TEXT,
			musicbrainz_id TEXT
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize link cache database: %w", err)
	}

	log.Printf("Link cache SQLite database initialized at %s", dbPath)
	return &SQLiteStore{db: db}, nil
}

// Load reads every link in stored order. Rows whose columns do not decode are
// skipped with a warning.
func (s *SQLiteStore) Load(ctx context.Context) ([]TrackLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT spotify_id, plex_id, tidal_id, slskd_files, musicbrainz_id
		FROM track_links ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query link cache: %w", err)
	}
	defer rows.Close()

	var links []TrackLink
	for rows.Next() {
		var (
			l                        TrackLink
			plex, tidal, slskd, mbid sql.NullString
		)
		if err := rows.Scan(&l.SpotifyID, &plex, &tidal, &slskd, &mbid); err != nil {
			return nil, fmt.Errorf("failed to scan link cache row: %w", err)
		}
		if err := decodeColumns(&l, plex, tidal, slskd, mbid); err != nil {
			log.Printf("⚠️  Warning: skipping unreadable link cache row %s: %v", l.SpotifyID, err)
			continue
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read link cache: %w", err)
	}
	return links, nil
}

// Save replaces every row in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, links []TrackLink) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin link cache transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM track_links`); err != nil {
		return fmt.Errorf("failed to clear link cache: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO track_links (position, spotify_id, plex_id, tidal_id, slskd_files, musicbrainz_id)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare link cache insert: %w", err)
	}
	defer stmt.Close()

	for i, l := range links {
		plex, tidal, slskd, mbid, err := encodeColumns(l)
		if err != nil {
			return fmt.Errorf("failed to encode link %s: %w", l.SpotifyID, err)
		}
		if _, err := stmt.ExecContext(ctx, i, l.SpotifyID, plex, tidal, slskd, mbid); err != nil {
			return fmt.Errorf("failed to insert link %s: %w", l.SpotifyID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit link cache: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeColumns(l TrackLink) (plex, tidal, slskd, mbid sql.NullString, err error) {
	if plex, err = encodeColumn(l.PlexID, len(l.PlexID)); err != nil {
		return
	}
	if tidal, err = encodeColumn(l.TidalID, len(l.TidalID)); err != nil {
		return
	}
	if slskd, err = encodeColumn(l.SlskdFiles, len(l.SlskdFiles)); err != nil {
		return
	}
	mbid, err = encodeColumn(l.MusicBrainzID, len(l.MusicBrainzID))
	return
}

func encodeColumn(v any, n int) (sql.NullString, error) {
	if n == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeColumns(l *TrackLink, plex, tidal, slskd, mbid sql.NullString) error {
	for _, col := range []struct {
		raw sql.NullString
		dst any
	}{
		{plex, &l.PlexID},
		{tidal, &l.TidalID},
		{slskd, &l.SlskdFiles},
		{mbid, &l.MusicBrainzID},
	} {
		if !col.raw.Valid || col.raw.String == "" {
			continue
		}
		if err := json.Unmarshal([]byte(col.raw.String), col.dst); err != nil {
			return err
		}
	}
	return nil
}
