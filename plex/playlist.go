package plex

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PlaylistSync describes the playlist a sync should leave on the server
type PlaylistSync struct {
	Title             string
	Description       string
	SpotifyPlaylistID string
	TrackIDs          []string
}

// escapeDescription decodes HTML entities in playlist descriptions
func (c *Client) escapeDescription(description string) string {
	// Spotify hands out descriptions with entities like &#x2F; for /
	return html.UnescapeString(description)
}

// addSyncAttribution adds a sync attribution line to the description
func (c *Client) addSyncAttribution(description, spotifyPlaylistID string) string {
	if spotifyPlaylistID == "" {
		return description
	}

	syncLine := fmt.Sprintf("synced from Spotify: https://open.spotify.com/playlist/%s", spotifyPlaylistID)

	if description != "" {
		return description + "\n\n" + syncLine
	}

	return syncLine
}

// trackURI is the library URI Plex expects for playlist items
func (c *Client) trackURI(trackID string) string {
	return fmt.Sprintf("server://%s/com.plexapp.plugins.library/library/metadata/%s", c.serverID, trackID)
}

// withRetry runs a playlist mutation and retries it once after a short delay.
// A second failure is logged and returned.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}

	log.Printf("⚠️  Warning: %s failed, retrying in %s: %v", op, c.retryDelay, err)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.retryDelay):
	}

	if err := fn(); err != nil {
		log.Printf("❌ %s failed again, giving up: %v", op, err)
		return err
	}
	return nil
}

// GetPlaylists retrieves all playlists from the Plex server
func (c *Client) GetPlaylists(ctx context.Context) ([]PlexPlaylist, error) {
	body, err := c.do(ctx, "playlists", http.MethodGet, "/playlists", nil, "application/xml")
	if err != nil {
		return nil, err
	}

	var playlistResp PlexResponse
	if err := xml.Unmarshal(body, &playlistResp); err != nil {
		return nil, fmt.Errorf("failed to decode playlists response: %w", err)
	}

	return playlistResp.Playlists, nil
}

// FindPlaylist returns the playlist with exactly this title, or nil
func (c *Client) FindPlaylist(ctx context.Context, title string) (*PlexPlaylist, error) {
	playlists, err := c.GetPlaylists(ctx)
	if err != nil {
		return nil, err
	}
	for i := range playlists {
		if playlists[i].Title == title {
			return &playlists[i], nil
		}
	}
	return nil, nil
}

// CreatePlaylist creates a new audio playlist seeded with one track, which
// Plex requires
func (c *Client) CreatePlaylist(ctx context.Context, title, description, firstTrackID, spotifyPlaylistID string) (*PlexPlaylist, error) {
	params := url.Values{}
	params.Add("type", "audio")
	params.Add("title", title)
	params.Add("smart", "0")
	params.Add("uri", c.trackURI(firstTrackID))

	if spotifyPlaylistID != "" || description != "" {
		params.Add("summary", c.escapeDescription(c.addSyncAttribution(description, spotifyPlaylistID)))
	}

	var created *PlexPlaylist
	err := c.withRetry(ctx, "create playlist "+title, func() error {
		body, err := c.do(ctx, "playlist creation", http.MethodPost, "/playlists", params,
			"application/json, text/plain, */*", http.StatusOK, http.StatusCreated)
		if err != nil {
			return err
		}

		var playlistResp struct {
			MediaContainer struct {
				Metadata []PlexPlaylistJSON `json:"Metadata"`
			} `json:"MediaContainer"`
		}
		if err := json.Unmarshal(body, &playlistResp); err != nil {
			return fmt.Errorf("failed to decode playlist creation response: %w", err)
		}
		if len(playlistResp.MediaContainer.Metadata) == 0 {
			return fmt.Errorf("no playlist returned from creation request")
		}

		jsonPlaylist := playlistResp.MediaContainer.Metadata[0]
		created = &PlexPlaylist{
			ID:          jsonPlaylist.ID,
			Title:       jsonPlaylist.Title,
			Description: jsonPlaylist.Description,
			TrackCount:  jsonPlaylist.TrackCount,
			CreatedAt:   fmt.Sprintf("%v", jsonPlaylist.CreatedAt),
			UpdatedAt:   fmt.Sprintf("%v", jsonPlaylist.UpdatedAt),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Successfully created playlist with track: %s (ID: %s)", created.Title, created.ID)
	return created, nil
}

// UpdatePlaylistMetadata updates the title and description of an existing playlist
func (c *Client) UpdatePlaylistMetadata(ctx context.Context, playlistID, title, description, spotifyPlaylistID string) error {
	params := url.Values{}
	params.Add("type", "audio")
	if title != "" {
		params.Add("title", title)
	}
	if spotifyPlaylistID != "" || description != "" {
		params.Add("summary", c.escapeDescription(c.addSyncAttribution(description, spotifyPlaylistID)))
	}

	err := c.withRetry(ctx, "update playlist "+playlistID, func() error {
		_, err := c.do(ctx, "playlist update", http.MethodPut, "/playlists/"+playlistID, params,
			"application/json, text/plain, */*", http.StatusOK, http.StatusCreated)
		return err
	})
	if err != nil {
		return err
	}

	log.Printf("Successfully updated playlist metadata: %s (ID: %s)", title, playlistID)
	return nil
}

// ClearPlaylist removes all tracks from an existing playlist
func (c *Client) ClearPlaylist(ctx context.Context, playlistID string) error {
	log.Printf("Clearing playlist %s", playlistID)

	err := c.withRetry(ctx, "clear playlist "+playlistID, func() error {
		_, err := c.do(ctx, "playlist clear", http.MethodDelete, "/playlists/"+playlistID+"/items", nil,
			"application/xml", http.StatusOK, http.StatusNoContent)
		return err
	})
	if err != nil {
		return err
	}

	log.Printf("Successfully cleared playlist: %s", playlistID)
	return nil
}

// AddTracksToPlaylist adds tracks one at a time. A track that still fails
// after its retry is skipped; the call fails only when nothing was added.
func (c *Client) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}

	log.Printf("Adding %d tracks to playlist %s", len(trackIDs), playlistID)

	successCount := 0
	for _, trackID := range trackIDs {
		if err := ctx.Err(); err != nil {
			return err
		}

		params := url.Values{}
		params.Add("uri", c.trackURI(trackID))

		err := c.withRetry(ctx, "add track "+trackID, func() error {
			body, err := c.do(ctx, "playlist add", http.MethodPut, "/playlists/"+playlistID+"/items", params, "application/xml")
			if err != nil {
				return err
			}
			if strings.Contains(string(body), `leafCountAdded="0"`) {
				return fmt.Errorf("track %s was not added (leafCountAdded=0)", trackID)
			}
			return nil
		})
		if err != nil {
			continue
		}

		c.debugLog("✅ Track %s was successfully added", trackID)
		successCount++
	}

	if successCount == 0 {
		return fmt.Errorf("failed to add any tracks to playlist - this may be due to server configuration restrictions or playlist permissions. Please check if playlist modifications are enabled on your Plex server and ensure your token has write permissions")
	}

	c.debugLog("Successfully processed %d/%d tracks for playlist %s", successCount, len(trackIDs), playlistID)
	return nil
}

// SyncPlaylist makes the same-named playlist hold exactly the given tracks,
// creating it when missing. Metadata update failures are only logged.
func (c *Client) SyncPlaylist(ctx context.Context, sync PlaylistSync) (*PlexPlaylist, error) {
	if len(sync.TrackIDs) == 0 {
		log.Printf("No tracks matched, skipping playlist creation")
		return nil, nil
	}
	if _, err := c.EnsureServerID(ctx); err != nil {
		return nil, fmt.Errorf("failed to discover plex server id: %w", err)
	}

	log.Printf("Checking for existing playlist: %s", sync.Title)
	playlist, err := c.FindPlaylist(ctx, sync.Title)
	if err != nil {
		log.Printf("❌ Failed to get existing playlists: %v", err)
		return nil, err
	}

	remaining := sync.TrackIDs
	if playlist != nil {
		log.Printf("✅ Found existing playlist: %s (ID: %s, Current tracks: %d)", playlist.Title, playlist.ID, playlist.TrackCount)
		log.Printf("🔄 Syncing playlist to match Spotify source of truth...")

		if err := c.UpdatePlaylistMetadata(ctx, playlist.ID, sync.Title, sync.Description, sync.SpotifyPlaylistID); err != nil {
			log.Printf("⚠️  Warning: Failed to update playlist metadata: %v", err)
		}
		if err := c.ClearPlaylist(ctx, playlist.ID); err != nil {
			log.Printf("❌ Failed to clear playlist: %v", err)
			return playlist, err
		}
	} else {
		log.Printf("Creating new playlist: %s", sync.Title)
		playlist, err = c.CreatePlaylist(ctx, sync.Title, sync.Description, sync.TrackIDs[0], sync.SpotifyPlaylistID)
		if err != nil {
			log.Printf("❌ Failed to create playlist: %v", err)
			return nil, err
		}
		log.Printf("✅ Created new playlist: %s (ID: %s)", playlist.Title, playlist.ID)
		remaining = sync.TrackIDs[1:]
	}

	if len(remaining) > 0 {
		if err := c.AddTracksToPlaylist(ctx, playlist.ID, remaining); err != nil {
			log.Printf("❌ Failed to add tracks to playlist: %v", err)
			return playlist, err
		}
	}

	log.Printf("✅ Playlist %s now holds %d tracks", playlist.Title, len(sync.TrackIDs))
	return playlist, nil
}
