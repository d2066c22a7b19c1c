package spotify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/garry/tracklink/config"
	"github.com/garry/tracklink/matching"
)

// pageSize is the largest page the playlist endpoints return
const pageSize = 100

// Client wraps the Spotify API client
type Client struct {
	client *spotify.Client
	config *config.Config
}

// PlaylistInfo represents basic information about a playlist
type PlaylistInfo struct {
	ID          string
	Name        string
	Description string
	Owner       string
	TrackCount  int
	Public      bool
}

// MusicBrainzResolver finds MusicBrainz recording ids for tracks
type MusicBrainzResolver interface {
	GetMusicBrainzIDByISRC(ctx context.Context, isrc string) (string, error)
	GetMusicBrainzIDByArtistAndTitle(ctx context.Context, artist, title string) (string, error)
}

// NewClient creates a new Spotify client using the client credentials flow,
// which needs no user interaction and suits CLI and cron usage
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	credentials := &clientcredentials.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	// Fetch a token now so bad credentials fail before any work starts
	token, err := credentials.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	httpClient := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(token, credentials.TokenSource(ctx)))
	return NewClientWithHTTP(cfg, httpClient), nil
}

// NewClientWithHTTP creates a client on an already authenticated HTTP client.
// Extra options such as spotify.WithBaseURL are passed through.
func NewClientWithHTTP(cfg *config.Config, httpClient *http.Client, opts ...spotify.ClientOption) *Client {
	return &Client{
		client: spotify.New(httpClient, opts...),
		config: cfg,
	}
}

// GetUserPublicPlaylists fetches all public playlists for a Spotify user
func (c *Client) GetUserPublicPlaylists(ctx context.Context, username string) ([]PlaylistInfo, error) {
	var playlists []PlaylistInfo

	userPlaylists, err := c.client.GetPlaylistsForUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user playlists: %w", err)
	}

	// Collect all playlists, handling pagination
	for {
		for _, playlist := range userPlaylists.Playlists {
			if playlist.IsPublic {
				playlists = append(playlists, PlaylistInfo{
					ID:          string(playlist.ID),
					Name:        playlist.Name,
					Description: playlist.Description,
					Owner:       playlist.Owner.DisplayName,
					TrackCount:  int(playlist.Tracks.Total),
					Public:      playlist.IsPublic,
				})
			}
		}

		err := c.client.NextPage(ctx, userPlaylists)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get next page of user playlists: %w", err)
		}
	}

	return playlists, nil
}

// GetPlaylistInfo returns basic information about a playlist
func (c *Client) GetPlaylistInfo(ctx context.Context, playlistID string) (*PlaylistInfo, error) {
	playlist, err := c.client.GetPlaylist(ctx, spotify.ID(playlistID))
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist info: %w", err)
	}

	return &PlaylistInfo{
		ID:          string(playlist.ID),
		Name:        playlist.Name,
		Description: playlist.Description,
		Owner:       playlist.Owner.DisplayName,
		TrackCount:  int(playlist.Tracks.Total),
		Public:      playlist.IsPublic,
	}, nil
}

// GetPlaylistTracks fetches every track of a playlist. Local files and
// removed tracks have no Spotify id and are skipped.
func (c *Client) GetPlaylistTracks(ctx context.Context, playlistID string) ([]matching.SourceTrack, error) {
	var tracks []matching.SourceTrack
	page := 1

	for {
		playlistTracks, err := c.client.GetPlaylistTracks(ctx, spotify.ID(playlistID), spotify.Offset((page-1)*pageSize), spotify.Limit(pageSize))
		if err != nil {
			return nil, fmt.Errorf("failed to get playlist tracks (page %d): %w", page, err)
		}

		for _, item := range playlistTracks.Tracks {
			if item.Track.ID == "" {
				log.Printf("⚠️  Warning: skipping playlist item without a Spotify id: %s", item.Track.Name)
				continue
			}
			tracks = append(tracks, ToSourceTrack(item.Track))
		}

		// Check if we've processed all tracks
		if len(playlistTracks.Tracks) < pageSize {
			break
		}
		page++
	}

	return tracks, nil
}

// GetAlbumTracks fetches every track of an album. Each track carries the
// album id so its links can be grouped under the album.
func (c *Client) GetAlbumTracks(ctx context.Context, albumID string) ([]matching.SourceTrack, error) {
	album, err := c.client.GetAlbum(ctx, spotify.ID(albumID))
	if err != nil {
		return nil, fmt.Errorf("failed to get album %s: %w", albumID, err)
	}

	var tracks []matching.SourceTrack
	page := &album.Tracks
	for {
		for _, track := range page.Tracks {
			tracks = append(tracks, matching.SourceTrack{
				ID:      string(track.ID),
				Title:   track.Name,
				Artists: artistNames(track.Artists),
				Album:   album.Name,
				AlbumID: string(album.ID),
			})
		}

		err := c.client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get next page of album tracks: %w", err)
		}
	}

	return tracks, nil
}

// GetTrack fetches a single track
func (c *Client) GetTrack(ctx context.Context, trackID string) (*matching.SourceTrack, error) {
	track, err := c.client.GetTrack(ctx, spotify.ID(trackID))
	if err != nil {
		return nil, fmt.Errorf("failed to get track %s: %w", trackID, err)
	}
	source := ToSourceTrack(*track)
	return &source, nil
}

// ToSourceTrack converts a Spotify track for matching. Every credited
// artist is kept; the first one is the primary artist.
func ToSourceTrack(track spotify.FullTrack) matching.SourceTrack {
	return matching.SourceTrack{
		ID:      string(track.ID),
		Title:   track.Name,
		Artists: artistNames(track.Artists),
		Album:   track.Album.Name,
		AlbumID: string(track.Album.ID),
		ISRC:    track.ExternalIDs["isrc"],
	}
}

func artistNames(artists []spotify.SimpleArtist) []string {
	names := make([]string, 0, len(artists))
	for _, artist := range artists {
		names = append(names, artist.Name)
	}
	return names
}

// LookupMusicBrainzIDs finds MusicBrainz ids for tracks using ISRC first and
// falling back to an artist and title search. Tracks without a match are
// left out of the returned map, keyed by Spotify id.
func LookupMusicBrainzIDs(ctx context.Context, tracks []matching.SourceTrack, resolver MusicBrainzResolver) map[string]string {
	ids := make(map[string]string, len(tracks))
	for _, track := range tracks {
		if ctx.Err() != nil {
			break
		}

		// Try ISRC first if available
		if track.ISRC != "" {
			musicBrainzID, err := resolver.GetMusicBrainzIDByISRC(ctx, track.ISRC)
			if err == nil && musicBrainzID != "" {
				ids[track.ID] = musicBrainzID
				continue
			}
		}

		// Fall back to artist/title search if ISRC search failed or ISRC not available
		musicBrainzID, err := resolver.GetMusicBrainzIDByArtistAndTitle(ctx, track.PrimaryArtist(), track.Title)
		if err == nil && musicBrainzID != "" {
			ids[track.ID] = musicBrainzID
		}
	}
	return ids
}
