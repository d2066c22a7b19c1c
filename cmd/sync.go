package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/garry/tracklink/matching"
	"github.com/garry/tracklink/musicbrainz"
	"github.com/garry/tracklink/plex"
	"github.com/garry/tracklink/search"
	"github.com/garry/tracklink/spotify"
)

// PlaylistMeta represents metadata for a playlist
type PlaylistMeta struct {
	ID          string
	Name        string
	Description string
}

// playlistSource is the part of the Spotify client sync reads from
type playlistSource interface {
	GetUserPublicPlaylists(ctx context.Context, username string) ([]spotify.PlaylistInfo, error)
	GetPlaylistInfo(ctx context.Context, playlistID string) (*spotify.PlaylistInfo, error)
	GetPlaylistTracks(ctx context.Context, playlistID string) ([]matching.SourceTrack, error)
}

// playlistSink is the part of the Plex client sync writes to
type playlistSink interface {
	SyncPlaylist(ctx context.Context, sync plex.PlaylistSync) (*plex.PlexPlaylist, error)
}

// syncer copies Spotify playlists to Plex
type syncer struct {
	app         *app
	out         io.Writer
	spotify     playlistSource
	plex        playlistSink
	orch        *search.Orchestrator
	musicBrainz spotify.MusicBrainzResolver
	concurrency int
}

func cmdSync() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Copy Spotify playlists to Plex, matching every track",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(cmd, map[string]string{
				"SPOTIFY_PLAYLIST_ID":          flagString(cmd, "playlists"),
				"SPOTIFY_USERNAME":             flagString(cmd, "username"),
				"SPOTIFY_PLAYLIST_EXCLUDED_ID": flagString(cmd, "exclude"),
			})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.config.RequireSync(); err != nil {
				return err
			}

			spotifyClient, err := spotify.NewClient(ctx, a.config)
			if err != nil {
				return fmt.Errorf("failed to create Spotify client: %w", err)
			}
			plexClient, err := a.plexClient()
			if err != nil {
				return err
			}
			orch, err := a.orchestrator(plexClient)
			if err != nil {
				return err
			}
			concurrency, _ := cmd.Flags().GetInt("concurrency")

			s := &syncer{
				app:         a,
				out:         cmd.OutOrStdout(),
				spotify:     spotifyClient,
				plex:        plexClient,
				orch:        orch,
				concurrency: concurrency,
			}
			if !flagBool(cmd, "skip-musicbrainz") {
				s.musicBrainz = musicbrainz.NewClient(a.config.MusicBrainz)
			}
			return s.Run(ctx)
		},
	}
	cmd.Flags().String("playlists", "", "Comma-separated list of Spotify playlist IDs (overrides SPOTIFY_PLAYLIST_ID env var)")
	cmd.Flags().String("username", "", "Spotify username to fetch all public playlists (overrides SPOTIFY_USERNAME env var)")
	cmd.Flags().String("exclude", "", "Comma-separated list of Spotify playlist IDs to skip (overrides SPOTIFY_PLAYLIST_EXCLUDED_ID env var)")
	cmd.Flags().Int("concurrency", 1, "Number of tracks matched at once")
	cmd.Flags().Bool("skip-musicbrainz", false, "Do not look up MusicBrainz ids for missing tracks")
	return cmd
}

// errNoPlaylists is returned when neither a username nor playlist ids are configured
var errNoPlaylists = errors.New("no playlists specified")

// Run syncs every configured playlist. A failing playlist is logged and the
// rest still run.
func (s *syncer) Run(ctx context.Context) error {
	playlistMetas, err := s.getPlaylistMetadata(ctx)
	if err != nil {
		return fmt.Errorf("failed to get playlist metadata: %w", err)
	}
	playlistMetas = filterExcludedPlaylists(playlistMetas, s.app.config.Spotify.ExcludedPlaylistIDs)

	if len(playlistMetas) == 0 {
		s.printNoPlaylistsMessage()
		return errNoPlaylists
	}

	var failed int
	for playlistIndex, meta := range playlistMetas {
		if err := s.processPlaylist(ctx, meta, playlistIndex+1, len(playlistMetas)); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("❌ Failed to process playlist %s: %v", meta.ID, err)
			failed++
			continue
		}

		// Add separator between playlists
		if playlistIndex < len(playlistMetas)-1 {
			fmt.Fprintln(s.out, "\n"+strings.Repeat(playlistSeparator, playlistSeparatorCount))
			fmt.Fprintln(s.out)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d playlists failed", failed, len(playlistMetas))
	}
	fmt.Fprintln(s.out, "\n🎉 All playlists processed!")
	return nil
}

// getPlaylistMetadata retrieves metadata for all playlists to be processed
func (s *syncer) getPlaylistMetadata(ctx context.Context) ([]PlaylistMeta, error) {
	var playlistMetas []PlaylistMeta
	cfg := s.app.config

	if cfg.Spotify.Username != "" {
		publicPlaylists, err := s.spotify.GetUserPublicPlaylists(ctx, cfg.Spotify.Username)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch public playlists for user %s: %w", cfg.Spotify.Username, err)
		}

		for _, pl := range publicPlaylists {
			playlistMetas = append(playlistMetas, PlaylistMeta{
				ID:          pl.ID,
				Name:        pl.Name,
				Description: pl.Description,
			})
		}
		fmt.Fprintf(s.out, "🎵 Processing %d public Spotify playlist(s) for user %s...\n\n", len(playlistMetas), cfg.Spotify.Username)
		return playlistMetas, nil
	}

	for _, playlistID := range cfg.Spotify.PlaylistIDs {
		playlistInfo, err := s.spotify.GetPlaylistInfo(ctx, playlistID)
		if err != nil {
			log.Printf("❌ Failed to get playlist info for %s: %v", playlistID, err)
			continue
		}
		playlistMetas = append(playlistMetas, PlaylistMeta{
			ID:          playlistID,
			Name:        playlistInfo.Name,
			Description: playlistInfo.Description,
		})
	}
	fmt.Fprintf(s.out, "🎵 Processing %d Spotify playlist(s)...\n\n", len(playlistMetas))
	return playlistMetas, nil
}

// filterExcludedPlaylists drops the playlists whose id is excluded
func filterExcludedPlaylists(playlists []PlaylistMeta, excludedIDs []string) []PlaylistMeta {
	if len(excludedIDs) == 0 {
		return playlists
	}

	excluded := make(map[string]bool, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = true
	}

	var filtered []PlaylistMeta
	for _, playlist := range playlists {
		if excluded[playlist.ID] {
			log.Printf("🚫 Skipping excluded playlist: %s (%s)", playlist.Name, playlist.ID)
			continue
		}
		filtered = append(filtered, playlist)
	}
	return filtered
}

// processPlaylist matches one playlist and writes it to Plex
func (s *syncer) processPlaylist(ctx context.Context, meta PlaylistMeta, index, total int) error {
	fmt.Fprintf(s.out, "📋 Playlist %d/%d: %s\n", index, total, meta.ID)
	fmt.Fprintln(s.out, strings.Repeat(separatorLine, separatorLength))

	// Edits to the matching rules apply from the next playlist on
	s.app.reload(s.orch)

	tracks, err := s.spotify.GetPlaylistTracks(ctx, meta.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch playlist songs: %w", err)
	}
	displaySongs(s.out, tracks)

	printHeader(s.out, "MATCHING SONGS TO PLEX LIBRARY")
	outcomes, err := s.orch.SearchBatch(ctx, tracks, search.BatchOptions{Concurrency: s.concurrency})
	if err != nil {
		return err
	}

	var trackIDs []string
	for _, outcome := range outcomes {
		if outcome.Response.Found() {
			trackIDs = append(trackIDs, outcome.Response.Result[0].ID)
		}
	}

	playlist, syncErr := s.plex.SyncPlaylist(ctx, plex.PlaylistSync{
		Title:             meta.Name,
		Description:       meta.Description,
		SpotifyPlaylistID: meta.ID,
		TrackIDs:          trackIDs,
	})
	if syncErr != nil {
		log.Printf("❌ Failed to sync playlist %s to Plex: %v", meta.Name, syncErr)
	}

	musicBrainzIDs := s.lookupMissing(ctx, outcomes)
	displayMatchingResults(s.out, outcomes, playlist, musicBrainzIDs)

	if syncErr != nil {
		return fmt.Errorf("failed to sync playlist to Plex: %w", syncErr)
	}
	return nil
}

// lookupMissing finds MusicBrainz ids for unmatched tracks and caches them
func (s *syncer) lookupMissing(ctx context.Context, outcomes []search.Outcome) map[string]string {
	_, missing := tally(outcomes)
	if len(missing) == 0 || s.musicBrainz == nil {
		return nil
	}

	fmt.Fprintln(s.out, "\n🔍 Looking up MusicBrainz IDs for missing tracks...")
	ids := spotify.LookupMusicBrainzIDs(ctx, missing, s.musicBrainz)
	s.app.cacheMusicBrainzIDs(ctx, ids)
	return ids
}

// printNoPlaylistsMessage displays a helpful message when no playlists are specified
func (s *syncer) printNoPlaylistsMessage() {
	fmt.Fprintln(s.out, "❌ No playlists specified!")
	fmt.Fprintln(s.out, "Please provide either:")
	fmt.Fprintln(s.out, "  - SPOTIFY_USERNAME environment variable to fetch all public playlists for a user")
	fmt.Fprintln(s.out, "  - SPOTIFY_PLAYLIST_ID environment variable with comma-separated playlist IDs")
	fmt.Fprintln(s.out, "  - --username flag to specify a Spotify username")
	fmt.Fprintln(s.out, "  - --playlists flag to specify playlist IDs")
	fmt.Fprintln(s.out, "\nExample:")
	fmt.Fprintln(s.out, "  tracklink sync --username your_spotify_username")
	fmt.Fprintln(s.out, "  tracklink sync --playlists 37i9dQZF1DXcBWIGoYBM5M,37i9dQZF1DXcBWIGoYBM5N")
	fmt.Fprintln(s.out, "  tracklink sync --debug --playlists 37i9dQZF1DXcBWIGoYBM5M  # with debug output")
}
