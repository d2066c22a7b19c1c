package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/garry/tracklink/matching"
	"github.com/garry/tracklink/search"
	"github.com/garry/tracklink/spotify"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// trackFromFlags builds a source track from --title, --artist, --album and --id
func trackFromFlags(cmd *cobra.Command) (matching.SourceTrack, error) {
	artists, _ := cmd.Flags().GetStringSlice("artist")
	track := matching.SourceTrack{
		ID:      flagString(cmd, "id"),
		Title:   flagString(cmd, "title"),
		Artists: artists,
		Album:   flagString(cmd, "album"),
	}
	if track.Title == "" && track.PrimaryArtist() == "" {
		return track, errors.New("a --title or an --artist is required")
	}
	return track, nil
}

func addTrackFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "Track title")
	cmd.Flags().StringSlice("artist", nil, "Track artist; repeat or comma-separate for several, the first is the primary artist")
	cmd.Flags().String("album", "", "Album title")
	cmd.Flags().String("id", "", "Source track id the result is cached under")
}

func cmdMatch() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match tracks against the backend and explain every result",
		Long: "Match a track given on the command line, a Spotify track, or every track of a Spotify album.\n" +
			"Results are written to the link cache; album matches also get an album link.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			backend, err := a.backend(flagString(cmd, "backend"))
			if err != nil {
				return err
			}
			orch, err := a.orchestrator(backend)
			if err != nil {
				return err
			}

			tracks, albumID, err := matchTargets(ctx, cmd, a)
			if err != nil {
				return err
			}

			concurrency, _ := cmd.Flags().GetInt("concurrency")
			outcomes, err := orch.SearchBatch(ctx, tracks, search.BatchOptions{
				Concurrency: concurrency,
				AlbumID:     albumID,
			})
			if err != nil {
				return err
			}
			return printOutcomes(cmd.OutOrStdout(), outcomes, flagBool(cmd, "json"))
		},
	}
	addTrackFlags(cmd)
	cmd.Flags().String("spotify-track", "", "Spotify track id to match")
	cmd.Flags().String("spotify-album", "", "Spotify album id whose tracks are matched")
	cmd.Flags().Int("concurrency", 1, "Number of tracks matched at once")
	cmd.Flags().Bool("json", false, "Print the search responses as JSON")
	cmd.MarkFlagsMutuallyExclusive("spotify-track", "spotify-album", "title")
	return cmd
}

// matchTargets resolves the tracks a match run covers
func matchTargets(ctx context.Context, cmd *cobra.Command, a *app) ([]matching.SourceTrack, string, error) {
	trackID := flagString(cmd, "spotify-track")
	albumID := flagString(cmd, "spotify-album")
	if trackID == "" && albumID == "" {
		track, err := trackFromFlags(cmd)
		if err != nil {
			return nil, "", err
		}
		return []matching.SourceTrack{track}, "", nil
	}

	if err := a.config.RequireSpotify(); err != nil {
		return nil, "", err
	}
	client, err := spotify.NewClient(ctx, a.config)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create Spotify client: %w", err)
	}

	if albumID != "" {
		tracks, err := client.GetAlbumTracks(ctx, albumID)
		return tracks, albumID, err
	}
	track, err := client.GetTrack(ctx, trackID)
	if err != nil {
		return nil, "", err
	}
	return []matching.SourceTrack{*track}, "", nil
}

// printOutcomes prints every response. Failed tracks are reported and make
// the command fail.
func printOutcomes(w io.Writer, outcomes []search.Outcome, asJSON bool) error {
	var errs []error
	responses := make([]*search.Response, 0, len(outcomes))
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			errs = append(errs, fmt.Errorf("%s - %s: %w", outcome.Track.PrimaryArtist(), outcome.Track.Title, outcome.Err))
			continue
		}
		responses = append(responses, outcome.Response)
	}

	if asJSON {
		if err := writeJSON(w, responses); err != nil {
			return err
		}
	} else {
		for i, resp := range responses {
			if i > 0 {
				fmt.Fprintln(w)
			}
			printResponse(w, resp)
		}
	}
	return errors.Join(errs...)
}
