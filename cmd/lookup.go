package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garry/tracklink/linkcache"
	"github.com/garry/tracklink/matching"
	"github.com/garry/tracklink/search"
)

func cmdLookup() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup SPOTIFY_ID...",
		Short: "Resolve Spotify ids from the link cache without searching",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if flagBool(cmd, "raw") {
				return printLinks(cmd, a.cache, args)
			}

			backend, err := a.backend(flagString(cmd, "backend"))
			if err != nil {
				return err
			}
			orch, err := a.orchestrator(backend)
			if err != nil {
				return err
			}

			tracks := make([]matching.SourceTrack, 0, len(args))
			for _, id := range args {
				tracks = append(tracks, matching.SourceTrack{ID: id})
			}
			responses, err := orch.Lookup(cmd.Context(), tracks)
			if err != nil {
				return err
			}

			outcomes := make([]search.Outcome, 0, len(responses))
			for i, resp := range responses {
				outcomes = append(outcomes, search.Outcome{Track: tracks[i], Response: resp})
			}
			return printOutcomes(cmd.OutOrStdout(), outcomes, flagBool(cmd, "json"))
		},
	}
	cmd.Flags().Bool("json", false, "Print the responses as JSON")
	cmd.Flags().Bool("raw", false, "Print the stored links without contacting any backend")
	return cmd
}

// printLinks prints the cached links for ids, every backend included
func printLinks(cmd *cobra.Command, cache *linkcache.Cache, ids []string) error {
	w := cmd.OutOrStdout()
	var links []linkcache.TrackLink
	for _, backend := range []linkcache.Backend{linkcache.BackendPlex, linkcache.BackendTidal, linkcache.BackendSlskd, linkcache.BackendMusicBrainz} {
		found, err := cache.Lookup(cmd.Context(), ids, backend)
		if err != nil {
			return err
		}
		links = mergeLinks(links, found)
	}

	if flagBool(cmd, "json") {
		return writeJSON(w, links)
	}
	if len(links) == 0 {
		missingColor.Fprintln(w, "❌ No cached links")
		return nil
	}
	for _, link := range links {
		headerColor.Fprintln(w, link.SpotifyID)
		for _, backend := range []linkcache.Backend{linkcache.BackendPlex, linkcache.BackendTidal, linkcache.BackendSlskd, linkcache.BackendMusicBrainz} {
			if link.Has(backend) {
				fmt.Fprintf(w, "  %-12s %v\n", backend, link.IDs(backend))
			}
		}
	}
	return nil
}

// mergeLinks appends links not already present by Spotify id
func mergeLinks(links, more []linkcache.TrackLink) []linkcache.TrackLink {
	seen := make(map[string]bool, len(links))
	for _, link := range links {
		seen[link.SpotifyID] = true
	}
	for _, link := range more {
		if !seen[link.SpotifyID] {
			seen[link.SpotifyID] = true
			links = append(links, link)
		}
	}
	return links
}
