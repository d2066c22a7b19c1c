package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/garry/tracklink/matching"
	"github.com/garry/tracklink/plex"
	"github.com/garry/tracklink/search"
)

// Constants for display formatting
const (
	separatorLine          = "="
	separatorLength        = 80
	playlistSeparator      = "🎵"
	playlistSeparatorCount = 40
)

var (
	matchedColor = color.New(color.FgGreen)
	cachedColor  = color.New(color.FgCyan)
	missingColor = color.New(color.FgRed)
	errorColor   = color.New(color.FgYellow)
	headerColor  = color.New(color.Bold)
)

// matchStats counts the outcomes of a batch
type matchStats struct {
	total   int
	matched int
	cached  int
	missing int
	failed  int
}

// tally counts outcomes and collects the tracks nothing was found for.
// Failed tracks are not missing: they were never fully searched.
func tally(outcomes []search.Outcome) (matchStats, []matching.SourceTrack) {
	stats := matchStats{total: len(outcomes)}
	var missing []matching.SourceTrack
	for _, outcome := range outcomes {
		switch {
		case outcome.Err != nil:
			stats.failed++
		case outcome.Response.Found() && outcome.Response.Cached:
			stats.cached++
		case outcome.Response.Found():
			stats.matched++
		default:
			stats.missing++
			missing = append(missing, outcome.Track)
		}
	}
	return stats, missing
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func printHeader(w io.Writer, title string) {
	fmt.Fprintln(w, "\n"+strings.Repeat(separatorLine, separatorLength))
	headerColor.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat(separatorLine, separatorLength))
}

// displaySongs displays the list of songs in a playlist
func displaySongs(w io.Writer, tracks []matching.SourceTrack) {
	fmt.Fprintf(w, "Songs in playlist (%d total):\n", len(tracks))
	fmt.Fprintln(w, strings.Repeat("-", 60))

	for i, track := range tracks {
		fmt.Fprintf(w, "%3d. %s - %s (%s)\n", i+1, strings.Join(track.Artists, ", "), track.Title, track.Album)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Successfully fetched %d songs from Spotify playlist\n", len(tracks))
}

// outcomeStatus renders the one-line status of a track
func outcomeStatus(outcome search.Outcome) string {
	switch {
	case outcome.Err != nil:
		return errorColor.Sprintf("⚠️  Error: %v", outcome.Err)
	case !outcome.Response.Found():
		return missingColor.Sprint("❌ No match")
	}

	best := outcome.Response.Result[0]
	status := matchedColor.Sprintf("✅ %s", best.Reason)
	if outcome.Response.Cached {
		status = cachedColor.Sprint("💾 Cached")
	}
	return fmt.Sprintf("%s (%s - %s, ID: %s)", status, best.Artist, best.Title, best.ID)
}

// displayMatchingResults displays the per-track results, the summary and the
// missing tracks
func displayMatchingResults(w io.Writer, outcomes []search.Outcome, playlist *plex.PlexPlaylist, musicBrainzIDs map[string]string) {
	printHeader(w, "MATCHING RESULTS")

	for i, outcome := range outcomes {
		fmt.Fprintf(w, "%3d. %s - %s: %s\n", i+1, outcome.Track.PrimaryArtist(), outcome.Track.Title, outcomeStatus(outcome))
	}

	stats, missing := tally(outcomes)
	displaySummary(w, stats, playlist)

	if len(missing) > 0 {
		displayMissingTracksSummary(w, missing, musicBrainzIDs)
	}
}

// displaySummary displays a summary of the matching results
func displaySummary(w io.Writer, stats matchStats, playlist *plex.PlexPlaylist) {
	printHeader(w, "SUMMARY")
	found := stats.matched + stats.cached
	fmt.Fprintf(w, "Total songs: %d\n", stats.total)
	fmt.Fprintf(w, "Searched matches: %d (%.1f%%)\n", stats.matched, percent(stats.matched, stats.total))
	fmt.Fprintf(w, "Cached matches: %d (%.1f%%)\n", stats.cached, percent(stats.cached, stats.total))
	fmt.Fprintf(w, "No matches: %d (%.1f%%)\n", stats.missing, percent(stats.missing, stats.total))
	if stats.failed > 0 {
		fmt.Fprintf(w, "Errors: %d (%.1f%%)\n", stats.failed, percent(stats.failed, stats.total))
	}
	fmt.Fprintf(w, "Total matches: %d (%.1f%%)\n", found, percent(found, stats.total))

	if found > 0 {
		matchedColor.Fprintf(w, "\n✅ Found %d matched tracks\n", found)
		if playlist != nil {
			matchedColor.Fprintf(w, "✅ Successfully created/updated playlist: %s (ID: %s)\n", playlist.Title, playlist.ID)
		}
	} else {
		missingColor.Fprintln(w, "\n❌ No matches found")
	}
}

// displayMissingTracksSummary displays the tracks that were not matched
func displayMissingTracksSummary(w io.Writer, missing []matching.SourceTrack, musicBrainzIDs map[string]string) {
	printHeader(w, "MISSING TRACKS SUMMARY")
	fmt.Fprintf(w, "Tracks not found (%d total):\n", len(missing))
	fmt.Fprintln(w, strings.Repeat("-", 80))

	for i, track := range missing {
		fmt.Fprintf(w, "%3d. %s - %s\n", i+1, track.PrimaryArtist(), track.Title)
		fmt.Fprintf(w, "     Spotify track ID: %s\n", track.ID)
		if track.ISRC != "" {
			fmt.Fprintf(w, "     ISRC: %s\n", track.ISRC)
		} else {
			fmt.Fprintf(w, "     ISRC: (not available)\n")
		}
		if mbid := musicBrainzIDs[track.ID]; mbid != "" {
			fmt.Fprintf(w, "     MusicBrainz ID: %s - https://musicbrainz.org/recording/%s\n", mbid, mbid)
		} else {
			fmt.Fprintf(w, "     MusicBrainz ID: (not found)\n")
		}
		if i < len(missing)-1 {
			fmt.Fprintln(w)
		}
	}
}

// printResponse explains one search: the queries sent and why each result
// was accepted
func printResponse(w io.Writer, resp *search.Response) {
	headerColor.Fprintf(w, "%s - %s", resp.Artist, resp.Title)
	if resp.Album != "" {
		fmt.Fprintf(w, " (%s)", resp.Album)
	}
	if resp.ID != "" {
		fmt.Fprintf(w, " [%s]", resp.ID)
	}
	fmt.Fprintln(w)

	if resp.Cached {
		cachedColor.Fprintln(w, "  💾 resolved from the link cache")
	}
	for _, q := range resp.Queries {
		fmt.Fprintf(w, "  🔍 %-12s title=%q artist=%q album=%q\n", q.Approach, q.Title, q.Artist, q.Album)
	}

	if !resp.Found() {
		missingColor.Fprintln(w, "  ❌ No match")
		return
	}
	for _, result := range resp.Result {
		matchedColor.Fprintf(w, "  ✅ %s - %s", result.Artist, result.Title)
		fmt.Fprintf(w, " (ID: %s) %s\n", result.ID, result.Reason)
		fmt.Fprintf(w, "     title %s  artist %s  album %s\n",
			fieldSummary(result.Scores.Title), fieldSummary(result.Scores.Artist), fieldSummary(result.Scores.Album))
	}
}

func fieldSummary(m matching.FieldMatch) string {
	var flags []string
	if m.Match {
		flags = append(flags, "match")
	}
	if m.Contains {
		flags = append(flags, "contains")
	}
	if len(flags) == 0 {
		return fmt.Sprintf("%.2f", m.Similarity)
	}
	return fmt.Sprintf("%.2f/%s", m.Similarity, strings.Join(flags, "+"))
}
