package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Exit codes
const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

func newCmdRoot(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tracklink",
		Short:         "Match Spotify tracks against Plex and MusicBrainz without shared identifiers",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("tracklink version {{.Version}}\n")

	flags := cmd.PersistentFlags()
	flags.Bool("debug", false, "Enable debug output (detailed matching and similarity information)")
	flags.String("matching-config", "", "Matching configuration file (overrides TRACKLINK_MATCHING_CONFIG)")
	flags.String("cache", "", "Track link cache file (overrides TRACKLINK_CACHE_PATH)")
	flags.String("cache-backend", "", "Track link cache storage, json or sqlite (overrides TRACKLINK_CACHE_BACKEND)")
	flags.Bool("no-cache", false, "Search the backend even when a cached link exists")
	flags.String("backend", "plex", "Catalog to match against: plex or musicbrainz")
	flags.Bool("verify-tls", false, "Verify the Plex server certificate")

	cmd.AddCommand(
		cmdSync(),
		cmdMatch(),
		cmdLookup(),
		cmdPlan(),
		cmdRules(),
		cmdConfig(),
	)
	return cmd
}

// Execute runs the command tree and exits on failure. An interrupt cancels
// the running command between backend calls.
func Execute(version string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newCmdRoot(version).ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(exitCodeError)
	}
	os.Exit(exitCodeSuccess)
}
