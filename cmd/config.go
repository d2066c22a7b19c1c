package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/garry/tracklink/config"
)

func cmdConfig() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(cmdConfigValidate())
	return cmd
}

func cmdConfigValidate() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the environment and the matching configuration",
		Long: "Loads the environment configuration and the matching configuration file.\n" +
			"Missing credentials are reported as warnings; an invalid matching file fails the command.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()

			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			matchedColor.Fprintln(w, "✅ Environment configuration loaded")
			fmt.Fprintf(w, "   Link cache: %s (%s)\n", cfg.Cache.Path, cfg.Cache.Backend)
			fmt.Fprintf(w, "   MusicBrainz: %s\n", cfg.MusicBrainz.URL)

			warnMissing(w, "Spotify", cfg.RequireSpotify())
			warnMissing(w, "Plex", cfg.RequirePlex())

			m, err := config.LoadMatching(cfg.MatchingPath)
			if err != nil {
				missingColor.Fprintf(w, "❌ Matching configuration %s is invalid\n", cfg.MatchingPath)
				return err
			}
			matchedColor.Fprintf(w, "✅ Matching configuration %s is valid\n", cfg.MatchingPath)
			fmt.Fprintf(w, "   %d search approaches, %d match filters, %s similarity, minMatches %d\n",
				len(m.SearchApproaches), len(m.MatchFilters), m.SimilarityMetric, m.MinMatches)
			return nil
		},
	}
}

// warnMissing reports credentials a command group would need
func warnMissing(w io.Writer, service string, err error) {
	var missingErr *config.MissingError
	if !errors.As(err, &missingErr) {
		return
	}
	errorColor.Fprintf(w, "⚠️  %s is not configured, missing: %v\n", service, missingErr.Fields)
}
