package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garry/tracklink/config"
	"github.com/garry/tracklink/matching"
)

func cmdPlan() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the queries each search approach would send, without searching",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			track, err := trackFromFlags(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			m, err := config.LoadMatching(cfg.MatchingPath)
			if err != nil {
				return err
			}

			queries := matching.Plan(track, m.SearchApproaches, m.TextProcessing)
			w := cmd.OutOrStdout()
			if flagBool(cmd, "json") {
				return writeJSON(w, queries)
			}

			headerColor.Fprintf(w, "%s - %s\n", track.PrimaryArtist(), track.Title)
			for i, q := range queries {
				duplicate := ""
				for _, earlier := range queries[:i] {
					if earlier.SameText(q) {
						duplicate = fmt.Sprintf("  (same as %s, skipped)", earlier.Approach)
						break
					}
				}
				fmt.Fprintf(w, "  %-12s title=%q artist=%q album=%q%s\n", q.Approach, q.Title, q.Artist, q.Album, duplicate)
			}
			return nil
		},
	}
	addTrackFlags(cmd)
	cmd.Flags().Bool("json", false, "Print the queries as JSON")
	return cmd
}
