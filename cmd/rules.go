package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garry/tracklink/config"
	"github.com/garry/tracklink/matching"
)

// errInvalidRules is returned when an expression given to rules does not parse
var errInvalidRules = errors.New("invalid filter expressions")

func cmdRules() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules [EXPRESSION...]",
		Short: "List the match filter rules, or check filter expressions",
		Long: "Without arguments, lists the configured match filter rules in evaluation order\n" +
			"with their parsed grouping. With arguments, parses each expression and reports errors.",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if len(args) > 0 {
				return checkExpressions(cmd, args)
			}

			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			m, err := config.LoadMatching(cfg.MatchingPath)
			if err != nil {
				return err
			}

			filter := m.Filter()
			rules := filter.Rules()
			parsed := filter.Explain()
			for i, rule := range rules {
				headerColor.Fprintf(w, "%2d. %s\n", i+1, rule.ReasonText())
				fmt.Fprintf(w, "    %s\n", parsed[i])
			}
			return nil
		},
	}
	return cmd
}

// checkExpressions parses every expression and prints its grouping
func checkExpressions(cmd *cobra.Command, exprs []string) error {
	w := cmd.OutOrStdout()
	var invalid int
	for _, text := range exprs {
		expr, err := matching.ParseRule(text)
		if err != nil {
			invalid++
			missingColor.Fprintf(w, "❌ %s\n    %v\n", text, err)
			continue
		}
		matchedColor.Fprintf(w, "✅ %s\n", text)
		fmt.Fprintf(w, "    %s\n", expr.String())
	}
	if invalid > 0 {
		return fmt.Errorf("%w: %d of %d", errInvalidRules, invalid, len(exprs))
	}
	return nil
}
