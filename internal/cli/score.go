package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

var (
	scoreRisk  string
	scoreLimit int
	scoreJSON  bool
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score every candidate against the current calibration",
	Long: `Load candidates, drop those excluded by preferences, and report each
remaining opportunity's priority score, risk category, success probability,
and expected value. Results are ordered by score, highest first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Pipeline == nil {
			return fmt.Errorf("pipeline not initialized")
		}
		var risk models.RiskCategory
		if scoreRisk != "" {
			r, err := models.ParseRiskCategory(scoreRisk)
			if err != nil {
				return err
			}
			risk = r
		}

		eval, err := Pipeline.Evaluate(cmd.Context())
		if err != nil {
			return fmt.Errorf("scoring candidates: %w", err)
		}

		scored := make([]models.ScoredOpportunity, 0, len(eval.Scored))
		for _, so := range eval.Scored {
			if risk == "" || so.Risk == risk {
				scored = append(scored, so)
			}
		}
		sort.SliceStable(scored, func(i, j int) bool {
			if scored[i].Score != scored[j].Score {
				return scored[i].Score > scored[j].Score
			}
			return scored[i].Opportunity.ID < scored[j].Opportunity.ID
		})
		if scoreLimit > 0 && len(scored) > scoreLimit {
			scored = scored[:scoreLimit]
		}

		out := cmd.OutOrStdout()
		if scoreJSON {
			return writeJSON(out, scored)
		}
		if len(scored) == 0 {
			fmt.Fprintln(out, "No candidates to score.")
			return nil
		}
		fmt.Fprintf(out, "%-24s %6s %-7s %7s %6s\n", "ID", "SCORE", "RISK", "SUCCESS", "EV")
		for _, so := range scored {
			fmt.Fprintf(out, "%-24s %6.3f %-7s %7.3f %6.3f\n",
				so.Opportunity.ID, so.Score, so.Risk, so.SuccessProbability, so.ExpectedValue())
		}
		fmt.Fprintf(out, "\n%d scored, %d loaded, %d dropped by preferences\n",
			len(eval.Scored), eval.Loaded, len(eval.Dropped))
		if len(eval.Clamped) > 0 {
			fmt.Fprintf(out, "%d candidate(s) had out-of-range features clamped\n", len(eval.Clamped))
		}
		return nil
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreRisk, "risk", "", "Only show this risk category (low, medium, high)")
	scoreCmd.Flags().IntVar(&scoreLimit, "limit", 0, "Show at most this many candidates")
	scoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(scoreCmd)
}
