package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/contrib-planner/internal/core"
	"github.com/valter-silva-au/contrib-planner/internal/storage"
	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

var (
	outcomesRisk  string
	outcomesLimit int
	outcomesJSON  bool
)

var outcomesCmd = &cobra.Command{
	Use:   "outcomes",
	Short: "List recorded simulation outcomes",
	Long: `List terminal simulations from the outcome ledger in the order they were
recorded, followed by a summary of final states.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Ledger == nil {
			return fmt.Errorf("outcome ledger not initialized")
		}
		q := storage.OutcomeQuery{Limit: outcomesLimit}
		if outcomesRisk != "" {
			r, err := models.ParseRiskCategory(outcomesRisk)
			if err != nil {
				return err
			}
			q.Risk = r
		}

		records, err := Ledger.ListOutcomes(cmd.Context(), q)
		if err != nil {
			return fmt.Errorf("reading outcome ledger: %w", err)
		}

		out := cmd.OutOrStdout()
		if outcomesJSON {
			return writeJSON(out, records)
		}
		if len(records) == 0 {
			fmt.Fprintln(out, "No outcomes recorded.")
			return nil
		}
		fmt.Fprintf(out, "%-24s %-28s %-7s %-10s %6s\n", "OPPORTUNITY", "REPOSITORY", "RISK", "OUTCOME", "ROUNDS")
		for _, rec := range records {
			fmt.Fprintf(out, "%-24s %-28s %-7s %-10s %6d\n",
				rec.OpportunityID, rec.Repository, rec.Risk, rec.FinalState, rec.Rounds)
		}

		sum := core.SummarizeOutcomes(records)
		fmt.Fprintf(out, "\n%d outcome(s), %.0f%% merged, %.1f rounds on average\n",
			sum.Total, sum.SuccessRate*100, sum.AverageRound)
		return nil
	},
}

func init() {
	outcomesCmd.Flags().StringVar(&outcomesRisk, "risk", "", "Only show this risk category (low, medium, high)")
	outcomesCmd.Flags().IntVar(&outcomesLimit, "limit", 0, "Show at most this many outcomes")
	outcomesCmd.Flags().BoolVar(&outcomesJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(outcomesCmd)
}
