package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/contrib-planner/internal/storage"
	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

var (
	planFlags  constraintFlags
	planDryRun bool
	planJSON   bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Build a strategy plan from the scored candidates",
	Long: `Select an ordered, resource-bounded set of opportunities.

Candidates below the minimum success probability are excluded. The rest
are ranked by expected value (score x success probability) and taken
greedily while they fit the effort budget and the concurrency limit.
Constraint flags override the planning section of .cplanconfig.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Pipeline == nil {
			return fmt.Errorf("pipeline not initialized")
		}
		constraints := planFlags.resolve(cmd)

		plan, _, err := Pipeline.BuildPlan(cmd.Context(), constraints)
		if err != nil {
			return fmt.Errorf("building plan: %w", err)
		}
		if !planDryRun && Plans != nil {
			if err := Plans.SavePlan(plan); err != nil {
				return fmt.Errorf("saving plan: %w", err)
			}
		}

		out := cmd.OutOrStdout()
		if planJSON {
			return writeJSON(out, plan)
		}
		printPlan(out, plan)
		return nil
	},
}

var planShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the most recently saved plan",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Plans == nil {
			return fmt.Errorf("plan store not initialized")
		}
		plan, err := Plans.LoadPlan()
		if errors.Is(err, storage.ErrNoPlan) {
			fmt.Fprintln(cmd.OutOrStdout(), "No plan saved yet. Run 'cplan plan' first.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("loading plan: %w", err)
		}
		if planJSON {
			return writeJSON(cmd.OutOrStdout(), plan)
		}
		printPlan(cmd.OutOrStdout(), plan)
		return nil
	},
}

func printPlan(out io.Writer, plan *models.StrategyPlan) {
	c := plan.Constraints
	fmt.Fprintf(out, "Strategy plan (max %d, budget %.2f, min success %.2f)\n\n",
		c.MaxConcurrent, c.EffortBudget, c.MinSuccessProbability)
	if plan.Len() == 0 {
		fmt.Fprintln(out, "  No opportunities selected.")
	} else {
		fmt.Fprintf(out, "  %-3s %-24s %-7s %6s %6s  %s\n", "#", "ID", "RISK", "EV", "EFFORT", "TIMELINE")
		for _, e := range plan.Entries {
			fmt.Fprintf(out, "  %-3d %-24s %-7s %6.3f %6.2f  %s\n",
				e.Position, e.Scored.Opportunity.ID, e.Scored.Risk, e.ExpectedValue, e.Effort, e.Timeline)
		}
	}
	fmt.Fprintf(out, "\n  %-22s %.3f\n", "Total expected value:", plan.TotalExpectedValue)
	fmt.Fprintf(out, "  %-22s %.2f\n", "Total effort:", plan.TotalEffort)
	fmt.Fprintf(out, "  %-22s %d considered, %d below minimum success\n", "Candidates:", plan.Considered, plan.Excluded)
}

func init() {
	planFlags.register(planCmd)
	planCmd.Flags().BoolVar(&planDryRun, "dry-run", false, "Do not save the plan")
	planCmd.PersistentFlags().BoolVar(&planJSON, "json", false, "Output as JSON")
	planCmd.AddCommand(planShowCmd)
	rootCmd.AddCommand(planCmd)
}
