package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/contrib-planner/internal/core"
	"github.com/valter-silva-au/contrib-planner/internal/storage"
	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

var (
	simulateFlags    constraintFlags
	simulateSeed     uint64
	simulateDryRun   bool
	simulateFromPlan bool
	simulateJSON     bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Plan and rehearse contributions through the review lifecycle",
	Long: `Build a plan, obtain an artifact for every entry from the configured
coder command, and run each contribution through a simulated CI and review
lifecycle. Terminal outcomes update the calibration and are appended to the
outcome ledger.

Each simulation is seeded from --seed and its opportunity ID, so a run with
the same seed, candidates, and calibration replays identically.

With --from-plan the most recently saved plan is executed instead of
building a new one. With --dry-run nothing is recorded or saved.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Pipeline == nil {
			return fmt.Errorf("pipeline not initialized")
		}
		seed := configuredSeed()
		if cmd.Flags().Changed("seed") {
			seed = simulateSeed
		}
		opts := core.RunOptions{
			Constraints: simulateFlags.resolve(cmd),
			Seed:        seed,
			DryRun:      simulateDryRun,
		}

		var (
			plan    *models.StrategyPlan
			records []models.SimulationRecord
		)
		if simulateFromPlan {
			if Plans == nil {
				return fmt.Errorf("plan store not initialized")
			}
			saved, err := Plans.LoadPlan()
			if errors.Is(err, storage.ErrNoPlan) {
				return fmt.Errorf("no plan saved: run 'cplan plan' first")
			}
			if err != nil {
				return fmt.Errorf("loading plan: %w", err)
			}
			plan = saved
			records, err = Pipeline.Execute(cmd.Context(), plan, opts)
			if err != nil {
				return fmt.Errorf("simulating plan: %w", err)
			}
		} else {
			res, err := Pipeline.Run(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("running pipeline: %w", err)
			}
			plan = res.Plan
			records = res.Simulations
		}

		out := cmd.OutOrStdout()
		if simulateJSON {
			return writeJSON(out, struct {
				Plan        *models.StrategyPlan      `json:"plan"`
				Simulations []models.SimulationRecord `json:"simulations"`
				Summary     core.OutcomeSummary       `json:"summary"`
			}{plan, records, core.SummarizeOutcomes(records)})
		}
		printSimulations(out, plan, records)
		if simulateDryRun {
			fmt.Fprintln(out, "\nDry run: outcomes were not recorded.")
		} else if Aggregator != nil {
			fmt.Fprintln(out)
			printCalibration(out, Aggregator.Snapshot())
		}
		return nil
	},
}

func printSimulations(out io.Writer, plan *models.StrategyPlan, records []models.SimulationRecord) {
	if plan.Len() == 0 {
		fmt.Fprintln(out, "Plan is empty: nothing to simulate.")
		return
	}
	fmt.Fprintf(out, "%-3s %-24s %-7s %-10s %6s\n", "#", "ID", "RISK", "OUTCOME", "ROUNDS")
	for i, rec := range records {
		fmt.Fprintf(out, "%-3d %-24s %-7s %-10s %6d\n", i+1, rec.OpportunityID, rec.Risk, rec.FinalState, rec.Rounds)
	}

	sum := core.SummarizeOutcomes(records)
	fmt.Fprintf(out, "\n%d simulated, %.0f%% merged, %.1f rounds on average\n",
		sum.Total, sum.SuccessRate*100, sum.AverageRound)
	for _, st := range sum.SortedStates() {
		fmt.Fprintf(out, "  %-12s %d\n", st, sum.ByState[st])
	}
}

func init() {
	simulateFlags.register(simulateCmd)
	simulateCmd.Flags().Uint64Var(&simulateSeed, "seed", 0, "Base seed for simulations (defaults to simulation.seed)")
	simulateCmd.Flags().BoolVar(&simulateDryRun, "dry-run", false, "Simulate without recording outcomes or saving")
	simulateCmd.Flags().BoolVar(&simulateFromPlan, "from-plan", false, "Execute the saved plan instead of building one")
	simulateCmd.Flags().BoolVar(&simulateJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(simulateCmd)
}
