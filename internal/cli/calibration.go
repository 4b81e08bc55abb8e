package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/contrib-planner/internal/storage"
	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

var (
	calibrationJSON        bool
	calibrationClearLedger bool
)

var calibrationCmd = &cobra.Command{
	Use:   "calibration",
	Short: "Inspect and maintain per-risk approval estimates",
	Long: `The calibration holds a running approval rate for each risk category.
It starts from configured priors and moves toward observed outcomes as
simulations finish.`,
}

var calibrationShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current calibration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Aggregator == nil {
			return fmt.Errorf("outcome aggregator not initialized")
		}
		snap := Aggregator.Snapshot()
		if calibrationJSON {
			return writeJSON(cmd.OutOrStdout(), snap)
		}
		printCalibration(cmd.OutOrStdout(), snap)
		return nil
	},
}

var calibrationResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the priors and discard learned approval rates",
	Long: `Restore every risk category to its configured prior and delete the
saved calibration. Recorded outcomes are kept unless --ledger is given, so
'cplan calibration rebuild' can restore the learned state later.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Aggregator == nil {
			return fmt.Errorf("outcome aggregator not initialized")
		}
		Aggregator.Reset()
		if Calibrations != nil {
			if err := Calibrations.ClearCalibration(); err != nil {
				return fmt.Errorf("clearing saved calibration: %w", err)
			}
		}
		if calibrationClearLedger {
			if Ledger == nil {
				return fmt.Errorf("outcome ledger not initialized")
			}
			if err := Ledger.Clear(cmd.Context()); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Calibration reset to priors.")
		return nil
	},
}

var calibrationRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Recompute the calibration from the outcome ledger",
	Long: `Reset the calibration to its priors and replay every outcome in the
ledger in the order it was recorded. The result is saved.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Aggregator == nil {
			return fmt.Errorf("outcome aggregator not initialized")
		}
		if Ledger == nil {
			return fmt.Errorf("outcome ledger not initialized")
		}
		records, err := Ledger.ListOutcomes(cmd.Context(), storage.OutcomeQuery{})
		if err != nil {
			return fmt.Errorf("reading outcome ledger: %w", err)
		}

		Aggregator.Reset()
		for _, rec := range records {
			if err := Aggregator.RecordOutcome(rec); err != nil {
				return fmt.Errorf("replaying outcome: %w", err)
			}
		}
		snap := Aggregator.Snapshot()
		if Calibrations != nil {
			if err := Calibrations.SaveCalibration(snap); err != nil {
				return fmt.Errorf("saving calibration: %w", err)
			}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Replayed %d outcome(s).\n\n", len(records))
		printCalibration(out, snap)
		return nil
	},
}

func printCalibration(out io.Writer, cs models.CalibrationState) {
	fmt.Fprintln(out, "Calibration")
	fmt.Fprintf(out, "  %-8s %9s %8s\n", "RISK", "APPROVAL", "SAMPLES")
	for _, rc := range models.RiskCategories {
		c := cs.Get(rc)
		fmt.Fprintf(out, "  %-8s %8.1f%% %8d\n", rc, c.ApprovalRate*100, c.SampleCount)
	}
	if !cs.UpdatedAt.IsZero() {
		fmt.Fprintf(out, "  updated %s\n", cs.UpdatedAt.Format(time.RFC3339))
	}
}

func init() {
	calibrationShowCmd.Flags().BoolVar(&calibrationJSON, "json", false, "Output as JSON")
	calibrationResetCmd.Flags().BoolVar(&calibrationClearLedger, "ledger", false, "Also delete every recorded outcome")

	calibrationCmd.AddCommand(calibrationShowCmd)
	calibrationCmd.AddCommand(calibrationResetCmd)
	calibrationCmd.AddCommand(calibrationRebuildCmd)
	rootCmd.AddCommand(calibrationCmd)
}
