package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

var (
	metricsJSON  bool
	metricsSince string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display planning and outcome metrics",
	Long: `Display aggregated metrics derived from the event log.

Metrics include plans created, simulations started and finished, final
states by risk category, approval rates, review rounds, and calibration
activity.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (observability may be disabled)")
		}

		sinceTime, err := parseSinceDuration(metricsSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		metrics, err := MetricsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		out := cmd.OutOrStdout()
		if metricsJSON {
			return writeJSON(out, metrics)
		}

		// Table format.
		fmt.Fprintf(out, "Metrics (since %s)\n\n", sinceTime.Format("2006-01-02"))
		fmt.Fprintf(out, "  %-24s %d\n", "Events recorded:", metrics.EventCount)
		fmt.Fprintf(out, "  %-24s %d\n", "Plans created:", metrics.PlansCreated)
		fmt.Fprintf(out, "  %-24s %d\n", "Simulations started:", metrics.SimulationsStarted)
		fmt.Fprintf(out, "  %-24s %d\n", "Simulations finished:", metrics.SimulationsFinished)
		fmt.Fprintf(out, "  %-24s %d\n", "Dry-run simulations:", metrics.DryRunSimulations)
		fmt.Fprintf(out, "  %-24s %.1f%%\n", "Approval rate:", metrics.ApprovalRate()*100)
		fmt.Fprintf(out, "  %-24s %.1f\n", "Average rounds:", metrics.AverageRounds())
		fmt.Fprintf(out, "  %-24s %d\n", "Exhausted review loops:", metrics.ExhaustedLoops)
		fmt.Fprintf(out, "  %-24s %d\n", "Calibration updates:", metrics.CalibrationUpdates)
		fmt.Fprintf(out, "  %-24s %d\n", "Warnings:", metrics.Warnings)

		if len(metrics.OutcomesByState) > 0 {
			fmt.Fprintln(out, "\n  Outcomes by state:")
			for _, st := range models.LifecycleStates {
				if n := metrics.OutcomesByState[string(st)]; n > 0 {
					fmt.Fprintf(out, "    %-20s %d\n", string(st)+":", n)
				}
			}
		}

		if len(metrics.OutcomesByRisk) > 0 {
			fmt.Fprintln(out, "\n  Approval by risk:")
			for _, rc := range models.RiskCategories {
				rate, ok := metrics.RiskApprovalRate(string(rc))
				if !ok {
					continue
				}
				fmt.Fprintf(out, "    %-20s %5.1f%% of %d\n", string(rc)+":", rate*100, metrics.OutcomesByRisk[string(rc)])
			}
		}

		if metrics.OldestEvent != nil {
			fmt.Fprintf(out, "\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
		}
		if metrics.NewestEvent != nil {
			fmt.Fprintf(out, "  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
		}

		return nil
	},
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time in the past.
func parseSinceDuration(s string) (time.Time, error) {
	now := time.Now().UTC()
	s = strings.TrimSpace(s)
	if s == "" {
		return now.AddDate(0, 0, -7), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "7d", "Time window for metrics (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(metricsCmd)
}
