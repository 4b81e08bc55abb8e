package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	cplanmcp "github.com/valter-silva-au/contrib-planner/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the cplan MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the cplan MCP server on stdio",
	Long: `Start the cplan MCP server on stdio transport.

The server exposes cplan functionality as MCP tools that AI coding assistants
can call: score_candidates, build_plan, simulate_contribution,
get_calibration, get_metrics, get_alerts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Pipeline == nil {
			return fmt.Errorf("pipeline not initialized")
		}

		srv := cplanmcp.NewServer(cplanmcp.Deps{
			Pipeline:    Pipeline,
			Simulator:   Simulator,
			Aggregator:  Aggregator,
			MetricsCalc: MetricsCalc,
			AlertEngine: AlertEngine,
			Constraints: configuredConstraints(),
			Seed:        configuredSeed(),
		}, appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
