package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// Version returns the version string injected via ldflags.
func Version() string {
	return appVersion
}

var rootCmd = &cobra.Command{
	Use:   "cplan",
	Short: "Contribution planner - choose, plan, and rehearse open-source contributions",
	Long: `cplan (contribution planner) scores candidate open-source contribution
opportunities, selects a resource-bounded strategy plan, and rehearses each
planned contribution through a simulated CI and review lifecycle.

Outcomes of finished simulations feed back into per-risk approval estimates,
so later plans are ranked against what actually got merged.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "cplan %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
