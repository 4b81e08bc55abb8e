package cli

import (
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/contrib-planner/internal/core"
	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

// constraintFlags holds per-command overrides of the configured planning
// constraints.
type constraintFlags struct {
	maxConcurrent int
	budget        float64
	minSuccess    float64
}

func (f *constraintFlags) register(cmd *cobra.Command) {
	def := core.DefaultConstraints()
	cmd.Flags().IntVar(&f.maxConcurrent, "max-concurrent", def.MaxConcurrent, "Maximum number of plan entries")
	cmd.Flags().Float64Var(&f.budget, "budget", def.EffortBudget, "Total effort budget")
	cmd.Flags().Float64Var(&f.minSuccess, "min-success", def.MinSuccessProbability, "Minimum success probability")
}

// resolve starts from the configured constraints and applies only the flags
// the user set explicitly.
func (f *constraintFlags) resolve(cmd *cobra.Command) models.Constraints {
	c := configuredConstraints()
	if cmd.Flags().Changed("max-concurrent") {
		c.MaxConcurrent = f.maxConcurrent
	}
	if cmd.Flags().Changed("budget") {
		c.EffortBudget = f.budget
	}
	if cmd.Flags().Changed("min-success") {
		c.MinSuccessProbability = f.minSuccess
	}
	return c
}

// configuredConstraints returns the planning section of the config, or the
// defaults when no config is loaded.
func configuredConstraints() models.Constraints {
	if Config != nil {
		return Config.Planning
	}
	return core.DefaultConstraints()
}

// configuredSeed returns the base simulation seed from config.
func configuredSeed() uint64 {
	if Config != nil {
		return Config.Simulation.Seed
	}
	return core.DefaultSimulationConfig().Seed
}
