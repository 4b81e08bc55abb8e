package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/contrib-planner/internal/core"
	"github.com/valter-silva-au/contrib-planner/internal/integration"
	"github.com/valter-silva-au/contrib-planner/internal/storage"
)

const testCandidatesYAML = `opportunities:
  - id: opp-docs
    title: Document the retry options
    category: doc-gap
    repository: {id: acme/widgets, language: go, popularity: 1200, friendliness: 0.9}
    impact: 0.6
    difficulty: 0.1
    change_size: 0.1
    staleness: 0
  - id: opp-tests
    category: missing-test
    repository: {id: acme/widgets, language: go, popularity: 1200, friendliness: 0.8}
    impact: 0.5
    difficulty: 0.3
    change_size: 0.2
    staleness: 0
  - id: opp-rewrite
    category: refactor
    repository: {id: other/engine, language: rust, popularity: 300, friendliness: 0.2}
    impact: 0.9
    difficulty: 0.9
    change_size: 0.9
    staleness: 0.1
  - title: entry without an id
    category: feature
`

// setupWorkspace wires real stores and core services rooted at a temporary
// directory into the package-level service variables. Everything is restored
// when the test finishes.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	base := t.TempDir()

	origBase, origCfg := BasePath, Config
	origCands, origPlans, origCals, origLedger := Candidates, Plans, Calibrations, Ledger
	origPipe, origSim, origAgg := Pipeline, Simulator, Aggregator
	t.Cleanup(func() {
		BasePath, Config = origBase, origCfg
		Candidates, Plans, Calibrations, Ledger = origCands, origPlans, origCals, origLedger
		Pipeline, Simulator, Aggregator = origPipe, origSim, origAgg
	})

	cfg := core.DefaultGlobalConfig()
	BasePath = base
	Config = cfg
	Candidates = storage.NewCandidateStore(base)
	Plans = storage.NewPlanStore(base)
	Calibrations = storage.NewCalibrationStore(base)

	ledger, err := storage.OpenOutcomeLedger(filepath.Join(base, "outcomes.db"))
	if err != nil {
		t.Fatalf("OpenOutcomeLedger: %v", err)
	}
	t.Cleanup(func() { _ = ledger.Close() })
	Ledger = ledger

	scorer, err := core.NewScorer(cfg.Scoring)
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}
	estimator, err := core.NewEstimator(cfg.Estimation)
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	Simulator, err = core.NewSimulator(core.LifecycleParamsFromConfig(cfg.Simulation), nil)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	Aggregator = core.NewOutcomeAggregator(cfg.Estimation.Priors.AsMap(), nil, nil)
	Pipeline = core.NewPipeline(core.PipelineDeps{
		Candidates:  Candidates,
		Filter:      core.NewCandidateFilter(cfg.Preferences),
		Scorer:      scorer,
		Estimator:   estimator,
		Planner:     core.NewPlanner(cfg.Preferences.SkillLevel),
		Artifacts:   integration.NewPlaceholderProvider(),
		Simulator:   Simulator,
		Aggregator:  Aggregator,
		Calibration: Calibrations,
		Outcomes:    Ledger,
		Plans:       Plans,
		Workers:     2,
	})
	return base
}

// importTestCandidates writes and imports the standard candidate set.
func importTestCandidates(t *testing.T, base string) {
	t.Helper()
	path := filepath.Join(base, "import.yaml")
	if err := os.WriteFile(path, []byte(testCandidatesYAML), 0o600); err != nil {
		t.Fatalf("writing import file: %v", err)
	}
	if _, err := Candidates.Import(path); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if err := Candidates.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

// runCmd invokes cmd.RunE with a background context and captured output.
func runCmd(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	t.Cleanup(func() { cmd.SetOut(nil) })
	err := cmd.RunE(cmd, args)
	return out.String(), err
}

// setFlag sets a flag for the duration of the test, marking it as changed.
func setFlag(t *testing.T, cmd *cobra.Command, name, value string) {
	t.Helper()
	f := cmd.Flags().Lookup(name)
	if f == nil {
		t.Fatalf("flag %q not defined on %s", name, cmd.Name())
	}
	orig := f.Value.String()
	if err := cmd.Flags().Set(name, value); err != nil {
		t.Fatalf("setting --%s: %v", name, err)
	}
	t.Cleanup(func() {
		_ = f.Value.Set(orig)
		f.Changed = false
	})
}

func ledgerCount(t *testing.T) int {
	t.Helper()
	n, err := Ledger.CountOutcomes(context.Background())
	if err != nil {
		t.Fatalf("CountOutcomes: %v", err)
	}
	return n
}
