package core

import (
	"context"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

// CandidateSource supplies the opportunities found by the discovery and
// analysis collaborators. Defined here so core does not import storage.
type CandidateSource interface {
	ListOpportunities() ([]models.Opportunity, error)
}

// ArtifactProvider is the coder collaborator. It produces the artifact for a
// plan entry and returns an opaque reference to it.
type ArtifactProvider interface {
	Produce(ctx context.Context, entry models.PlanEntry) (string, error)
}

// CalibrationPersister saves calibration snapshots between runs.
type CalibrationPersister interface {
	SaveCalibration(state models.CalibrationState) error
}

// OutcomeRecorder keeps a durable ledger of terminal simulations.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, rec models.SimulationRecord) error
}

// PlanSaver persists the most recent strategy plan.
type PlanSaver interface {
	SavePlan(plan *models.StrategyPlan) error
}
