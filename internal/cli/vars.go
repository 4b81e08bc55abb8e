package cli

import (
	"github.com/valter-silva-au/contrib-planner/internal/core"
	"github.com/valter-silva-au/contrib-planner/internal/observability"
	"github.com/valter-silva-au/contrib-planner/internal/storage"
	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

// Service instances, set during app initialization in app.go.
var (
	BasePath string
	Config   *models.GlobalConfig

	Candidates   storage.CandidateStore
	Plans        storage.PlanStore
	Calibrations storage.CalibrationStore
	Ledger       *storage.OutcomeLedger

	Pipeline   core.Pipeline
	Simulator  core.Simulator
	Aggregator core.OutcomeAggregator
)

// Observability service instances, set during app initialization in app.go.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)
