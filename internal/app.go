// Package internal provides the App struct that wires all components of the
// contribution planner together and initializes the CLI layer.
package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/valter-silva-au/contrib-planner/internal/cli"
	"github.com/valter-silva-au/contrib-planner/internal/core"
	"github.com/valter-silva-au/contrib-planner/internal/integration"
	"github.com/valter-silva-au/contrib-planner/internal/observability"
	"github.com/valter-silva-au/contrib-planner/internal/storage"
	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

const (
	eventLogFile = ".cplan_events.jsonl"
	ledgerFile   = "outcomes.db"
)

// App holds all service dependencies for the contribution planner.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.GlobalConfig

	// Storage layer
	Candidates   storage.CandidateStore
	Plans        storage.PlanStore
	Calibrations storage.CalibrationStore
	Ledger       *storage.OutcomeLedger

	// Core services
	Scorer     core.Scorer
	Estimator  core.Estimator
	Planner    core.Planner
	Simulator  core.Simulator
	Aggregator core.OutcomeAggregator
	Pipeline   core.Pipeline

	// Integration services
	Artifacts integration.ArtifactProvider

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier

	shutdownTracing func(context.Context) error
}

// NewApp creates and wires all components of the contribution planner.
// basePath is the root directory where all data is stored (typically
// $CPLAN_HOME or the directory containing .cplanconfig.yaml).
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	globalCfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		return nil, err
	}
	if err := app.ConfigMgr.ValidateConfig(globalCfg); err != nil {
		return nil, err
	}
	app.Config = globalCfg

	// --- Storage layer ---
	app.Candidates = storage.NewCandidateStore(basePath)
	if err := app.Candidates.Load(); err != nil {
		return nil, err
	}
	app.Plans = storage.NewPlanStore(basePath)
	app.Calibrations = storage.NewCalibrationStore(basePath)
	app.Ledger, err = storage.OpenOutcomeLedger(filepath.Join(basePath, ledgerFile))
	if err != nil {
		return nil, fmt.Errorf("opening outcome ledger: %w", err)
	}

	// --- Observability ---
	app.EventLog, err = observability.NewJSONLEventLog(filepath.Join(basePath, eventLogFile))
	if err != nil {
		// Non-fatal: disable observability if log can't be created.
		app.EventLog = nil
	}
	if app.EventLog != nil {
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, alertThresholds(globalCfg.Notifications.Alerts))
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	if globalCfg.Notifications.Enabled && globalCfg.Notifications.Slack.WebhookURL != "" {
		app.Notifier = observability.NewSlackNotifier(globalCfg.Notifications.Slack.WebhookURL)
	}
	app.shutdownTracing, err = observability.SetupTracing(context.Background(), globalCfg.Telemetry, cli.Version())
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}

	var evtAdapter core.EventLogger
	if app.EventLog != nil {
		evtAdapter = observability.NewRecorder(app.EventLog)
	}

	// --- Core services ---
	if app.Scorer, err = core.NewScorer(globalCfg.Scoring); err != nil {
		_ = app.Close()
		return nil, err
	}
	if app.Estimator, err = core.NewEstimator(globalCfg.Estimation); err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Planner = core.NewPlanner(globalCfg.Preferences.SkillLevel)
	if app.Simulator, err = core.NewSimulator(core.LifecycleParamsFromConfig(globalCfg.Simulation), evtAdapter); err != nil {
		_ = app.Close()
		return nil, err
	}

	saved, err := app.Calibrations.LoadCalibration()
	if err != nil {
		// A damaged calibration file is recoverable with 'cplan calibration rebuild'.
		if evtAdapter != nil {
			_ = evtAdapter.LogWarning("calibration.load_failed", map[string]any{"error": err.Error()})
		}
		saved = nil
	}
	app.Aggregator = core.NewOutcomeAggregator(globalCfg.Estimation.Priors.AsMap(), saved, evtAdapter)

	// --- Integration services ---
	app.Artifacts = integration.NewArtifactProvider(globalCfg.Coder, os.Stderr)

	app.Pipeline = core.NewPipeline(core.PipelineDeps{
		Candidates:  app.Candidates,
		Filter:      core.NewCandidateFilter(globalCfg.Preferences),
		Scorer:      app.Scorer,
		Estimator:   app.Estimator,
		Planner:     app.Planner,
		Artifacts:   app.Artifacts,
		Simulator:   app.Simulator,
		Aggregator:  app.Aggregator,
		Calibration: app.Calibrations,
		Outcomes:    app.Ledger,
		Plans:       app.Plans,
		EventLogger: evtAdapter,
		Workers:     globalCfg.Simulation.Workers,
	})

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Config = globalCfg
	cli.Candidates = app.Candidates
	cli.Plans = app.Plans
	cli.Calibrations = app.Calibrations
	cli.Ledger = app.Ledger
	cli.Pipeline = app.Pipeline
	cli.Simulator = app.Simulator
	cli.Aggregator = app.Aggregator

	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier

	return app, nil
}

// alertThresholds fills unset alert thresholds with their defaults.
func alertThresholds(cfg models.AlertConfig) models.AlertConfig {
	def := models.DefaultAlertConfig()
	if cfg.MinApprovalRate > 0 {
		def.MinApprovalRate = cfg.MinApprovalRate
	}
	if cfg.MinSamples > 0 {
		def.MinSamples = cfg.MinSamples
	}
	if cfg.MaxExhaustedShare > 0 {
		def.MaxExhaustedShare = cfg.MaxExhaustedShare
	}
	if cfg.MaxWithdrawnShare > 0 {
		def.MaxWithdrawnShare = cfg.MaxWithdrawnShare
	}
	return def
}

// Close flushes traces and releases the event log and ledger handles. It is
// safe to call on a partially initialized App.
func (a *App) Close() error {
	var errs []error
	if a.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.shutdownTracing(ctx))
		cancel()
	}
	if a.EventLog != nil {
		errs = append(errs, a.EventLog.Close())
	}
	if a.Ledger != nil {
		errs = append(errs, a.Ledger.Close())
	}
	return errors.Join(errs...)
}

// ResolveBasePath determines the data directory. It checks the CPLAN_HOME
// env var, then walks up from the current directory looking for
// .cplanconfig.yaml, then falls back to the current directory.
func ResolveBasePath() string {
	if home := os.Getenv("CPLAN_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	cwd := dir
	for {
		if _, err := os.Stat(filepath.Join(dir, core.ConfigFileName+".yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return cwd
}

