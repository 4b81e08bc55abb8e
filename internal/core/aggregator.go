package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

// OutcomeAggregator owns the process-wide calibration state. It folds
// terminal simulation outcomes into a per-risk-category moving average
// that the Estimator reads through snapshots.
type OutcomeAggregator interface {
	// Record folds a terminal simulation into the calibration. It fails for
	// simulations that are still in progress or were already recorded.
	Record(sim *Simulation) error
	// RecordOutcome folds a previously persisted terminal record.
	RecordOutcome(rec models.SimulationRecord) error
	// Snapshot returns a point-in-time copy of the calibration state.
	Snapshot() models.CalibrationState
	// Reset restores the priors and forgets every recorded outcome.
	Reset()
}

type movingAverageAggregator struct {
	mu       sync.RWMutex
	priors   map[models.RiskCategory]float64
	state    models.CalibrationState
	recorded map[string]struct{}
	now      func() time.Time

	eventLogger EventLogger
}

// NewOutcomeAggregator creates an aggregator starting from initial, or from
// the priors when initial is nil. eventLogger may be nil.
func NewOutcomeAggregator(priors map[models.RiskCategory]float64, initial *models.CalibrationState, eventLogger EventLogger) OutcomeAggregator {
	a := &movingAverageAggregator{
		priors:      priors,
		recorded:    make(map[string]struct{}),
		now:         func() time.Time { return time.Now().UTC() },
		eventLogger: eventLogger,
	}
	if initial != nil && initial.Categories != nil {
		a.state = initial.Clone()
		for _, rc := range models.RiskCategories {
			if _, ok := a.state.Categories[rc]; !ok {
				a.state.Categories[rc] = models.NewCalibrationState(priors).Categories[rc]
			}
		}
	} else {
		a.state = models.NewCalibrationState(priors)
	}
	return a
}

func (a *movingAverageAggregator) Record(sim *Simulation) error {
	if sim == nil {
		return fmt.Errorf("recording outcome: simulation is nil")
	}
	rec := sim.Record()
	if !rec.FinalState.IsTerminal() {
		return fmt.Errorf("recording simulation %s in state %s: %w", rec.ID, rec.FinalState, ErrSimulationNotTerminal)
	}
	return a.RecordOutcome(rec)
}

func (a *movingAverageAggregator) RecordOutcome(rec models.SimulationRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("recording outcome: simulation ID must not be empty")
	}
	if !rec.FinalState.IsTerminal() {
		return fmt.Errorf("recording simulation %s in state %s: %w", rec.ID, rec.FinalState, ErrSimulationNotTerminal)
	}
	if !rec.Risk.Valid() {
		return fmt.Errorf("recording simulation %s: unknown risk category %q", rec.ID, rec.Risk)
	}

	a.mu.Lock()
	if _, dup := a.recorded[rec.ID]; dup {
		a.mu.Unlock()
		return fmt.Errorf("recording simulation %s: %w", rec.ID, ErrSimulationAlreadyRecorded)
	}
	a.recorded[rec.ID] = struct{}{}

	c := a.state.Categories[rec.Risk]
	outcome := 0.0
	if rec.Approved() {
		outcome = 1
	}
	c.ApprovalRate = models.Clamp01(c.ApprovalRate + (outcome-c.ApprovalRate)/float64(c.SampleCount+1))
	c.SampleCount++
	a.state.Categories[rec.Risk] = c
	a.state.UpdatedAt = a.now()
	a.mu.Unlock()

	if a.eventLogger != nil {
		_ = a.eventLogger.LogEvent("calibration.updated", map[string]any{
			"simulation_id": rec.ID,
			"risk":          string(rec.Risk),
			"final_state":   string(rec.FinalState),
			"approval_rate": c.ApprovalRate,
			"sample_count":  c.SampleCount,
		})
	}
	return nil
}

func (a *movingAverageAggregator) Snapshot() models.CalibrationState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.Clone()
}

func (a *movingAverageAggregator) Reset() {
	a.mu.Lock()
	a.state = models.NewCalibrationState(a.priors)
	a.state.UpdatedAt = a.now()
	a.recorded = make(map[string]struct{})
	a.mu.Unlock()

	if a.eventLogger != nil {
		_ = a.eventLogger.LogEvent("calibration.reset", nil)
	}
}
