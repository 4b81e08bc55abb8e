package core

import (
	"context"
	"encoding/binary"
	"hash/fnv"

	"github.com/google/uuid"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

// Simulator creates and drives lifecycle simulations.
type Simulator interface {
	// Start creates a simulation for the contribution with the given seed.
	Start(contribution models.Contribution, seed uint64) *Simulation
	// Run drives sim to a terminal state, withdrawing it if ctx is cancelled,
	// and returns its record.
	Run(ctx context.Context, sim *Simulation) models.SimulationRecord
	// Preview runs sim like Run but marks every logged event as a dry run.
	// Outcome metrics skip dry-run events.
	Preview(ctx context.Context, sim *Simulation) models.SimulationRecord
	Params() LifecycleParams
}

type lifecycleSimulator struct {
	params      LifecycleParams
	eventLogger EventLogger
	newID       func() string
}

// NewSimulator creates a Simulator. eventLogger may be nil.
func NewSimulator(params LifecycleParams, eventLogger EventLogger) (Simulator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &lifecycleSimulator{
		params:      params,
		eventLogger: eventLogger,
		newID:       uuid.NewString,
	}, nil
}

func (s *lifecycleSimulator) Params() LifecycleParams {
	return s.params
}

func (s *lifecycleSimulator) Start(contribution models.Contribution, seed uint64) *Simulation {
	return NewSimulation(s.newID(), contribution, seed, s.params)
}

func (s *lifecycleSimulator) Run(ctx context.Context, sim *Simulation) models.SimulationRecord {
	return s.run(ctx, sim, false)
}

func (s *lifecycleSimulator) Preview(ctx context.Context, sim *Simulation) models.SimulationRecord {
	return s.run(ctx, sim, true)
}

func (s *lifecycleSimulator) run(ctx context.Context, sim *Simulation, dryRun bool) models.SimulationRecord {
	c := sim.Contribution()
	s.logEvent("simulation.started", dryRun, map[string]any{
		"simulation_id":       sim.ID(),
		"contribution_id":     c.ID,
		"opportunity_id":      c.Scored.Opportunity.ID,
		"risk":                string(c.Scored.Risk),
		"success_probability": c.Scored.SuccessProbability,
		"seed":                sim.Seed(),
	})

	sim.Run(ctx, func(ev models.FeedbackEvent) {
		s.logEvent("simulation.transition", dryRun, map[string]any{
			"simulation_id": sim.ID(),
			"round":         ev.Round,
			"kind":          string(ev.Kind),
			"from":          string(ev.From),
			"to":            string(ev.To),
			"note":          ev.Note,
		})
	})

	rec := sim.Record()
	s.logEvent("simulation.finished", dryRun, map[string]any{
		"simulation_id":  rec.ID,
		"opportunity_id": rec.OpportunityID,
		"risk":           string(rec.Risk),
		"final_state":    string(rec.FinalState),
		"rounds":         rec.Rounds,
		"max_rounds":     rec.MaxRounds,
		"events":         len(rec.Events),
		"exhausted":      rec.ExhaustedReviewLoop(),
	})
	return rec
}

func (s *lifecycleSimulator) logEvent(eventType string, dryRun bool, data map[string]any) {
	if s.eventLogger == nil {
		return
	}
	if dryRun {
		data[DryRunKey] = true
	}
	_ = s.eventLogger.LogEvent(eventType, data) // best-effort
}

// DryRunKey marks simulation events that were never recorded as outcomes.
const DryRunKey = "dry_run"

// DeriveSeed mixes a base seed with an opportunity ID so that every plan
// entry gets its own reproducible stream.
func DeriveSeed(base uint64, opportunityID string) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], base)
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(opportunityID))
	return h.Sum64()
}
