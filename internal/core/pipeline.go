package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

var tracer = otel.Tracer("github.com/valter-silva-au/contrib-planner/internal/core")

// RunOptions configures a pipeline run.
type RunOptions struct {
	Constraints models.Constraints
	// Seed is mixed with each opportunity ID to seed its simulation.
	Seed uint64
	// DryRun simulates without recording outcomes or persisting anything.
	DryRun bool
	// PlanOnly stops after planning.
	PlanOnly bool
}

// Evaluation is the scored candidate set under one calibration snapshot.
type Evaluation struct {
	Loaded      int
	Dropped     map[string]FilterReason
	Clamped     map[string][]string
	Scored      []models.ScoredOpportunity
	Calibration models.CalibrationState
}

// PipelineResult summarises what a pipeline run accomplished.
type PipelineResult struct {
	RunID       string
	Evaluation  *Evaluation
	Plan        *models.StrategyPlan
	Simulations []models.SimulationRecord
	Calibration models.CalibrationState
}

// Pipeline coordinates the load -> score -> plan -> execute -> record cycle.
type Pipeline interface {
	// Evaluate loads, filters, and scores every candidate.
	Evaluate(ctx context.Context) (*Evaluation, error)
	// BuildPlan evaluates candidates and selects a plan under constraints.
	BuildPlan(ctx context.Context, constraints models.Constraints) (*models.StrategyPlan, *Evaluation, error)
	// Execute obtains artifacts for every plan entry and simulates them.
	Execute(ctx context.Context, plan *models.StrategyPlan, opts RunOptions) ([]models.SimulationRecord, error)
	// Run executes a full cycle.
	Run(ctx context.Context, opts RunOptions) (*PipelineResult, error)
}

// PipelineDeps are the collaborators of a Pipeline. Calibration, Outcomes,
// Plans and EventLogger may be nil.
type PipelineDeps struct {
	Candidates  CandidateSource
	Filter      CandidateFilter
	Scorer      Scorer
	Estimator   Estimator
	Planner     Planner
	Artifacts   ArtifactProvider
	Simulator   Simulator
	Aggregator  OutcomeAggregator
	Calibration CalibrationPersister
	Outcomes    OutcomeRecorder
	Plans       PlanSaver
	EventLogger EventLogger
	Workers     int
}

type pipeline struct {
	PipelineDeps
}

// NewPipeline creates a Pipeline from deps.
func NewPipeline(deps PipelineDeps) Pipeline {
	if deps.Workers <= 0 {
		deps.Workers = 1
	}
	return &pipeline{PipelineDeps: deps}
}

func (p *pipeline) Evaluate(ctx context.Context) (*Evaluation, error) {
	_, span := tracer.Start(ctx, "pipeline.evaluate")
	defer span.End()

	opps, err := p.Candidates.ListOpportunities()
	if err != nil {
		return nil, spanError(span, fmt.Errorf("loading candidates: %w", err))
	}

	kept := opps
	dropped := map[string]FilterReason{}
	if p.Filter != nil {
		kept, dropped = p.Filter.Apply(opps)
	}

	clamped := make(map[string][]string)
	for _, o := range kept {
		if _, fields := o.Clamped(); len(fields) > 0 {
			clamped[o.ID] = fields
			p.warn("candidate.clamped", map[string]any{
				"opportunity_id": o.ID,
				"fields":         fields,
			})
		}
	}

	calibration := p.Aggregator.Snapshot()
	scored := EvaluateAll(p.Scorer, p.Estimator, kept, calibration, p.Workers)

	span.SetAttributes(
		attribute.Int("candidates.loaded", len(opps)),
		attribute.Int("candidates.dropped", len(dropped)),
		attribute.Int("candidates.scored", len(scored)),
	)
	return &Evaluation{
		Loaded:      len(opps),
		Dropped:     dropped,
		Clamped:     clamped,
		Scored:      scored,
		Calibration: calibration,
	}, nil
}

func (p *pipeline) BuildPlan(ctx context.Context, constraints models.Constraints) (*models.StrategyPlan, *Evaluation, error) {
	ctx, span := tracer.Start(ctx, "pipeline.plan")
	defer span.End()

	// Constraint errors surface before any candidate is loaded.
	if err := ValidateConstraints(constraints); err != nil {
		return nil, nil, spanError(span, err)
	}

	eval, err := p.Evaluate(ctx)
	if err != nil {
		return nil, nil, spanError(span, err)
	}

	plan, err := p.Planner.Plan(eval.Scored, constraints)
	if err != nil {
		return nil, nil, spanError(span, fmt.Errorf("planning: %w", err))
	}

	ids := make([]string, len(plan.Entries))
	for i, e := range plan.Entries {
		ids[i] = e.Scored.Opportunity.ID
	}
	p.log("plan.created", map[string]any{
		"selected":             len(plan.Entries),
		"considered":           plan.Considered,
		"excluded":             plan.Excluded,
		"total_expected_value": plan.TotalExpectedValue,
		"total_effort":         plan.TotalEffort,
		"opportunity_ids":      ids,
	})
	span.SetAttributes(attribute.Int("plan.entries", len(plan.Entries)))
	return plan, eval, nil
}

func (p *pipeline) Execute(ctx context.Context, plan *models.StrategyPlan, opts RunOptions) ([]models.SimulationRecord, error) {
	ctx, span := tracer.Start(ctx, "pipeline.simulate")
	defer span.End()

	if plan == nil || len(plan.Entries) == 0 {
		return []models.SimulationRecord{}, nil
	}

	// The first failing entry cancels the rest and nothing is recorded.
	sims := make([]*Simulation, len(plan.Entries))
	records := make([]models.SimulationRecord, len(plan.Entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Workers)
	for i, entry := range plan.Entries {
		g.Go(func() error {
			sim, rec, err := p.simulateEntry(gctx, entry, opts)
			if err != nil {
				return err
			}
			sims[i], records[i] = sim, rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, spanError(span, err)
	}

	if !opts.DryRun {
		if err := p.recordOutcomes(ctx, sims); err != nil {
			return nil, spanError(span, err)
		}
	}

	span.SetAttributes(attribute.Int("simulations", len(records)))
	return records, nil
}

func (p *pipeline) simulateEntry(ctx context.Context, entry models.PlanEntry, opts RunOptions) (*Simulation, models.SimulationRecord, error) {
	opp := entry.Scored.Opportunity
	ref, err := p.Artifacts.Produce(ctx, entry)
	if err != nil {
		return nil, models.SimulationRecord{}, fmt.Errorf("producing artifact for %s: %w", opp.ID, err)
	}

	contribution := models.Contribution{
		ID:          uuid.NewString(),
		ArtifactRef: ref,
		Scored:      entry.Scored,
	}
	sim := p.Simulator.Start(contribution, DeriveSeed(opts.Seed, opp.ID))
	if opts.DryRun {
		return sim, p.Simulator.Preview(ctx, sim), nil
	}
	return sim, p.Simulator.Run(ctx, sim), nil
}

// recordOutcomes writes each outcome to the ledger and then folds it into
// the calibration, in plan order. The calibration is saved whenever at least
// one outcome was recorded, so a partial failure leaves the saved
// calibration matching the ledger.
func (p *pipeline) recordOutcomes(ctx context.Context, sims []*Simulation) (err error) {
	recorded := 0
	defer func() {
		if recorded == 0 || p.Calibration == nil {
			return
		}
		if saveErr := p.Calibration.SaveCalibration(p.Aggregator.Snapshot()); saveErr != nil {
			err = errors.Join(err, fmt.Errorf("saving calibration: %w", saveErr))
		}
	}()

	for _, sim := range sims {
		rec := sim.Record()
		if p.Outcomes != nil {
			if err := p.Outcomes.RecordOutcome(ctx, rec); err != nil {
				return fmt.Errorf("writing outcome ledger for %s: %w", rec.OpportunityID, err)
			}
		}
		if err := p.Aggregator.Record(sim); err != nil {
			return fmt.Errorf("recording outcome for %s: %w", rec.OpportunityID, err)
		}
		recorded++
	}
	return nil
}

func (p *pipeline) Run(ctx context.Context, opts RunOptions) (*PipelineResult, error) {
	runID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "pipeline.run", trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	plan, eval, err := p.BuildPlan(ctx, opts.Constraints)
	if err != nil {
		return nil, spanError(span, err)
	}
	if !opts.DryRun && p.Plans != nil {
		if err := p.Plans.SavePlan(plan); err != nil {
			return nil, spanError(span, fmt.Errorf("saving plan: %w", err))
		}
	}

	result := &PipelineResult{
		RunID:       runID,
		Evaluation:  eval,
		Plan:        plan,
		Simulations: []models.SimulationRecord{},
	}
	if !opts.PlanOnly {
		records, err := p.Execute(ctx, plan, opts)
		if err != nil {
			return nil, spanError(span, err)
		}
		result.Simulations = records
	}
	result.Calibration = p.Aggregator.Snapshot()
	return result, nil
}

func (p *pipeline) log(eventType string, data map[string]any) {
	if p.EventLogger != nil {
		_ = p.EventLogger.LogEvent(eventType, data)
	}
}

func (p *pipeline) warn(eventType string, data map[string]any) {
	if p.EventLogger != nil {
		_ = p.EventLogger.LogWarning(eventType, data)
	}
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// OutcomeSummary tallies final states across simulation records.
type OutcomeSummary struct {
	Total        int                           `json:"total"`
	ByState      map[models.LifecycleState]int `json:"by_state"`
	SuccessRate  float64                       `json:"success_rate"`
	AverageRound float64                       `json:"average_rounds"`
}

// SummarizeOutcomes computes feedback statistics for a batch of records.
func SummarizeOutcomes(records []models.SimulationRecord) OutcomeSummary {
	s := OutcomeSummary{ByState: make(map[models.LifecycleState]int)}
	if len(records) == 0 {
		return s
	}
	merged, rounds := 0, 0
	for _, r := range records {
		s.ByState[r.FinalState]++
		rounds += r.Rounds
		if r.Approved() {
			merged++
		}
	}
	s.Total = len(records)
	s.SuccessRate = float64(merged) / float64(len(records))
	s.AverageRound = float64(rounds) / float64(len(records))
	return s
}

// SortedStates returns the states present in the summary in lifecycle order.
func (s OutcomeSummary) SortedStates() []models.LifecycleState {
	order := make(map[models.LifecycleState]int, len(models.LifecycleStates))
	for i, st := range models.LifecycleStates {
		order[st] = i
	}
	out := make([]models.LifecycleState, 0, len(s.ByState))
	for st := range s.ByState {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out
}
