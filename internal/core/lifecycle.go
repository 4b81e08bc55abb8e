package core

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

// RandomSource is the pseudo-random stream a simulation draws from. Each
// simulation owns its own source so runs never share state.
type RandomSource interface {
	Float64() float64
}

// NewSeededSource returns a PCG-backed RandomSource for seed.
func NewSeededSource(seed uint64) RandomSource {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// LifecycleParams shapes the transition probabilities of the review
// lifecycle. All curves are monotonic in the contribution's success
// probability p:
//
//	P(ci passes)         = clamp(CIPassBase + CIPassGain*p)
//	P(approved)          = ApprovalScale*p
//	P(rejected)          = RejectionScale*(1-p)
//	P(changes requested) = the remainder
type LifecycleParams struct {
	MaxRounds      int
	CIPassBase     float64
	CIPassGain     float64
	ApprovalScale  float64
	RejectionScale float64
}

// DefaultSimulationConfig returns the simulator defaults.
func DefaultSimulationConfig() models.SimulationConfig {
	return models.SimulationConfig{
		MaxRounds:      3,
		Seed:           1,
		CIPassBase:     0.5,
		CIPassGain:     0.45,
		ApprovalScale:  0.75,
		RejectionScale: 0.3,
		Workers:        4,
	}
}

// LifecycleParamsFromConfig extracts the transition parameters from cfg.
func LifecycleParamsFromConfig(cfg models.SimulationConfig) LifecycleParams {
	return LifecycleParams{
		MaxRounds:      cfg.MaxRounds,
		CIPassBase:     cfg.CIPassBase,
		CIPassGain:     cfg.CIPassGain,
		ApprovalScale:  cfg.ApprovalScale,
		RejectionScale: cfg.RejectionScale,
	}
}

// Validate checks that the parameters describe a bounded lifecycle with
// monotonic transition curves.
func (p LifecycleParams) Validate() error {
	var errs []string
	unit := func(name string, v float64) {
		if math.IsNaN(v) || v < 0 || v > 1 {
			errs = append(errs, fmt.Sprintf("simulation.%s must be in [0,1], got %v", name, v))
		}
	}
	if p.MaxRounds < 1 {
		errs = append(errs, fmt.Sprintf("simulation.max_rounds must be at least 1, got %d", p.MaxRounds))
	}
	unit("ci_pass_base", p.CIPassBase)
	unit("ci_pass_gain", p.CIPassGain)
	unit("approval_scale", p.ApprovalScale)
	unit("rejection_scale", p.RejectionScale)
	if p.ApprovalScale < p.RejectionScale {
		errs = append(errs, fmt.Sprintf(
			"simulation.approval_scale (%v) must not be less than simulation.rejection_scale (%v)",
			p.ApprovalScale, p.RejectionScale,
		))
	}
	if len(errs) > 0 {
		return fmt.Errorf("simulation config invalid:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// CIPassProbability is the chance a CI run passes for success probability sp.
func (p LifecycleParams) CIPassProbability(sp float64) float64 {
	return models.Clamp01(p.CIPassBase + p.CIPassGain*models.Clamp01(sp))
}

// ReviewProbabilities returns the chances of approval, a change request and
// rejection for success probability sp. They sum to 1.
func (p LifecycleParams) ReviewProbabilities(sp float64) (approve, changes, reject float64) {
	sp = models.Clamp01(sp)
	approve = models.Clamp01(p.ApprovalScale * sp)
	reject = models.Clamp01(p.RejectionScale * (1 - sp))
	if approve+reject > 1 {
		reject = 1 - approve
	}
	changes = 1 - approve - reject
	return approve, changes, reject
}

// transitions lists the edges of the lifecycle state machine. Withdrawal is
// allowed from every non-terminal state and handled separately.
var transitions = map[models.LifecycleState][]models.LifecycleState{
	models.StateSubmitted:        {models.StateCIRunning},
	models.StateCIRunning:        {models.StateCIPassed, models.StateCIFailed},
	models.StateCIFailed:         {models.StateChangesRequested, models.StateRejected},
	models.StateCIPassed:         {models.StateReviewPending},
	models.StateReviewPending:    {models.StateApproved, models.StateChangesRequested, models.StateRejected},
	models.StateChangesRequested: {models.StateCIRunning, models.StateRejected},
	models.StateApproved:         {models.StateMerged},
}

// Simulation is one contribution's stochastic walk through the review
// lifecycle. It is safe to call Withdraw concurrently with Run.
type Simulation struct {
	mu sync.Mutex

	id           string
	contribution models.Contribution
	seed         uint64
	params       LifecycleParams
	rng          RandomSource

	state  models.LifecycleState
	round  int
	events []models.FeedbackEvent
}

// NewSimulation creates a simulation in the Submitted state, round 1, with a
// PCG source seeded by seed.
func NewSimulation(id string, contribution models.Contribution, seed uint64, params LifecycleParams) *Simulation {
	return NewSimulationWithSource(id, contribution, seed, params, NewSeededSource(seed))
}

// NewSimulationWithSource is NewSimulation with an explicit random source.
func NewSimulationWithSource(id string, contribution models.Contribution, seed uint64, params LifecycleParams, rng RandomSource) *Simulation {
	if params.MaxRounds < 1 {
		params.MaxRounds = 1
	}
	return &Simulation{
		id:           id,
		contribution: contribution,
		seed:         seed,
		params:       params,
		rng:          rng,
		state:        models.StateSubmitted,
		round:        1,
	}
}

// ID returns the simulation identifier.
func (s *Simulation) ID() string { return s.id }

// Contribution returns the simulated contribution.
func (s *Simulation) Contribution() models.Contribution { return s.contribution }

// Seed returns the seed the simulation was created with.
func (s *Simulation) Seed() uint64 { return s.seed }

// MaxRounds returns the bound on change-request rounds.
func (s *Simulation) MaxRounds() int { return s.params.MaxRounds }

// State returns the current lifecycle state.
func (s *Simulation) State() models.LifecycleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Round returns the current round, starting at 1.
func (s *Simulation) Round() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round
}

// IsTerminal reports whether the simulation reached an absorbing state.
func (s *Simulation) IsTerminal() bool {
	return s.State().IsTerminal()
}

// Events returns a copy of the feedback log.
func (s *Simulation) Events() []models.FeedbackEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.FeedbackEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Step performs one transition and returns the event it appended. Stepping a
// terminal simulation panics with a *TransitionError.
func (s *Simulation) Step() models.FeedbackEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.IsTerminal() {
		panic(&TransitionError{SimulationID: s.id, From: s.state, To: s.state, Round: s.round, Reason: "terminal state is absorbing"})
	}
	return s.stepLocked()
}

// Run steps the simulation until it reaches a terminal state. If ctx is
// cancelled first, the simulation is withdrawn. onEvent, when non-nil, is
// called with each appended event.
func (s *Simulation) Run(ctx context.Context, onEvent func(models.FeedbackEvent)) models.LifecycleState {
	for {
		if err := ctx.Err(); err != nil {
			if ev, ok := s.withdraw("cancelled: " + err.Error()); ok && onEvent != nil {
				onEvent(ev)
			}
			return s.State()
		}

		s.mu.Lock()
		if s.state.IsTerminal() {
			state := s.state
			s.mu.Unlock()
			return state
		}
		ev := s.stepLocked()
		s.mu.Unlock()

		if onEvent != nil {
			onEvent(ev)
		}
	}
}

// Withdraw moves a non-terminal simulation to Withdrawn. It returns
// ErrTerminalState, and appends nothing, once the simulation has finished.
func (s *Simulation) Withdraw(note string) error {
	if _, ok := s.withdraw(note); !ok {
		return fmt.Errorf("withdrawing simulation %s: %w", s.id, ErrTerminalState)
	}
	return nil
}

func (s *Simulation) withdraw(note string) (models.FeedbackEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.IsTerminal() {
		return models.FeedbackEvent{}, false
	}
	if note == "" {
		note = "withdrawn by contributor"
	}
	return s.applyLocked(models.StateWithdrawn, note), true
}

// Transition forces an explicit transition. Edges that are not part of the
// lifecycle, including round-guarded edges taken in the wrong round, panic
// with a *TransitionError.
func (s *Simulation) Transition(to models.LifecycleState, note string) models.FeedbackEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(to); err != nil {
		panic(err)
	}
	return s.applyLocked(to, note)
}

func (s *Simulation) checkLocked(to models.LifecycleState) *TransitionError {
	fail := func(reason string) *TransitionError {
		return &TransitionError{SimulationID: s.id, From: s.state, To: to, Round: s.round, Reason: reason}
	}
	if s.state.IsTerminal() {
		return fail("terminal state is absorbing")
	}
	if to == models.StateWithdrawn {
		return nil
	}
	allowed := false
	for _, next := range transitions[s.state] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return fail("")
	}

	roundsLeft := s.round < s.params.MaxRounds
	switch {
	case s.state == models.StateCIFailed && to == models.StateChangesRequested && !roundsLeft,
		s.state == models.StateChangesRequested && to == models.StateCIRunning && !roundsLeft:
		return fail(fmt.Sprintf("max rounds (%d) reached", s.params.MaxRounds))
	case s.state == models.StateCIFailed && to == models.StateRejected && roundsLeft,
		s.state == models.StateChangesRequested && to == models.StateRejected && roundsLeft:
		return fail("rounds remain")
	}
	return nil
}

// stepLocked chooses the next state. Random draws happen only when leaving
// CIRunning or ReviewPending, so the draw sequence depends on the seed and
// success probability alone.
func (s *Simulation) stepLocked() models.FeedbackEvent {
	sp := s.contribution.Scored.SuccessProbability
	roundsLeft := s.round < s.params.MaxRounds

	switch s.state {
	case models.StateSubmitted:
		return s.applyLocked(models.StateCIRunning, "checks queued")

	case models.StateCIRunning:
		if s.rng.Float64() < s.params.CIPassProbability(sp) {
			return s.applyLocked(models.StateCIPassed, "all checks passed")
		}
		return s.applyLocked(models.StateCIFailed, "checks failed")

	case models.StateCIFailed:
		if roundsLeft {
			return s.applyLocked(models.StateChangesRequested, "fix failing checks")
		}
		return s.applyLocked(models.StateRejected, "checks still failing after final round")

	case models.StateCIPassed:
		return s.applyLocked(models.StateReviewPending, "review requested")

	case models.StateReviewPending:
		approve, changes, _ := s.params.ReviewProbabilities(sp)
		u := s.rng.Float64()
		switch {
		case u < approve:
			return s.applyLocked(models.StateApproved, "approved by maintainer")
		case u < approve+changes:
			return s.applyLocked(models.StateChangesRequested, "maintainer requested changes")
		default:
			return s.applyLocked(models.StateRejected, "closed by maintainer")
		}

	case models.StateChangesRequested:
		if roundsLeft {
			return s.applyLocked(models.StateCIRunning, "revision pushed")
		}
		return s.applyLocked(models.StateRejected, fmt.Sprintf("review rounds exhausted (%d)", s.params.MaxRounds))

	case models.StateApproved:
		return s.applyLocked(models.StateMerged, "merged")
	}

	panic(&TransitionError{SimulationID: s.id, From: s.state, Round: s.round, Reason: "no outgoing transition"})
}

// applyLocked moves to the next state and appends exactly one event.
func (s *Simulation) applyLocked(to models.LifecycleState, note string) models.FeedbackEvent {
	from := s.state
	if from == models.StateChangesRequested && to == models.StateCIRunning {
		s.round++
	}
	s.state = to

	ev := models.FeedbackEvent{
		Round:            s.round,
		Kind:             eventKindFor(to),
		From:             from,
		To:               to,
		Passed:           to == models.StateCIPassed || to == models.StateApproved || to == models.StateMerged,
		ChangesRequested: to == models.StateChangesRequested,
		Note:             note,
	}
	s.events = append(s.events, ev)
	return ev
}

func eventKindFor(to models.LifecycleState) models.EventKind {
	switch to {
	case models.StateCIRunning, models.StateCIPassed, models.StateCIFailed:
		return models.EventCIResult
	case models.StateReviewPending, models.StateChangesRequested:
		return models.EventReviewComment
	default:
		return models.EventDecision
	}
}

// Record returns the serialisable summary of the simulation.
func (s *Simulation) Record() models.SimulationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]models.FeedbackEvent, len(s.events))
	copy(events, s.events)
	opp := s.contribution.Scored.Opportunity
	return models.SimulationRecord{
		ID:             s.id,
		ContributionID: s.contribution.ID,
		OpportunityID:  opp.ID,
		Repository:     opp.Repository.ID,
		Risk:           s.contribution.Scored.Risk,
		Seed:           s.seed,
		MaxRounds:      s.params.MaxRounds,
		FinalState:     s.state,
		Rounds:         s.round,
		Events:         events,
	}
}
