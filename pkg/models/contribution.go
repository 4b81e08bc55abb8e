package models

// Contribution binds a planned opportunity to the artifact produced for it by
// the coder collaborator. ArtifactRef is opaque to the planner.
type Contribution struct {
	ID          string            `yaml:"id" json:"id"`
	ArtifactRef string            `yaml:"artifact_ref" json:"artifact_ref"`
	Scored      ScoredOpportunity `yaml:"scored" json:"scored"`
}

// LifecycleState is a state of the simulated review lifecycle.
type LifecycleState string

const (
	StateSubmitted        LifecycleState = "submitted"
	StateCIRunning        LifecycleState = "ci_running"
	StateCIFailed         LifecycleState = "ci_failed"
	StateCIPassed         LifecycleState = "ci_passed"
	StateReviewPending    LifecycleState = "review_pending"
	StateChangesRequested LifecycleState = "changes_requested"
	StateApproved         LifecycleState = "approved"
	StateRejected         LifecycleState = "rejected"
	StateMerged           LifecycleState = "merged"
	StateWithdrawn        LifecycleState = "withdrawn"
)

// LifecycleStates lists every state in lifecycle order.
var LifecycleStates = []LifecycleState{
	StateSubmitted,
	StateCIRunning,
	StateCIFailed,
	StateCIPassed,
	StateReviewPending,
	StateChangesRequested,
	StateApproved,
	StateRejected,
	StateMerged,
	StateWithdrawn,
}

// IsTerminal reports whether the state is absorbing.
func (s LifecycleState) IsTerminal() bool {
	switch s {
	case StateMerged, StateRejected, StateWithdrawn:
		return true
	}
	return false
}

// EventKind classifies a feedback event.
type EventKind string

const (
	EventCIResult      EventKind = "ci_result"
	EventReviewComment EventKind = "review_comment"
	EventDecision      EventKind = "decision"
)

// FeedbackEvent records a single lifecycle transition. Events are append-only.
type FeedbackEvent struct {
	Round            int            `yaml:"round" json:"round"`
	Kind             EventKind      `yaml:"kind" json:"kind"`
	From             LifecycleState `yaml:"from" json:"from"`
	To               LifecycleState `yaml:"to" json:"to"`
	Passed           bool           `yaml:"passed" json:"passed"`
	ChangesRequested bool           `yaml:"changes_requested" json:"changes_requested"`
	Note             string         `yaml:"note,omitempty" json:"note,omitempty"`
}

// SimulationRecord is the serialisable summary of a finished simulation.
type SimulationRecord struct {
	ID             string          `yaml:"id" json:"id"`
	ContributionID string          `yaml:"contribution_id" json:"contribution_id"`
	OpportunityID  string          `yaml:"opportunity_id" json:"opportunity_id"`
	Repository     string          `yaml:"repository" json:"repository"`
	Risk           RiskCategory    `yaml:"risk" json:"risk"`
	Seed           uint64          `yaml:"seed" json:"seed"`
	MaxRounds      int             `yaml:"max_rounds" json:"max_rounds"`
	FinalState     LifecycleState  `yaml:"final_state" json:"final_state"`
	Rounds         int             `yaml:"rounds" json:"rounds"`
	Events         []FeedbackEvent `yaml:"events" json:"events"`
}

// Approved reports whether the simulation ended with the contribution merged.
func (r SimulationRecord) Approved() bool {
	return r.FinalState == StateMerged
}

// ExhaustedReviewLoop reports whether the contribution was rejected because
// it ran out of review rounds rather than by a maintainer decision.
func (r SimulationRecord) ExhaustedReviewLoop() bool {
	if r.FinalState != StateRejected || len(r.Events) == 0 {
		return false
	}
	from := r.Events[len(r.Events)-1].From
	return from == StateChangesRequested || from == StateCIFailed
}
