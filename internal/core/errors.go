package core

import (
	"errors"
	"fmt"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

var (
	// ErrTerminalState is returned when an operation needs a simulation that
	// is still in progress.
	ErrTerminalState = errors.New("simulation already reached a terminal state")
	// ErrSimulationNotTerminal is returned when an in-progress simulation is
	// handed to the outcome aggregator.
	ErrSimulationNotTerminal = errors.New("simulation has not reached a terminal state")
	// ErrSimulationAlreadyRecorded is returned when the same simulation is
	// recorded twice.
	ErrSimulationAlreadyRecorded = errors.New("simulation already recorded")
)

// ConstraintError reports a planning constraint that makes planning
// infeasible. Field names the offending constraint.
type ConstraintError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("invalid constraint %s=%v: %s", e.Field, e.Value, e.Reason)
}

// TransitionError describes a lifecycle transition that is not part of the
// state machine. It is raised as a panic value: requesting one means a caller
// has already broken the simulator's invariants.
type TransitionError struct {
	SimulationID string
	From         models.LifecycleState
	To           models.LifecycleState
	Round        int
	Reason       string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("simulation %s: undefined transition %s -> %s in round %d", e.SimulationID, e.From, e.To, e.Round)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}
