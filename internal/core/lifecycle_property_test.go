package core

import (
	"context"
	"testing"

	"pgregory.net/rapid"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

func isDefinedEdge(from, to models.LifecycleState) bool {
	if to == models.StateWithdrawn {
		return !from.IsTerminal()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Every simulation terminates within its round bound, and its event log is a
// contiguous walk over defined edges.
func TestProperty_SimulationTerminatesOnDefinedEdges(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		params := defaultParams()
		params.MaxRounds = rapid.IntRange(1, 6).Draw(rt, "max_rounds")
		sp := rapid.Float64Range(0, 1).Draw(rt, "p")
		seed := rapid.Uint64().Draw(rt, "seed")

		sim := NewSimulation("sim", newContribution("opp", sp, models.RiskMedium), seed, params)
		final := sim.Run(context.Background(), nil)

		if !final.IsTerminal() || final == models.StateWithdrawn {
			rt.Fatalf("final state = %s", final)
		}
		if sim.Round() < 1 || sim.Round() > params.MaxRounds {
			rt.Fatalf("Round() = %d, max %d", sim.Round(), params.MaxRounds)
		}

		events := sim.Events()
		if len(events) == 0 || events[0].From != models.StateSubmitted {
			rt.Fatalf("log does not start at submitted: %+v", events)
		}
		// Each round has at most six transitions.
		if len(events) > 6*params.MaxRounds {
			rt.Fatalf("%d events for %d rounds", len(events), params.MaxRounds)
		}
		for i, ev := range events {
			if !isDefinedEdge(ev.From, ev.To) {
				rt.Fatalf("event %d: undefined edge %s -> %s", i, ev.From, ev.To)
			}
			if i > 0 && events[i-1].To != ev.From {
				rt.Fatalf("event %d starts at %s but previous ended at %s", i, ev.From, events[i-1].To)
			}
			if i > 0 && ev.Round < events[i-1].Round {
				rt.Fatalf("round went backwards at event %d", i)
			}
		}
		if events[len(events)-1].To != final {
			rt.Fatalf("last event ends at %s, final state %s", events[len(events)-1].To, final)
		}
	})
}

// The same seed and inputs replay the same lifecycle.
func TestProperty_SimulationReproducible(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		sp := rapid.Float64Range(0, 1).Draw(rt, "p")
		seed := rapid.Uint64().Draw(rt, "seed")
		c := newContribution("opp", sp, models.RiskLow)

		a := NewSimulation("a", c, seed, defaultParams())
		b := NewSimulation("b", c, seed, defaultParams())
		a.Run(context.Background(), nil)
		b.Run(context.Background(), nil)

		ea, eb := a.Events(), b.Events()
		if len(ea) != len(eb) {
			rt.Fatalf("event counts differ: %d vs %d", len(ea), len(eb))
		}
		for i := range ea {
			if ea[i] != eb[i] {
				rt.Fatalf("event %d differs: %+v vs %+v", i, ea[i], eb[i])
			}
		}
	})
}

// Higher success probability never makes CI or approval less likely.
func TestProperty_TransitionCurvesMonotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		p := defaultParams()
		lo := rapid.Float64Range(0, 1).Draw(rt, "lo")
		hi := rapid.Float64Range(lo, 1).Draw(rt, "hi")

		if p.CIPassProbability(hi) < p.CIPassProbability(lo) {
			rt.Fatalf("CI pass probability decreased from %v to %v", lo, hi)
		}
		aLo, _, rLo := p.ReviewProbabilities(lo)
		aHi, _, rHi := p.ReviewProbabilities(hi)
		if aHi < aLo || rHi > rLo {
			rt.Fatalf("review curves not monotonic between %v and %v", lo, hi)
		}
	})
}
