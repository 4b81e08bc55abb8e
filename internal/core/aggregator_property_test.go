package core

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

func drawOutcomes(rt *rapid.T) []models.SimulationRecord {
	n := rapid.IntRange(1, 60).Draw(rt, "n")
	out := make([]models.SimulationRecord, n)
	for i := range out {
		out[i] = terminalRecord(
			fmt.Sprintf("s%d", i),
			rapid.SampledFrom(models.RiskCategories).Draw(rt, fmt.Sprintf("risk_%d", i)),
			rapid.SampledFrom([]models.LifecycleState{
				models.StateMerged, models.StateRejected, models.StateWithdrawn,
			}).Draw(rt, fmt.Sprintf("final_%d", i)),
		)
	}
	return out
}

// Once a category has samples its approval rate is the observed approval
// frequency, so the result does not depend on recording order.
func TestProperty_CalibrationIsObservedFrequency(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		outcomes := drawOutcomes(rt)

		a := NewOutcomeAggregator(models.DefaultPriors, nil, nil)
		for _, rec := range outcomes {
			if err := a.RecordOutcome(rec); err != nil {
				rt.Fatal(err)
			}
		}

		approved := map[models.RiskCategory]int{}
		total := map[models.RiskCategory]int{}
		for _, rec := range outcomes {
			total[rec.Risk]++
			if rec.Approved() {
				approved[rec.Risk]++
			}
		}

		snap := a.Snapshot()
		for _, rc := range models.RiskCategories {
			c := snap.Get(rc)
			if c.SampleCount != total[rc] {
				rt.Fatalf("%s SampleCount = %d, want %d", rc, c.SampleCount, total[rc])
			}
			if total[rc] == 0 {
				if c.ApprovalRate != models.DefaultPriors[rc] {
					rt.Fatalf("%s without samples moved off its prior", rc)
				}
				continue
			}
			want := float64(approved[rc]) / float64(total[rc])
			if !approxEqual(c.ApprovalRate, want) {
				rt.Fatalf("%s rate = %v, want %v", rc, c.ApprovalRate, want)
			}
		}

		shuffled := rapid.Permutation(outcomes).Draw(rt, "shuffled")
		b := NewOutcomeAggregator(models.DefaultPriors, nil, nil)
		for _, rec := range shuffled {
			_ = b.RecordOutcome(rec)
		}
		for _, rc := range models.RiskCategories {
			if !approxEqual(b.Snapshot().Get(rc).ApprovalRate, snap.Get(rc).ApprovalRate) {
				rt.Fatalf("%s rate depends on recording order", rc)
			}
		}
	})
}
