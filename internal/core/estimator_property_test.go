package core

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

func drawCalibration(rt *rapid.T) models.CalibrationState {
	cal := models.NewCalibrationState(models.DefaultPriors)
	for _, rc := range models.RiskCategories {
		cal.Categories[rc] = models.CategoryCalibration{
			ApprovalRate: rapid.Float64Range(0, 1).Draw(rt, string(rc)+"_rate"),
			SampleCount:  rapid.IntRange(0, 50).Draw(rt, string(rc)+"_samples"),
		}
	}
	return cal
}

// Success probabilities are always valid probabilities.
func TestProperty_SuccessProbabilityInUnitInterval(t *testing.T) {
	e, _ := NewEstimator(DefaultEstimationConfig())
	rapid.Check(t, func(rt *rapid.T) {
		got := e.Estimate(drawOpportunity(rt, "opp"), drawCalibration(rt))
		if !(got.SuccessProbability >= 0 && got.SuccessProbability <= 1) {
			rt.Fatalf("SuccessProbability = %v", got.SuccessProbability)
		}
		if !got.Risk.Valid() {
			rt.Fatalf("Risk = %q", got.Risk)
		}
	})
}

// A harder, larger change to a less friendly repository is never placed in
// a lower risk category.
func TestProperty_RiskMonotonicInDifficulty(t *testing.T) {
	e, _ := NewEstimator(DefaultEstimationConfig())
	rapid.Check(t, func(rt *rapid.T) {
		cal := drawCalibration(rt)
		opp := drawOpportunity(rt, "opp")
		delta := rapid.Float64Range(0, 1).Draw(rt, "delta")

		worse := opp
		worse.Difficulty += delta
		worse.ChangeSize += delta
		worse.Repository.Friendliness -= delta

		a, b := e.Estimate(opp, cal), e.Estimate(worse, cal)
		if b.Risk.Rank() < a.Risk.Rank() {
			rt.Fatalf("risk fell from %s to %s as the change got harder", a.Risk, b.Risk)
		}
		if b.RiskIndex < a.RiskIndex-floatTolerance {
			rt.Fatalf("risk index fell from %v to %v", a.RiskIndex, b.RiskIndex)
		}
	})
}

// Estimation is pure: the same inputs give the same estimate.
func TestProperty_EstimateDeterministic(t *testing.T) {
	e, _ := NewEstimator(DefaultEstimationConfig())
	rapid.Check(t, func(rt *rapid.T) {
		opp := drawOpportunity(rt, "opp")
		cal := drawCalibration(rt)
		if a, b := e.Estimate(opp, cal), e.Estimate(opp, cal.Clone()); a != b {
			rt.Fatalf("Estimate() not deterministic: %+v vs %+v", a, b)
		}
	})
}
