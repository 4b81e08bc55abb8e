package core

import (
	"golang.org/x/sync/errgroup"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

// ScoreOpportunity derives a ScoredOpportunity from one opportunity. The
// stored opportunity carries the clamped feature values that were used.
func ScoreOpportunity(scorer Scorer, estimator Estimator, opp models.Opportunity, calibration models.CalibrationState) models.ScoredOpportunity {
	clamped, _ := opp.Clamped()
	est := estimator.Estimate(clamped, calibration)
	return models.ScoredOpportunity{
		Opportunity:        clamped,
		Score:              scorer.Score(clamped),
		Risk:               est.Risk,
		SuccessProbability: est.SuccessProbability,
	}
}

// EvaluateAll scores and estimates every opportunity against one calibration
// snapshot. Work is spread over at most workers goroutines; the output keeps
// the input order regardless of scheduling.
func EvaluateAll(scorer Scorer, estimator Estimator, opps []models.Opportunity, calibration models.CalibrationState, workers int) []models.ScoredOpportunity {
	out := make([]models.ScoredOpportunity, len(opps))
	if len(opps) == 0 {
		return out
	}
	if workers <= 0 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range opps {
		g.Go(func() error {
			out[i] = ScoreOpportunity(scorer, estimator, opps[i], calibration)
			return nil
		})
	}
	_ = g.Wait() // workers never fail
	return out
}
