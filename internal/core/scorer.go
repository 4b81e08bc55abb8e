package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

// Scorer maps an opportunity to a composite priority score.
type Scorer interface {
	// Score is total: out-of-range features are clamped, never rejected.
	Score(opp models.Opportunity) float64
	Weights() models.ScoringWeights
}

// linearScorer computes
//
//	impact·w_i + (1-difficulty)·w_e + friendliness·w_f - staleness·w_s
//
// over features clamped to [0,1].
type linearScorer struct {
	weights models.ScoringWeights
}

// DefaultScoringWeights returns unit weights for every factor.
func DefaultScoringWeights() models.ScoringWeights {
	return models.ScoringWeights{Impact: 1, Ease: 1, Friendliness: 1, Staleness: 1}
}

// NewScorer creates a Scorer with the given weights. Every weight must be a
// finite, non-negative number.
func NewScorer(weights models.ScoringWeights) (Scorer, error) {
	if err := validateScoringWeights(weights); err != nil {
		return nil, err
	}
	return &linearScorer{weights: weights}, nil
}

func (s *linearScorer) Weights() models.ScoringWeights {
	return s.weights
}

func (s *linearScorer) Score(opp models.Opportunity) float64 {
	opp, _ = opp.Clamped()
	w := s.weights
	return w.Impact*opp.Impact +
		w.Ease*(1-opp.Difficulty) +
		w.Friendliness*opp.Repository.Friendliness -
		w.Staleness*opp.Staleness
}

func validateScoringWeights(w models.ScoringWeights) error {
	var errs []string
	check := func(name string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			errs = append(errs, fmt.Sprintf("scoring.weights.%s must be a non-negative number, got %v", name, v))
		}
	}
	check("impact", w.Impact)
	check("ease", w.Ease)
	check("friendliness", w.Friendliness)
	check("staleness", w.Staleness)
	if len(errs) > 0 {
		return fmt.Errorf("scoring weights invalid:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
