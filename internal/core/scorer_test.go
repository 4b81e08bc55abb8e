package core

import (
	"math"
	"strings"
	"testing"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

func TestScorer_DefaultWeights(t *testing.T) {
	s, err := NewScorer(DefaultScoringWeights())
	if err != nil {
		t.Fatalf("NewScorer() error = %v", err)
	}

	opp := newOpportunity("opp-1", 0.6, 0.1, 0.1, 0.9)
	opp.Staleness = 0.2

	// 0.6 + 0.9 + 0.9 - 0.2
	if got := s.Score(opp); !approxEqual(got, 2.2) {
		t.Errorf("Score() = %v, want 2.2", got)
	}
}

func TestScorer_CustomWeights(t *testing.T) {
	s, err := NewScorer(models.ScoringWeights{Impact: 2, Ease: 0, Friendliness: 0.5, Staleness: 1})
	if err != nil {
		t.Fatal(err)
	}
	opp := newOpportunity("opp-1", 0.5, 0.9, 0, 0.4)
	opp.Staleness = 0.5

	// 2*0.5 + 0 + 0.5*0.4 - 1*0.5
	if got := s.Score(opp); !approxEqual(got, 0.7) {
		t.Errorf("Score() = %v, want 0.7", got)
	}
}

func TestScorer_ClampsOutOfRangeFeatures(t *testing.T) {
	s, _ := NewScorer(DefaultScoringWeights())

	wild := newOpportunity("opp-wild", 5, -3, 0, 2)
	wild.Staleness = math.NaN()
	sane := newOpportunity("opp-sane", 1, 0, 0, 1)

	if got, want := s.Score(wild), s.Score(sane); !approxEqual(got, want) {
		t.Errorf("Score(out of range) = %v, want %v (clamped)", got, want)
	}
	if got := s.Score(wild); math.IsNaN(got) {
		t.Error("Score() returned NaN")
	}
}

func TestScorer_ZeroWeightsScoreZero(t *testing.T) {
	s, err := NewScorer(models.ScoringWeights{})
	if err != nil {
		t.Fatalf("zero weights should be accepted: %v", err)
	}
	if got := s.Score(newOpportunity("opp", 1, 0, 0, 1)); got != 0 {
		t.Errorf("Score() = %v, want 0", got)
	}
}

func TestNewScorer_RejectsInvalidWeights(t *testing.T) {
	tests := []struct {
		name    string
		weights models.ScoringWeights
		field   string
	}{
		{"negative impact", models.ScoringWeights{Impact: -1, Ease: 1}, "impact"},
		{"NaN ease", models.ScoringWeights{Ease: math.NaN()}, "ease"},
		{"infinite friendliness", models.ScoringWeights{Friendliness: math.Inf(1)}, "friendliness"},
		{"negative staleness", models.ScoringWeights{Staleness: -0.1}, "staleness"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScorer(tt.weights)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), "scoring.weights."+tt.field) {
				t.Errorf("error %q does not name %s", err, tt.field)
			}
		})
	}
}

func TestScorer_DefaultWeightScenarios(t *testing.T) {
	s, err := NewScorer(DefaultScoringWeights())
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name                                        string
		impact, difficulty, friendliness, staleness float64
		want                                        float64
	}{
		{"high impact easy fix in a friendly repo", 0.9, 0.2, 0.8, 0.1, 2.4},
		{"ideal candidate", 1, 0, 1, 0, 3},
		{"worst candidate", 0, 1, 0, 1, -1},
		{"middle of the road", 0.5, 0.5, 0.5, 0.5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp := newOpportunity("opp", tt.impact, tt.difficulty, 0, tt.friendliness)
			opp.Staleness = tt.staleness
			if got := s.Score(opp); !approxEqual(got, tt.want) {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}
