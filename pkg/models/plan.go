package models

import "fmt"

// RiskCategory partitions opportunities by how likely they are to run into
// trouble during review. The ordering Low < Medium < High is significant.
type RiskCategory string

const (
	RiskLow    RiskCategory = "low"
	RiskMedium RiskCategory = "medium"
	RiskHigh   RiskCategory = "high"
)

// RiskCategories lists every category in ascending order of risk.
var RiskCategories = []RiskCategory{RiskLow, RiskMedium, RiskHigh}

// Rank returns the position of the category in ascending risk order, or
// len(RiskCategories) for an unknown value.
func (r RiskCategory) Rank() int {
	for i, c := range RiskCategories {
		if c == r {
			return i
		}
	}
	return len(RiskCategories)
}

// Valid reports whether r is one of the known categories.
func (r RiskCategory) Valid() bool {
	return r.Rank() < len(RiskCategories)
}

// ParseRiskCategory converts a string into a RiskCategory.
func ParseRiskCategory(s string) (RiskCategory, error) {
	r := RiskCategory(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid risk category %q: must be one of low, medium, high", s)
	}
	return r, nil
}

// ScoredOpportunity is an opportunity together with its derived priority
// score, risk category and success probability. It is recomputed, never
// mutated, when inputs or calibration change.
type ScoredOpportunity struct {
	Opportunity        Opportunity  `yaml:"opportunity" json:"opportunity"`
	Score              float64      `yaml:"score" json:"score"`
	Risk               RiskCategory `yaml:"risk" json:"risk"`
	SuccessProbability float64      `yaml:"success_probability" json:"success_probability"`
}

// ExpectedValue is the score weighted by the probability of success.
func (s ScoredOpportunity) ExpectedValue() float64 {
	return s.Score * s.SuccessProbability
}

// Constraints bound a strategy plan.
type Constraints struct {
	MaxConcurrent         int     `yaml:"max_concurrent" json:"max_concurrent" mapstructure:"max_concurrent"`
	EffortBudget          float64 `yaml:"effort_budget" json:"effort_budget" mapstructure:"effort_budget"`
	MinSuccessProbability float64 `yaml:"min_success_probability" json:"min_success_probability" mapstructure:"min_success_probability"`
}

// PlanEntry is one selected opportunity in execution order.
type PlanEntry struct {
	Position      int               `yaml:"position" json:"position"`
	Scored        ScoredOpportunity `yaml:"scored" json:"scored"`
	ExpectedValue float64           `yaml:"expected_value" json:"expected_value"`
	Effort        float64           `yaml:"effort" json:"effort"`
	Timeline      string            `yaml:"timeline,omitempty" json:"timeline,omitempty"`
}

// StrategyPlan is an ordered, resource-bounded selection of opportunities.
// Entry order is execution order.
type StrategyPlan struct {
	Entries            []PlanEntry `yaml:"entries" json:"entries"`
	Constraints        Constraints `yaml:"constraints" json:"constraints"`
	TotalExpectedValue float64     `yaml:"total_expected_value" json:"total_expected_value"`
	TotalEffort        float64     `yaml:"total_effort" json:"total_effort"`
	Considered         int         `yaml:"considered" json:"considered"`
	Excluded           int         `yaml:"excluded" json:"excluded"`
}

// Len returns the number of selected opportunities.
func (p *StrategyPlan) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Entries)
}
