package core

import (
	"math"
	"sort"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

// budgetEpsilon absorbs float rounding when summing efforts against the budget.
const budgetEpsilon = 1e-9

// Planner builds a StrategyPlan from scored opportunities.
//
// Selection is a bounded greedy knapsack: candidates are ranked by expected
// value and taken in order while they fit the remaining budget and the plan
// has room. The result is deterministic and bounded but not guaranteed to be
// the optimal selection.
type Planner interface {
	Plan(candidates []models.ScoredOpportunity, constraints models.Constraints) (*models.StrategyPlan, error)
}

type greedyPlanner struct {
	skill models.SkillLevel
}

// NewPlanner creates a Planner. skill only affects the timeline attached to
// each plan entry.
func NewPlanner(skill models.SkillLevel) Planner {
	if skill == "" {
		skill = models.SkillIntermediate
	}
	return &greedyPlanner{skill: skill}
}

// DefaultConstraints returns the default planning constraints.
func DefaultConstraints() models.Constraints {
	return models.Constraints{
		MaxConcurrent:         4,
		EffortBudget:          2.0,
		MinSuccessProbability: 0.3,
	}
}

// ValidateConstraints rejects constraints that make planning infeasible. The
// returned error is a *ConstraintError naming the first offending field.
func ValidateConstraints(c models.Constraints) error {
	if c.MaxConcurrent <= 0 {
		return &ConstraintError{Field: "max_concurrent", Value: c.MaxConcurrent, Reason: "must be greater than zero"}
	}
	if math.IsNaN(c.EffortBudget) || math.IsInf(c.EffortBudget, 0) || c.EffortBudget < 0 {
		return &ConstraintError{Field: "effort_budget", Value: c.EffortBudget, Reason: "must be a finite number >= 0"}
	}
	if math.IsNaN(c.MinSuccessProbability) || c.MinSuccessProbability < 0 || c.MinSuccessProbability > 1 {
		return &ConstraintError{Field: "min_success_probability", Value: c.MinSuccessProbability, Reason: "must be in [0,1]"}
	}
	return nil
}

type rankedCandidate struct {
	scored models.ScoredOpportunity
	ev     float64
	effort float64
}

func (p *greedyPlanner) Plan(candidates []models.ScoredOpportunity, constraints models.Constraints) (*models.StrategyPlan, error) {
	if err := ValidateConstraints(constraints); err != nil {
		return nil, err
	}

	plan := &models.StrategyPlan{
		Entries:     []models.PlanEntry{},
		Constraints: constraints,
		Considered:  len(candidates),
	}

	ranked := make([]rankedCandidate, 0, len(candidates))
	for _, c := range candidates {
		if !(c.SuccessProbability >= constraints.MinSuccessProbability) {
			plan.Excluded++
			continue
		}
		ranked = append(ranked, rankedCandidate{
			scored: c,
			ev:     c.ExpectedValue(),
			effort: c.Opportunity.Effort(),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return rankedBefore(ranked[i], ranked[j])
	})

	seen := make(map[string]struct{}, len(ranked))
	used := 0.0
	for _, rc := range ranked {
		if len(plan.Entries) >= constraints.MaxConcurrent {
			break
		}
		id := rc.scored.Opportunity.ID
		if _, dup := seen[id]; dup {
			continue
		}
		// Only the best-ranked instance of an ID is eligible, even when it
		// does not fit the budget.
		seen[id] = struct{}{}
		if used+rc.effort > constraints.EffortBudget+budgetEpsilon {
			continue
		}
		used += rc.effort
		plan.Entries = append(plan.Entries, models.PlanEntry{
			Position:      len(plan.Entries) + 1,
			Scored:        rc.scored,
			ExpectedValue: rc.ev,
			Effort:        rc.effort,
			Timeline:      EstimateTimeline(rc.effort, p.skill),
		})
		plan.TotalExpectedValue += rc.ev
	}
	plan.TotalEffort = used

	return plan, nil
}

// rankedBefore orders by expected value descending, then risk ascending, then
// difficulty ascending, then opportunity ID so that the order is total.
func rankedBefore(a, b rankedCandidate) bool {
	if a.ev != b.ev {
		return a.ev > b.ev
	}
	if ra, rb := a.scored.Risk.Rank(), b.scored.Risk.Rank(); ra != rb {
		return ra < rb
	}
	if a.effort != b.effort {
		return a.effort < b.effort
	}
	return a.scored.Opportunity.ID < b.scored.Opportunity.ID
}

// EstimateTimeline buckets an effort in [0,1] into a human-readable duration,
// scaled by the contributor's skill level.
func EstimateTimeline(effort float64, skill models.SkillLevel) string {
	days := 2 + 8*models.Clamp01(effort)
	switch skill {
	case models.SkillBeginner:
		days *= 1.5
	case models.SkillAdvanced:
		days *= 0.7
	}

	switch {
	case days <= 3:
		return "1-3 days"
	case days <= 7:
		return "3-7 days"
	case days <= 14:
		return "1-2 weeks"
	default:
		return "2+ weeks"
	}
}
