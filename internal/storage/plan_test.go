package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

func samplePlan() *models.StrategyPlan {
	scored := models.ScoredOpportunity{
		Opportunity:        sampleOpportunity("opp-1"),
		Score:              2.1,
		Risk:               models.RiskLow,
		SuccessProbability: 0.83,
	}
	return &models.StrategyPlan{
		Entries: []models.PlanEntry{{
			Position:      1,
			Scored:        scored,
			ExpectedValue: scored.ExpectedValue(),
			Effort:        0.2,
			Timeline:      "3-7 days",
		}},
		Constraints:        models.Constraints{MaxConcurrent: 4, EffortBudget: 2, MinSuccessProbability: 0.3},
		TotalExpectedValue: scored.ExpectedValue(),
		TotalEffort:        0.2,
		Considered:         3,
		Excluded:           1,
	}
}

func TestPlanStore_NoPlan(t *testing.T) {
	_, err := NewPlanStore(t.TempDir()).LoadPlan()
	if !errors.Is(err, ErrNoPlan) {
		t.Fatalf("LoadPlan() error = %v, want ErrNoPlan", err)
	}
}

func TestPlanStore_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	want := samplePlan()
	if err := NewPlanStore(dir).SavePlan(want); err != nil {
		t.Fatalf("SavePlan() error = %v", err)
	}

	got, err := NewPlanStore(dir).LoadPlan()
	if err != nil {
		t.Fatalf("LoadPlan() error = %v", err)
	}
	if got.Len() != 1 || got.Entries[0].Scored.Opportunity.ID != "opp-1" {
		t.Fatalf("entries = %+v", got.Entries)
	}
	if got.Constraints != want.Constraints || got.Considered != 3 || got.Excluded != 1 {
		t.Errorf("plan = %+v", got)
	}
	if got.Entries[0].Timeline != "3-7 days" || got.Entries[0].Scored.Risk != models.RiskLow {
		t.Errorf("entry = %+v", got.Entries[0])
	}
}

func TestPlanStore_SaveReplaces(t *testing.T) {
	dir := t.TempDir()
	store := NewPlanStore(dir)
	_ = store.SavePlan(samplePlan())

	empty := &models.StrategyPlan{Constraints: models.Constraints{MaxConcurrent: 1}}
	if err := store.SavePlan(empty); err != nil {
		t.Fatal(err)
	}
	got, err := store.LoadPlan()
	if err != nil {
		t.Fatal(err)
	}
	if got.Entries == nil || got.Len() != 0 {
		t.Errorf("Entries = %v, want empty non-nil slice", got.Entries)
	}
}

func TestPlanStore_SaveNil(t *testing.T) {
	if err := NewPlanStore(t.TempDir()).SavePlan(nil); err == nil {
		t.Error("expected error saving nil plan")
	}
}

func TestPlanStore_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "plan.yaml"), []byte("plan: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewPlanStore(dir).LoadPlan()
	if err == nil || errors.Is(err, ErrNoPlan) {
		t.Errorf("LoadPlan() error = %v, want a parse error", err)
	}
}
