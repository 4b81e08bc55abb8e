package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

// ErrNoPlan is returned by LoadPlan when no plan has been saved.
var ErrNoPlan = errors.New("no strategy plan saved")

// PlanFile represents the top-level structure of plan.yaml.
type PlanFile struct {
	Version string               `yaml:"version"`
	SavedAt time.Time            `yaml:"saved_at"`
	Plan    *models.StrategyPlan `yaml:"plan"`
}

// PlanStore keeps the most recently built strategy plan.
type PlanStore interface {
	SavePlan(plan *models.StrategyPlan) error
	LoadPlan() (*models.StrategyPlan, error)
}

type filePlanStore struct {
	basePath string
	now      func() time.Time
}

// NewPlanStore creates a PlanStore backed by plan.yaml in the given base
// directory.
func NewPlanStore(basePath string) PlanStore {
	return &filePlanStore{basePath: basePath, now: time.Now}
}

func (s *filePlanStore) filePath() string {
	return filepath.Join(s.basePath, "plan.yaml")
}

func (s *filePlanStore) SavePlan(plan *models.StrategyPlan) error {
	if plan == nil {
		return fmt.Errorf("saving plan: plan is nil")
	}
	if err := os.MkdirAll(s.basePath, 0o750); err != nil {
		return fmt.Errorf("saving plan: creating directory: %w", err)
	}
	data, err := yaml.Marshal(&PlanFile{Version: "1.0", SavedAt: s.now().UTC(), Plan: plan})
	if err != nil {
		return fmt.Errorf("saving plan: marshaling YAML: %w", err)
	}
	if err := writeFileLocked(s.filePath(), data); err != nil {
		return fmt.Errorf("saving plan: writing file: %w", err)
	}
	return nil
}

func (s *filePlanStore) LoadPlan() (*models.StrategyPlan, error) {
	data, err := os.ReadFile(s.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoPlan
		}
		return nil, fmt.Errorf("loading plan: %w", err)
	}
	var f PlanFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("loading plan: parsing YAML: %w", err)
	}
	if f.Plan == nil {
		return nil, ErrNoPlan
	}
	if f.Plan.Entries == nil {
		f.Plan.Entries = []models.PlanEntry{}
	}
	return f.Plan, nil
}
