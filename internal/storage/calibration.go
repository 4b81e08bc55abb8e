package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

// CalibrationFile represents the top-level structure of calibration.yaml.
type CalibrationFile struct {
	Version     string                  `yaml:"version"`
	Calibration models.CalibrationState `yaml:"calibration"`
}

// CalibrationStore persists the outcome aggregator's calibration between
// runs.
type CalibrationStore interface {
	// LoadCalibration returns the saved state, or nil when nothing has been
	// saved yet.
	LoadCalibration() (*models.CalibrationState, error)
	SaveCalibration(state models.CalibrationState) error
	// ClearCalibration removes the saved state. Missing files are not an
	// error.
	ClearCalibration() error
}

type fileCalibrationStore struct {
	basePath string
}

// NewCalibrationStore creates a CalibrationStore backed by calibration.yaml
// in the given base directory.
func NewCalibrationStore(basePath string) CalibrationStore {
	return &fileCalibrationStore{basePath: basePath}
}

func (s *fileCalibrationStore) filePath() string {
	return filepath.Join(s.basePath, "calibration.yaml")
}

func (s *fileCalibrationStore) LoadCalibration() (*models.CalibrationState, error) {
	data, err := os.ReadFile(s.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading calibration: %w", err)
	}
	var f CalibrationFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("loading calibration: parsing YAML: %w", err)
	}
	if f.Calibration.Categories == nil {
		f.Calibration.Categories = make(map[models.RiskCategory]models.CategoryCalibration)
	}
	for rc := range f.Calibration.Categories {
		if !rc.Valid() {
			return nil, fmt.Errorf("loading calibration: unknown risk category %q", rc)
		}
	}
	return &f.Calibration, nil
}

func (s *fileCalibrationStore) SaveCalibration(state models.CalibrationState) error {
	if err := os.MkdirAll(s.basePath, 0o750); err != nil {
		return fmt.Errorf("saving calibration: creating directory: %w", err)
	}
	data, err := yaml.Marshal(&CalibrationFile{Version: "1.0", Calibration: state})
	if err != nil {
		return fmt.Errorf("saving calibration: marshaling YAML: %w", err)
	}
	if err := writeFileLocked(s.filePath(), data); err != nil {
		return fmt.Errorf("saving calibration: writing file: %w", err)
	}
	return nil
}

func (s *fileCalibrationStore) ClearCalibration() error {
	if err := os.Remove(s.filePath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing calibration: %w", err)
	}
	return nil
}
