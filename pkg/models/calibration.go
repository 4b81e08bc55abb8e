package models

import "time"

// DefaultPriors are the approval rates assumed for a risk category before any
// outcome has been observed.
var DefaultPriors = map[RiskCategory]float64{
	RiskLow:    0.8,
	RiskMedium: 0.5,
	RiskHigh:   0.2,
}

// CategoryCalibration is the running approval estimate for one risk category.
type CategoryCalibration struct {
	ApprovalRate float64 `yaml:"approval_rate" json:"approval_rate"`
	SampleCount  int     `yaml:"sample_count" json:"sample_count"`
}

// CalibrationState maps each risk category to its running approval estimate.
type CalibrationState struct {
	Categories map[RiskCategory]CategoryCalibration `yaml:"categories" json:"categories"`
	UpdatedAt  time.Time                            `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// NewCalibrationState returns a state seeded with the given priors and zero
// samples. Categories missing from priors fall back to DefaultPriors.
func NewCalibrationState(priors map[RiskCategory]float64) CalibrationState {
	cs := CalibrationState{Categories: make(map[RiskCategory]CategoryCalibration, len(RiskCategories))}
	for _, rc := range RiskCategories {
		p, ok := priors[rc]
		if !ok {
			p = DefaultPriors[rc]
		}
		cs.Categories[rc] = CategoryCalibration{ApprovalRate: Clamp01(p)}
	}
	return cs
}

// Get returns the calibration for a category. A missing category reports zero
// samples.
func (c CalibrationState) Get(rc RiskCategory) CategoryCalibration {
	if c.Categories == nil {
		return CategoryCalibration{}
	}
	return c.Categories[rc]
}

// Clone returns a deep copy.
func (c CalibrationState) Clone() CalibrationState {
	out := CalibrationState{
		Categories: make(map[RiskCategory]CategoryCalibration, len(c.Categories)),
		UpdatedAt:  c.UpdatedAt,
	}
	for k, v := range c.Categories {
		out.Categories[k] = v
	}
	return out
}

// TotalSamples returns the number of outcomes recorded across all categories.
func (c CalibrationState) TotalSamples() int {
	n := 0
	for _, v := range c.Categories {
		n += v.SampleCount
	}
	return n
}
