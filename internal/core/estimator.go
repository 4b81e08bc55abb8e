package core

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

// Estimate is the risk category and success probability derived for one
// opportunity under a calibration snapshot.
type Estimate struct {
	RiskIndex          float64
	Risk               models.RiskCategory
	SuccessProbability float64
}

// Estimator derives risk and success estimates. Implementations are pure:
// the result depends only on the opportunity and the calibration snapshot.
type Estimator interface {
	Estimate(opp models.Opportunity, calibration models.CalibrationState) Estimate
	// Prior returns the probability used for a category before blending.
	Prior(risk models.RiskCategory, calibration models.CalibrationState) float64
}

type calibratedEstimator struct {
	cfg    models.EstimationConfig
	priors map[models.RiskCategory]float64
}

// DefaultEstimationConfig returns the estimator defaults.
func DefaultEstimationConfig() models.EstimationConfig {
	return models.EstimationConfig{
		RiskWeights:    models.RiskWeights{Difficulty: 1, ChangeSize: 1, Unfriendly: 1},
		RiskThresholds: models.RiskThresholds{LowMax: 0.35, MediumMax: 0.65},
		Priors: models.PriorConfig{
			Low:    models.DefaultPriors[models.RiskLow],
			Medium: models.DefaultPriors[models.RiskMedium],
			High:   models.DefaultPriors[models.RiskHigh],
		},
		SignalBlend: 0.3,
	}
}

// NewEstimator creates an Estimator from cfg.
func NewEstimator(cfg models.EstimationConfig) (Estimator, error) {
	if err := validateEstimationConfig(cfg); err != nil {
		return nil, err
	}
	return &calibratedEstimator{cfg: cfg, priors: cfg.Priors.AsMap()}, nil
}

func (e *calibratedEstimator) Estimate(opp models.Opportunity, calibration models.CalibrationState) Estimate {
	opp, _ = opp.Clamped()

	w := e.cfg.RiskWeights
	index := (w.Difficulty*opp.Difficulty +
		w.ChangeSize*opp.ChangeSize +
		w.Unfriendly*(1-opp.Repository.Friendliness)) /
		(w.Difficulty + w.ChangeSize + w.Unfriendly)
	index = models.Clamp01(index)
	risk := e.categorize(index)

	signal := ((1 - opp.Difficulty) + opp.Repository.Friendliness) / 2
	blend := e.cfg.SignalBlend
	p := (1-blend)*e.Prior(risk, calibration) + blend*signal

	return Estimate{
		RiskIndex:          index,
		Risk:               risk,
		SuccessProbability: models.Clamp01(p),
	}
}

func (e *calibratedEstimator) Prior(risk models.RiskCategory, calibration models.CalibrationState) float64 {
	c := calibration.Get(risk)
	if c.SampleCount <= 0 {
		return e.priors[risk]
	}
	return models.Clamp01(c.ApprovalRate)
}

func (e *calibratedEstimator) categorize(index float64) models.RiskCategory {
	switch {
	case index < e.cfg.RiskThresholds.LowMax:
		return models.RiskLow
	case index < e.cfg.RiskThresholds.MediumMax:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}

func validateEstimationConfig(cfg models.EstimationConfig) error {
	var errs []string
	bad := func(v float64) bool { return math.IsNaN(v) || math.IsInf(v, 0) }

	w := cfg.RiskWeights
	for name, v := range map[string]float64{
		"difficulty":     w.Difficulty,
		"change_size":    w.ChangeSize,
		"unfriendliness": w.Unfriendly,
	} {
		if bad(v) || v < 0 {
			errs = append(errs, fmt.Sprintf("estimation.risk_weights.%s must be a non-negative number, got %v", name, v))
		}
	}
	if sum := w.Difficulty + w.ChangeSize + w.Unfriendly; !(sum > 0) {
		errs = append(errs, "estimation.risk_weights must not all be zero")
	}

	t := cfg.RiskThresholds
	if bad(t.LowMax) || bad(t.MediumMax) || t.LowMax < 0 || t.MediumMax > 1 || t.LowMax > t.MediumMax {
		errs = append(errs, fmt.Sprintf(
			"estimation.risk_thresholds must satisfy 0 <= low_max <= medium_max <= 1, got low_max=%v medium_max=%v",
			t.LowMax, t.MediumMax,
		))
	}

	for name, v := range map[string]float64{
		"low":    cfg.Priors.Low,
		"medium": cfg.Priors.Medium,
		"high":   cfg.Priors.High,
	} {
		if bad(v) || v < 0 || v > 1 {
			errs = append(errs, fmt.Sprintf("estimation.priors.%s must be in [0,1], got %v", name, v))
		}
	}

	if bad(cfg.SignalBlend) || cfg.SignalBlend < 0 || cfg.SignalBlend > 1 {
		errs = append(errs, fmt.Sprintf("estimation.signal_blend must be in [0,1], got %v", cfg.SignalBlend))
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("estimation config invalid:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
