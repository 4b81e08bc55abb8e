// Package core contains the business logic for the contribution planner,
// including scoring, risk estimation, plan selection, lifecycle simulation,
// outcome calibration, and configuration.
package core

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/viper"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

// ConfigFileName is the name of the global configuration file, without
// extension, looked up in the base directory.
const ConfigFileName = ".cplanconfig"

// ConfigurationManager defines the interface for loading and validating the
// global configuration from .cplanconfig.yaml and CPLAN_* environment
// variables.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading YAML configuration files.
type viperConfigManager struct {
	// basePath is the root directory where .cplanconfig.yaml resides.
	basePath string
}

// NewConfigurationManager creates a new ConfigurationManager that reads
// configuration files relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultGlobalConfig returns a GlobalConfig populated with sensible defaults.
func DefaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		Scoring:    DefaultScoringWeights(),
		Estimation: DefaultEstimationConfig(),
		Planning:   DefaultConstraints(),
		Preferences: models.PreferenceConfig{
			SkillLevel: models.SkillIntermediate,
		},
		Simulation: DefaultSimulationConfig(),
		Notifications: models.NotificationConfig{
			Alerts: models.DefaultAlertConfig(),
		},
		Telemetry: models.TelemetryConfig{
			ServiceName: "cplan",
		},
	}
}

// setDefaults registers every key so that missing keys fall back gracefully
// and AutomaticEnv can resolve CPLAN_* overrides during Unmarshal.
func setDefaults(v *viper.Viper, cfg *models.GlobalConfig) {
	v.SetDefault("scoring.impact", cfg.Scoring.Impact)
	v.SetDefault("scoring.ease", cfg.Scoring.Ease)
	v.SetDefault("scoring.friendliness", cfg.Scoring.Friendliness)
	v.SetDefault("scoring.staleness", cfg.Scoring.Staleness)

	est := cfg.Estimation
	v.SetDefault("estimation.risk_weights.difficulty", est.RiskWeights.Difficulty)
	v.SetDefault("estimation.risk_weights.change_size", est.RiskWeights.ChangeSize)
	v.SetDefault("estimation.risk_weights.unfriendliness", est.RiskWeights.Unfriendly)
	v.SetDefault("estimation.risk_thresholds.low_max", est.RiskThresholds.LowMax)
	v.SetDefault("estimation.risk_thresholds.medium_max", est.RiskThresholds.MediumMax)
	v.SetDefault("estimation.priors.low", est.Priors.Low)
	v.SetDefault("estimation.priors.medium", est.Priors.Medium)
	v.SetDefault("estimation.priors.high", est.Priors.High)
	v.SetDefault("estimation.signal_blend", est.SignalBlend)

	v.SetDefault("planning.max_concurrent", cfg.Planning.MaxConcurrent)
	v.SetDefault("planning.effort_budget", cfg.Planning.EffortBudget)
	v.SetDefault("planning.min_success_probability", cfg.Planning.MinSuccessProbability)

	v.SetDefault("preferences.skill_level", string(cfg.Preferences.SkillLevel))
	v.SetDefault("preferences.languages", []string{})
	v.SetDefault("preferences.avoid_categories", []string{})
	v.SetDefault("preferences.min_popularity", cfg.Preferences.MinPopularity)
	v.SetDefault("preferences.max_popularity", cfg.Preferences.MaxPopularity)

	sim := cfg.Simulation
	v.SetDefault("simulation.max_rounds", sim.MaxRounds)
	v.SetDefault("simulation.seed", sim.Seed)
	v.SetDefault("simulation.ci_pass_base", sim.CIPassBase)
	v.SetDefault("simulation.ci_pass_gain", sim.CIPassGain)
	v.SetDefault("simulation.approval_scale", sim.ApprovalScale)
	v.SetDefault("simulation.rejection_scale", sim.RejectionScale)
	v.SetDefault("simulation.workers", sim.Workers)

	v.SetDefault("coder.command", cfg.Coder.Command)
	v.SetDefault("coder.args", []string{})

	n := cfg.Notifications
	v.SetDefault("notifications.enabled", n.Enabled)
	v.SetDefault("notifications.slack.webhook_url", n.Slack.WebhookURL)
	v.SetDefault("notifications.alerts.min_approval_rate", n.Alerts.MinApprovalRate)
	v.SetDefault("notifications.alerts.min_samples", n.Alerts.MinSamples)
	v.SetDefault("notifications.alerts.max_exhausted_share", n.Alerts.MaxExhaustedShare)
	v.SetDefault("notifications.alerts.max_withdrawn_share", n.Alerts.MaxWithdrawnShare)

	v.SetDefault("telemetry.otlp_endpoint", cfg.Telemetry.Endpoint)
	v.SetDefault("telemetry.service_name", cfg.Telemetry.ServiceName)
}

// LoadGlobalConfig reads .cplanconfig.yaml from the base path using Viper.
// If the file does not exist, defaults (plus any environment overrides) are
// returned. The result is not validated; call ValidateConfig.
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	defaults := DefaultGlobalConfig()

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix("CPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, defaults)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
	}

	cfg := &models.GlobalConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", ConfigFileName, err)
	}
	return cfg, nil
}

// validSkillLevels is the set of allowed SkillLevel values.
var validSkillLevels = map[models.SkillLevel]bool{
	models.SkillBeginner:     true,
	models.SkillIntermediate: true,
	models.SkillAdvanced:     true,
}

// ValidateConfig checks the configuration for invalid values and returns a
// single error listing every problem found.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	return ValidateGlobalConfig(cfg)
}

// ValidateGlobalConfig checks every section of cfg.
func ValidateGlobalConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	errs = appendProblems(errs, validateScoringWeights(cfg.Scoring))
	errs = appendProblems(errs, validateEstimationConfig(cfg.Estimation))
	if err := ValidateConstraints(cfg.Planning); err != nil {
		errs = append(errs, "planning: "+err.Error())
	}
	errs = appendProblems(errs, LifecycleParamsFromConfig(cfg.Simulation).Validate())
	if cfg.Simulation.Workers < 1 {
		errs = append(errs, fmt.Sprintf("simulation.workers must be at least 1, got %d", cfg.Simulation.Workers))
	}

	p := cfg.Preferences
	if p.SkillLevel != "" && !validSkillLevels[p.SkillLevel] {
		errs = append(errs, fmt.Sprintf(
			"preferences.skill_level %q is invalid, must be one of: beginner, intermediate, advanced",
			p.SkillLevel,
		))
	}
	for _, c := range p.AvoidCategories {
		if !c.Valid() {
			errs = append(errs, fmt.Sprintf("preferences.avoid_categories contains unknown category %q", c))
		}
	}
	if p.MinPopularity < 0 || p.MaxPopularity < 0 {
		errs = append(errs, "preferences popularity bounds must be non-negative")
	} else if p.MaxPopularity > 0 && p.MinPopularity > p.MaxPopularity {
		errs = append(errs, fmt.Sprintf(
			"preferences.min_popularity (%d) must not exceed preferences.max_popularity (%d)",
			p.MinPopularity, p.MaxPopularity,
		))
	}

	n := cfg.Notifications
	if n.Enabled && n.Slack.WebhookURL == "" {
		errs = append(errs, "notifications.slack.webhook_url must be set when notifications are enabled")
	}
	for name, share := range map[string]float64{
		"min_approval_rate":   n.Alerts.MinApprovalRate,
		"max_exhausted_share": n.Alerts.MaxExhaustedShare,
		"max_withdrawn_share": n.Alerts.MaxWithdrawnShare,
	} {
		if math.IsNaN(share) || share < 0 || share > 1 {
			errs = append(errs, fmt.Sprintf("notifications.alerts.%s must be in [0,1], got %v", name, share))
		}
	}
	if n.Alerts.MinSamples < 0 {
		errs = append(errs, fmt.Sprintf("notifications.alerts.min_samples must be non-negative, got %d", n.Alerts.MinSamples))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// appendProblems flattens an aggregated validation error into its bullet
// lines so that every section reports under one header.
func appendProblems(errs []string, err error) []string {
	if err == nil {
		return errs
	}
	lines := strings.Split(err.Error(), "\n  - ")
	if len(lines) == 1 {
		return append(errs, lines[0])
	}
	return append(errs, lines[1:]...)
}
