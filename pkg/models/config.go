package models

// SkillLevel describes the contributor's experience and scales timeline
// estimates.
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
)

// ScoringWeights are the non-negative weights of the priority score.
type ScoringWeights struct {
	Impact       float64 `yaml:"impact" json:"impact" mapstructure:"impact"`
	Ease         float64 `yaml:"ease" json:"ease" mapstructure:"ease"`
	Friendliness float64 `yaml:"friendliness" json:"friendliness" mapstructure:"friendliness"`
	Staleness    float64 `yaml:"staleness" json:"staleness" mapstructure:"staleness"`
}

// RiskWeights weight the inputs of the risk index.
type RiskWeights struct {
	Difficulty float64 `yaml:"difficulty" json:"difficulty" mapstructure:"difficulty"`
	ChangeSize float64 `yaml:"change_size" json:"change_size" mapstructure:"change_size"`
	Unfriendly float64 `yaml:"unfriendliness" json:"unfriendliness" mapstructure:"unfriendliness"`
}

// RiskThresholds partition the risk index. Values below LowMax are Low,
// values below MediumMax are Medium, everything else is High.
type RiskThresholds struct {
	LowMax    float64 `yaml:"low_max" json:"low_max" mapstructure:"low_max"`
	MediumMax float64 `yaml:"medium_max" json:"medium_max" mapstructure:"medium_max"`
}

// EstimationConfig configures the risk and success estimator.
type EstimationConfig struct {
	RiskWeights    RiskWeights    `yaml:"risk_weights" json:"risk_weights" mapstructure:"risk_weights"`
	RiskThresholds RiskThresholds `yaml:"risk_thresholds" json:"risk_thresholds" mapstructure:"risk_thresholds"`
	Priors         PriorConfig    `yaml:"priors" json:"priors" mapstructure:"priors"`
	SignalBlend    float64        `yaml:"signal_blend" json:"signal_blend" mapstructure:"signal_blend"`
}

// PriorConfig holds the default approval prior per risk category.
type PriorConfig struct {
	Low    float64 `yaml:"low" json:"low" mapstructure:"low"`
	Medium float64 `yaml:"medium" json:"medium" mapstructure:"medium"`
	High   float64 `yaml:"high" json:"high" mapstructure:"high"`
}

// AsMap returns the priors keyed by risk category.
func (p PriorConfig) AsMap() map[RiskCategory]float64 {
	return map[RiskCategory]float64{
		RiskLow:    p.Low,
		RiskMedium: p.Medium,
		RiskHigh:   p.High,
	}
}

// PreferenceConfig narrows the candidate set before scoring.
type PreferenceConfig struct {
	SkillLevel      SkillLevel `yaml:"skill_level" json:"skill_level" mapstructure:"skill_level"`
	Languages       []string   `yaml:"languages,omitempty" json:"languages,omitempty" mapstructure:"languages"`
	AvoidCategories []Category `yaml:"avoid_categories,omitempty" json:"avoid_categories,omitempty" mapstructure:"avoid_categories"`
	MinPopularity   int        `yaml:"min_popularity" json:"min_popularity" mapstructure:"min_popularity"`
	MaxPopularity   int        `yaml:"max_popularity" json:"max_popularity" mapstructure:"max_popularity"`
}

// SimulationConfig configures the lifecycle simulator.
type SimulationConfig struct {
	MaxRounds      int     `yaml:"max_rounds" json:"max_rounds" mapstructure:"max_rounds"`
	Seed           uint64  `yaml:"seed" json:"seed" mapstructure:"seed"`
	CIPassBase     float64 `yaml:"ci_pass_base" json:"ci_pass_base" mapstructure:"ci_pass_base"`
	CIPassGain     float64 `yaml:"ci_pass_gain" json:"ci_pass_gain" mapstructure:"ci_pass_gain"`
	ApprovalScale  float64 `yaml:"approval_scale" json:"approval_scale" mapstructure:"approval_scale"`
	RejectionScale float64 `yaml:"rejection_scale" json:"rejection_scale" mapstructure:"rejection_scale"`
	Workers        int     `yaml:"workers" json:"workers" mapstructure:"workers"`
}

// CoderConfig points at an external command that produces artifacts for plan
// entries. An empty Command selects placeholder artifact references.
type CoderConfig struct {
	Command string   `yaml:"command,omitempty" json:"command,omitempty" mapstructure:"command"`
	Args    []string `yaml:"args,omitempty" json:"args,omitempty" mapstructure:"args"`
}

// AlertConfig holds alert thresholds read from the notifications section.
type AlertConfig struct {
	MinApprovalRate   float64 `yaml:"min_approval_rate" json:"min_approval_rate" mapstructure:"min_approval_rate"`
	MinSamples        int     `yaml:"min_samples" json:"min_samples" mapstructure:"min_samples"`
	MaxExhaustedShare float64 `yaml:"max_exhausted_share" json:"max_exhausted_share" mapstructure:"max_exhausted_share"`
	MaxWithdrawnShare float64 `yaml:"max_withdrawn_share" json:"max_withdrawn_share" mapstructure:"max_withdrawn_share"`
}

// SlackConfig holds the Slack webhook used for alert notifications.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url" json:"webhook_url" mapstructure:"webhook_url"`
}

// NotificationConfig groups notification settings.
type NotificationConfig struct {
	Enabled bool        `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Slack   SlackConfig `yaml:"slack" json:"slack" mapstructure:"slack"`
	Alerts  AlertConfig `yaml:"alerts" json:"alerts" mapstructure:"alerts"`
}

// TelemetryConfig enables OTLP trace export when Endpoint is set.
type TelemetryConfig struct {
	Endpoint    string `yaml:"otlp_endpoint,omitempty" json:"otlp_endpoint,omitempty" mapstructure:"otlp_endpoint"`
	ServiceName string `yaml:"service_name,omitempty" json:"service_name,omitempty" mapstructure:"service_name"`
}

// GlobalConfig holds system-wide settings read from .cplanconfig via Viper.
type GlobalConfig struct {
	Scoring       ScoringWeights     `yaml:"scoring" json:"scoring" mapstructure:"scoring"`
	Estimation    EstimationConfig   `yaml:"estimation" json:"estimation" mapstructure:"estimation"`
	Planning      Constraints        `yaml:"planning" json:"planning" mapstructure:"planning"`
	Preferences   PreferenceConfig   `yaml:"preferences" json:"preferences" mapstructure:"preferences"`
	Simulation    SimulationConfig   `yaml:"simulation" json:"simulation" mapstructure:"simulation"`
	Coder         CoderConfig        `yaml:"coder" json:"coder" mapstructure:"coder"`
	Notifications NotificationConfig `yaml:"notifications" json:"notifications" mapstructure:"notifications"`
	Telemetry     TelemetryConfig    `yaml:"telemetry" json:"telemetry" mapstructure:"telemetry"`
}

// DefaultAlertConfig returns the alert thresholds used when none are
// configured.
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		MinApprovalRate:   0.3,
		MinSamples:        5,
		MaxExhaustedShare: 0.5,
		MaxWithdrawnShare: 0.25,
	}
}
