package observability

import (
	"fmt"
	"time"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

// alertEngine implements AlertEngine by reading events and checking thresholds.
type alertEngine struct {
	eventLog   EventLog
	thresholds models.AlertConfig
	now        func() time.Time
}

// NewAlertEngine creates a new AlertEngine with the given EventLog and thresholds.
func NewAlertEngine(eventLog EventLog, thresholds models.AlertConfig) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        time.Now,
	}
}

// Evaluate derives outcome metrics from the events written since the last
// calibration reset and checks every alert condition against them. No alert
// fires until at least MinSamples simulations have finished.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	events, err := ae.eventLog.Read(EventFilter{})
	if err != nil {
		return nil, fmt.Errorf("reading events for alerts: %w", err)
	}
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == "calibration.reset" {
			events = events[i+1:]
			break
		}
	}

	m := aggregateMetrics(events)
	now := ae.now().UTC()
	alerts := []Alert{}

	if m.SimulationsFinished == 0 || m.SimulationsFinished < ae.thresholds.MinSamples {
		return alerts, nil
	}

	if rate := m.ApprovalRate(); rate < ae.thresholds.MinApprovalRate {
		alerts = append(alerts, Alert{
			ID:        "approval-rate",
			Condition: "low_approval_rate",
			Severity:  SeverityHigh,
			Message: fmt.Sprintf("approval rate %.0f%% across %d simulations is below the minimum of %.0f%%",
				rate*100, m.SimulationsFinished, ae.thresholds.MinApprovalRate*100),
			TriggeredAt: now,
		})
	}

	for _, risk := range models.RiskCategories {
		rate, ok := m.RiskApprovalRate(string(risk))
		if !ok || m.OutcomesByRisk[string(risk)] < ae.thresholds.MinSamples {
			continue
		}
		if rate < ae.thresholds.MinApprovalRate {
			alerts = append(alerts, Alert{
				ID:        fmt.Sprintf("approval-rate-%s", risk),
				Condition: "low_category_approval_rate",
				Severity:  SeverityMedium,
				Message: fmt.Sprintf("%s-risk approval rate %.0f%% is below the minimum of %.0f%%",
					risk, rate*100, ae.thresholds.MinApprovalRate*100),
				TriggeredAt: now,
			})
		}
	}

	if share := m.ExhaustedShare(); share > ae.thresholds.MaxExhaustedShare {
		alerts = append(alerts, Alert{
			ID:        "exhausted-loops",
			Condition: "review_loops_exhausted",
			Severity:  SeverityMedium,
			Message: fmt.Sprintf("%d of %d contributions ran out of review rounds",
				m.ExhaustedLoops, m.SimulationsFinished),
			TriggeredAt: now,
		})
	}

	if share := m.WithdrawnShare(); share > ae.thresholds.MaxWithdrawnShare {
		alerts = append(alerts, Alert{
			ID:        "withdrawn-share",
			Condition: "high_withdrawal_share",
			Severity:  SeverityLow,
			Message: fmt.Sprintf("%d of %d contributions were withdrawn before a decision",
				m.OutcomesByState["withdrawn"], m.SimulationsFinished),
			TriggeredAt: now,
		})
	}

	return alerts, nil
}
