package observability

import (
	"fmt"
	"time"
)

// Metrics holds outcome metrics derived from the event log.
type Metrics struct {
	PlansCreated        int            `json:"plans_created"`
	CandidatesClamped   int            `json:"candidates_clamped"`
	SimulationsStarted  int            `json:"simulations_started"`
	SimulationsFinished int            `json:"simulations_finished"`
	DryRunSimulations   int            `json:"dry_run_simulations"`
	OutcomesByState     map[string]int `json:"outcomes_by_state"`
	OutcomesByRisk      map[string]int `json:"outcomes_by_risk"`
	MergedByRisk        map[string]int `json:"merged_by_risk"`
	ExhaustedLoops      int            `json:"exhausted_review_loops"`
	TotalRounds         int            `json:"total_rounds"`
	CalibrationUpdates  int            `json:"calibration_updates"`
	CalibrationResets   int            `json:"calibration_resets"`
	Warnings            int            `json:"warnings"`
	EventCount          int            `json:"event_count"`
	OldestEvent         *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent         *time.Time     `json:"newest_event,omitempty"`
}

// ApprovalRate is the share of finished simulations that merged.
func (m *Metrics) ApprovalRate() float64 {
	return m.share(m.OutcomesByState["merged"])
}

// ExhaustedShare is the share of finished simulations rejected because they
// ran out of review rounds.
func (m *Metrics) ExhaustedShare() float64 {
	return m.share(m.ExhaustedLoops)
}

// WithdrawnShare is the share of finished simulations that were withdrawn.
func (m *Metrics) WithdrawnShare() float64 {
	return m.share(m.OutcomesByState["withdrawn"])
}

// AverageRounds is the mean number of review rounds per finished simulation.
func (m *Metrics) AverageRounds() float64 {
	if m.SimulationsFinished == 0 {
		return 0
	}
	return float64(m.TotalRounds) / float64(m.SimulationsFinished)
}

// RiskApprovalRate is the merged share of finished simulations in one risk
// category, and whether any were observed.
func (m *Metrics) RiskApprovalRate(risk string) (float64, bool) {
	n := m.OutcomesByRisk[risk]
	if n == 0 {
		return 0, false
	}
	return float64(m.MergedByRisk[risk]) / float64(n), true
}

func (m *Metrics) share(n int) float64 {
	if m.SimulationsFinished == 0 {
		return 0
	}
	return float64(n) / float64(m.SimulationsFinished)
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

// metricsCalculator implements MetricsCalculator by reading from an EventLog.
type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a new MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them into metrics.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}
	return aggregateMetrics(events), nil
}

func aggregateMetrics(events []Event) *Metrics {
	m := &Metrics{
		OutcomesByState: make(map[string]int),
		OutcomesByRisk:  make(map[string]int),
		MergedByRisk:    make(map[string]int),
	}

	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		if event.Level == LevelWarn {
			m.Warnings++
		}

		if event.IsDryRun() {
			if event.Type == "simulation.finished" {
				m.DryRunSimulations++
			}
			continue
		}

		switch event.Type {
		case "plan.created":
			m.PlansCreated++
		case "candidate.clamped":
			m.CandidatesClamped++
		case "simulation.started":
			m.SimulationsStarted++
		case "simulation.finished":
			m.SimulationsFinished++
			state, _ := event.Data["final_state"].(string)
			risk, _ := event.Data["risk"].(string)
			if state != "" {
				m.OutcomesByState[state]++
			}
			if risk != "" {
				m.OutcomesByRisk[risk]++
				if state == "merged" {
					m.MergedByRisk[risk]++
				}
			}
			// JSON numbers decode as float64.
			if rounds, ok := event.Data["rounds"].(float64); ok {
				m.TotalRounds += int(rounds)
			}
			if exhausted, ok := event.Data["exhausted"].(bool); ok && exhausted {
				m.ExhaustedLoops++
			}
		case "calibration.updated":
			m.CalibrationUpdates++
		case "calibration.reset":
			m.CalibrationResets++
		}
	}

	return m
}
