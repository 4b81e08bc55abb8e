package observability

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

var terminalStates = []string{"merged", "rejected", "withdrawn"}

// Property: the low approval alert fires exactly when enough samples exist
// and the merged share is below the configured minimum.
func TestProperty_LowApprovalAlertMatchesMetrics(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dir := t.TempDir()
		log, err := NewJSONLEventLog(filepath.Join(dir, "events.jsonl"))
		if err != nil {
			rt.Fatalf("creating event log: %v", err)
		}
		defer log.Close()

		n := rapid.IntRange(0, 30).Draw(rt, "n")
		merged := 0
		now := time.Now().UTC()
		for i := 0; i < n; i++ {
			state := rapid.SampledFrom(terminalStates).Draw(rt, fmt.Sprintf("state_%d", i))
			if state == "merged" {
				merged++
			}
			if err := log.Write(finished(now, "medium", state, 1, false)); err != nil {
				rt.Fatalf("writing event: %v", err)
			}
		}

		cfg := models.AlertConfig{
			MinApprovalRate:   rapid.Float64Range(0, 1).Draw(rt, "minRate"),
			MinSamples:        rapid.IntRange(1, 10).Draw(rt, "minSamples"),
			MaxExhaustedShare: 1,
			MaxWithdrawnShare: 1,
		}
		alerts, err := NewAlertEngine(log, cfg).Evaluate()
		if err != nil {
			rt.Fatalf("evaluating alerts: %v", err)
		}

		want := n >= cfg.MinSamples && float64(merged)/float64(n) < cfg.MinApprovalRate
		if got := conditions(alerts)["low_approval_rate"]; got != want {
			rt.Fatalf("low_approval_rate fired=%v, want %v (merged %d of %d, min %v)", got, want, merged, n, cfg.MinApprovalRate)
		}
	})
}

// Property: derived shares are always within [0,1] and the outcome counts
// add up to the number of finished simulations.
func TestProperty_MetricsSharesBounded(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 40).Draw(rt, "n")
		now := time.Now().UTC()
		events := make([]Event, 0, n)
		for i := 0; i < n; i++ {
			state := rapid.SampledFrom(terminalStates).Draw(rt, fmt.Sprintf("state_%d", i))
			exhausted := state == "rejected" && rapid.Bool().Draw(rt, fmt.Sprintf("exhausted_%d", i))
			risk := rapid.SampledFrom([]string{"low", "medium", "high"}).Draw(rt, fmt.Sprintf("risk_%d", i))
			events = append(events, finished(now, risk, state, rapid.IntRange(1, 5).Draw(rt, fmt.Sprintf("rounds_%d", i)), exhausted))
		}

		m := aggregateMetrics(events)
		total := 0
		for _, c := range m.OutcomesByState {
			total += c
		}
		if total != m.SimulationsFinished || total != n {
			rt.Fatalf("outcome counts %d, finished %d, want %d", total, m.SimulationsFinished, n)
		}
		for name, v := range map[string]float64{
			"approval":  m.ApprovalRate(),
			"exhausted": m.ExhaustedShare(),
			"withdrawn": m.WithdrawnShare(),
		} {
			if v < 0 || v > 1 {
				rt.Fatalf("%s share %v out of [0,1]", name, v)
			}
		}
	})
}
