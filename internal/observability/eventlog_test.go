package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestEventLog(t *testing.T) EventLog {
	t.Helper()
	log, err := NewJSONLEventLog(filepath.Join(t.TempDir(), "events.jsonl"))
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func writeEvents(t *testing.T, log EventLog, events []Event) {
	t.Helper()
	for _, e := range events {
		if err := log.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}
}

func TestEventLog_WriteAndRead(t *testing.T) {
	log := newTestEventLog(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	writeEvents(t, log, []Event{
		{
			Time:    now,
			Level:   LevelInfo,
			Type:    "plan.created",
			Message: "plan.created",
			Data:    map[string]any{"selected": 2},
		},
		{
			Time:    now.Add(time.Second),
			Level:   LevelWarn,
			Type:    "candidate.clamped",
			Message: "candidate.clamped",
			Data:    map[string]any{"opportunity_id": "opp-1"},
		},
	})

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 events, got %d", len(result))
	}
	if result[0].Type != "plan.created" {
		t.Errorf("expected type plan.created, got %s", result[0].Type)
	}
	if got, _ := result[0].Data["selected"].(float64); got != 2 {
		t.Errorf("expected selected=2, got %v", result[0].Data["selected"])
	}
	if result[1].Level != LevelWarn {
		t.Errorf("expected level WARN, got %s", result[1].Level)
	}
}

func TestEventLog_Filters(t *testing.T) {
	log := newTestEventLog(t)
	base := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	writeEvents(t, log, []Event{
		{Time: base, Level: LevelInfo, Type: "plan.created"},
		{Time: base.Add(time.Minute), Level: LevelInfo, Type: "simulation.started"},
		{Time: base.Add(2 * time.Minute), Level: LevelInfo, Type: "simulation.transition"},
		{Time: base.Add(3 * time.Minute), Level: LevelWarn, Type: "candidate.clamped"},
		{Time: base.Add(4 * time.Minute), Level: LevelInfo, Type: "simulation.finished"},
	})

	since := base.Add(90 * time.Second)
	until := base.Add(3 * time.Minute)

	tests := []struct {
		name   string
		filter EventFilter
		want   []string
	}{
		{"type", EventFilter{Type: "plan.created"}, []string{"plan.created"}},
		{"prefix", EventFilter{TypePrefix: "simulation."}, []string{"simulation.started", "simulation.transition", "simulation.finished"}},
		{"level", EventFilter{Level: LevelWarn}, []string{"candidate.clamped"}},
		{"window", EventFilter{Since: &since, Until: &until}, []string{"simulation.transition", "candidate.clamped"}},
		{"limit keeps newest", EventFilter{TypePrefix: "simulation.", Limit: 2}, []string{"simulation.transition", "simulation.finished"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := log.Read(tt.filter)
			if err != nil {
				t.Fatalf("reading events: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d events, got %d", len(tt.want), len(got))
			}
			for i := range got {
				if got[i].Type != tt.want[i] {
					t.Errorf("event %d: expected %s, got %s", i, tt.want[i], got[i].Type)
				}
			}
		})
	}
}

func TestEventLog_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	content := `{"time":"2026-01-10T08:00:00Z","level":"INFO","type":"plan.created","msg":"ok"}
not json at all

{"time":"2026-01-10T08:01:00Z","level":"INFO","type":"calibration.reset","msg":"ok"}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	defer log.Close()

	events, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 valid events, got %d", len(events))
	}
}

func TestEventLog_ConcurrentWrites(t *testing.T) {
	log := newTestEventLog(t)

	const writers, perWriter = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = log.Write(Event{
					Time:  time.Now().UTC(),
					Level: LevelInfo,
					Type:  "simulation.transition",
					Data:  map[string]any{"simulation_id": fmt.Sprintf("sim-%d-%d", w, i)},
				})
			}
		}(w)
	}
	wg.Wait()

	events, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(events) != writers*perWriter {
		t.Fatalf("expected %d events, got %d", writers*perWriter, len(events))
	}
}

func TestRecorder_WritesLevelsAndData(t *testing.T) {
	log := newTestEventLog(t)
	rec := NewRecorder(log)
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("x", 3600))
	rec.now = func() time.Time { return at }

	if err := rec.LogEvent("plan.created", map[string]any{"selected": 2}); err != nil {
		t.Fatal(err)
	}
	if err := rec.LogWarning("candidate.clamped", map[string]any{"opportunity_id": "opp-1"}); err != nil {
		t.Fatal(err)
	}

	events, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Level != LevelInfo || events[0].Type != "plan.created" || events[0].Message != "plan.created" {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Level != LevelWarn || events[1].Data["opportunity_id"] != "opp-1" {
		t.Errorf("second event = %+v", events[1])
	}
	if !events[0].Time.Equal(at) || events[0].Time.Location() != time.UTC {
		t.Errorf("Time = %v, want %v in UTC", events[0].Time, at)
	}
}

func TestEvent_IsDryRun(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want bool
	}{
		{"no data", nil, false},
		{"flag set", map[string]any{"dry_run": true}, true},
		{"flag false", map[string]any{"dry_run": false}, false},
		{"wrong type", map[string]any{"dry_run": "yes"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (Event{Data: tt.data}).IsDryRun(); got != tt.want {
				t.Errorf("IsDryRun() = %v, want %v", got, tt.want)
			}
		})
	}
}
