package core

import (
	"math"
	"sync"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

const floatTolerance = 1e-9

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= floatTolerance
}

// scriptedSource replays a fixed sequence of draws and then repeats the last.
type scriptedSource struct {
	draws []float64
	next  int
}

func (s *scriptedSource) Float64() float64 {
	if len(s.draws) == 0 {
		return 0
	}
	if s.next >= len(s.draws) {
		return s.draws[len(s.draws)-1]
	}
	v := s.draws[s.next]
	s.next++
	return v
}

type loggedEvent struct {
	Level string
	Type  string
	Data  map[string]any
}

// recordingLogger is an EventLogger that keeps every event in memory.
type recordingLogger struct {
	mu     sync.Mutex
	events []loggedEvent
}

func (l *recordingLogger) LogEvent(eventType string, data map[string]any) error {
	l.add("INFO", eventType, data)
	return nil
}

func (l *recordingLogger) LogWarning(eventType string, data map[string]any) error {
	l.add("WARN", eventType, data)
	return nil
}

func (l *recordingLogger) add(level, eventType string, data map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, loggedEvent{Level: level, Type: eventType, Data: data})
}

func (l *recordingLogger) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}

func (l *recordingLogger) count(eventType string) int {
	n := 0
	for _, t := range l.types() {
		if t == eventType {
			n++
		}
	}
	return n
}

func newOpportunity(id string, impact, difficulty, changeSize, friendliness float64) models.Opportunity {
	return models.Opportunity{
		ID:       id,
		Category: models.CategoryBugFix,
		Repository: models.RepositoryProfile{
			ID:           "acme/" + id,
			Language:     "go",
			Popularity:   500,
			Friendliness: friendliness,
		},
		Impact:     impact,
		Difficulty: difficulty,
		ChangeSize: changeSize,
	}
}

func newScored(id string, score, p, difficulty float64, risk models.RiskCategory) models.ScoredOpportunity {
	return models.ScoredOpportunity{
		Opportunity:        models.Opportunity{ID: id, Difficulty: difficulty},
		Score:              score,
		Risk:               risk,
		SuccessProbability: p,
	}
}

func newContribution(id string, p float64, risk models.RiskCategory) models.Contribution {
	return models.Contribution{
		ID:          "c-" + id,
		ArtifactRef: "placeholder://" + id,
		Scored: models.ScoredOpportunity{
			Opportunity:        models.Opportunity{ID: id, Repository: models.RepositoryProfile{ID: "acme/widgets"}},
			Score:              1,
			Risk:               risk,
			SuccessProbability: p,
		},
	}
}

func defaultParams() LifecycleParams {
	return LifecycleParamsFromConfig(DefaultSimulationConfig())
}
