package models

import (
	"math"
	"time"
)

// Category classifies what kind of contribution an opportunity calls for.
type Category string

const (
	CategoryMissingTest    Category = "missing-test"
	CategoryDocGap         Category = "doc-gap"
	CategoryBugFix         Category = "bug-fix"
	CategoryFeature        Category = "feature"
	CategoryRefactor       Category = "refactor"
	CategoryPerformance    Category = "performance"
	CategorySecurity       Category = "security"
	CategoryCICD           Category = "ci-cd"
	CategoryGoodFirstIssue Category = "good-first-issue"
)

// Categories lists every known category.
var Categories = []Category{
	CategoryMissingTest,
	CategoryDocGap,
	CategoryBugFix,
	CategoryFeature,
	CategoryRefactor,
	CategoryPerformance,
	CategorySecurity,
	CategoryCICD,
	CategoryGoodFirstIssue,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// RepositoryProfile describes a candidate repository as produced by the
// discovery collaborator. Values are treated as immutable once constructed.
type RepositoryProfile struct {
	ID           string    `yaml:"id" json:"id"`
	Language     string    `yaml:"language" json:"language"`
	Topics       []string  `yaml:"topics,omitempty" json:"topics,omitempty"`
	Popularity   int       `yaml:"popularity" json:"popularity"`
	LastActivity time.Time `yaml:"last_activity" json:"last_activity"`
	Friendliness float64   `yaml:"friendliness" json:"friendliness"`
}

// Opportunity is a scoped candidate contribution derived from a repository by
// the analysis collaborator. Impact, Difficulty, ChangeSize and Staleness are
// nominally in [0,1]; out-of-range values are clamped by the consumers.
type Opportunity struct {
	ID           string            `yaml:"id" json:"id"`
	Title        string            `yaml:"title,omitempty" json:"title,omitempty"`
	Repository   RepositoryProfile `yaml:"repository" json:"repository"`
	Category     Category          `yaml:"category" json:"category"`
	Impact       float64           `yaml:"impact" json:"impact"`
	Difficulty   float64           `yaml:"difficulty" json:"difficulty"`
	ChangeSize   float64           `yaml:"change_size" json:"change_size"`
	Staleness    float64           `yaml:"staleness" json:"staleness"`
	DiscoveredAt time.Time         `yaml:"discovered_at,omitempty" json:"discovered_at,omitempty"`
}

// Clamp01 bounds v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Clamped returns a copy of the opportunity with every numeric feature bounded
// to [0,1], plus the names of the fields that had to be adjusted.
func (o Opportunity) Clamped() (Opportunity, []string) {
	var adjusted []string
	fix := func(name string, v *float64) {
		c := Clamp01(*v)
		if c != *v {
			adjusted = append(adjusted, name)
		}
		*v = c
	}
	fix("impact", &o.Impact)
	fix("difficulty", &o.Difficulty)
	fix("change_size", &o.ChangeSize)
	fix("staleness", &o.Staleness)
	fix("repository.friendliness", &o.Repository.Friendliness)
	return o, adjusted
}

// Effort is the planning cost of the opportunity. Difficulty is the proxy.
func (o Opportunity) Effort() float64 {
	return Clamp01(o.Difficulty)
}

// StalenessFromAge maps the time since discovery onto [0,1], reaching 1 at
// horizon. A non-positive horizon yields 0.
func StalenessFromAge(age, horizon time.Duration) float64 {
	if horizon <= 0 || age <= 0 {
		return 0
	}
	return Clamp01(float64(age) / float64(horizon))
}
