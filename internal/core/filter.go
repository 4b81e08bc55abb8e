package core

import (
	"strings"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

// FilterReason explains why a candidate was dropped before scoring.
type FilterReason string

const (
	FilterLanguage   FilterReason = "language"
	FilterCategory   FilterReason = "avoided_category"
	FilterPopularity FilterReason = "popularity"
	FilterMissingID  FilterReason = "missing_id"
)

// CandidateFilter applies contributor preferences to the raw candidate set.
type CandidateFilter interface {
	// Apply returns the kept opportunities, in input order, and the reason
	// each dropped opportunity was excluded, keyed by opportunity ID.
	Apply(opps []models.Opportunity) ([]models.Opportunity, map[string]FilterReason)
}

type preferenceFilter struct {
	languages map[string]struct{}
	avoid     map[models.Category]struct{}
	minPop    int
	maxPop    int
}

// NewCandidateFilter builds a CandidateFilter from preferences. Empty
// language and category lists match everything; a zero MaxPopularity means
// no upper bound.
func NewCandidateFilter(prefs models.PreferenceConfig) CandidateFilter {
	f := &preferenceFilter{
		languages: make(map[string]struct{}, len(prefs.Languages)),
		avoid:     make(map[models.Category]struct{}, len(prefs.AvoidCategories)),
		minPop:    prefs.MinPopularity,
		maxPop:    prefs.MaxPopularity,
	}
	for _, l := range prefs.Languages {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			f.languages[l] = struct{}{}
		}
	}
	for _, c := range prefs.AvoidCategories {
		f.avoid[c] = struct{}{}
	}
	return f
}

func (f *preferenceFilter) Apply(opps []models.Opportunity) ([]models.Opportunity, map[string]FilterReason) {
	kept := make([]models.Opportunity, 0, len(opps))
	dropped := make(map[string]FilterReason)
	for _, o := range opps {
		if reason, ok := f.reject(o); ok {
			dropped[o.ID] = reason
			continue
		}
		kept = append(kept, o)
	}
	return kept, dropped
}

func (f *preferenceFilter) reject(o models.Opportunity) (FilterReason, bool) {
	if strings.TrimSpace(o.ID) == "" {
		return FilterMissingID, true
	}
	if len(f.languages) > 0 {
		if _, ok := f.languages[strings.ToLower(o.Repository.Language)]; !ok {
			return FilterLanguage, true
		}
	}
	if _, ok := f.avoid[o.Category]; ok {
		return FilterCategory, true
	}
	if o.Repository.Popularity < f.minPop {
		return FilterPopularity, true
	}
	if f.maxPop > 0 && o.Repository.Popularity > f.maxPop {
		return FilterPopularity, true
	}
	return "", false
}
