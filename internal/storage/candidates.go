package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

// CandidateFile represents the top-level structure of candidates.yaml.
type CandidateFile struct {
	Version    string                        `yaml:"version"`
	Candidates map[string]models.Opportunity `yaml:"candidates"`
}

// ImportFile is the document accepted by Import: a flat list of
// opportunities as emitted by the discovery and analysis collaborators.
type ImportFile struct {
	Opportunities []models.Opportunity `yaml:"opportunities"`
}

// CandidateFilter specifies criteria for filtering stored candidates.
// All specified fields use AND logic.
type CandidateFilter struct {
	Categories []models.Category
	Language   string
	Repository string
}

// ImportResult counts what an import changed.
type ImportResult struct {
	Added   int
	Updated int
	Skipped int
}

// CandidateStore manages the registry of contribution candidates.
type CandidateStore interface {
	AddCandidate(opp models.Opportunity) error
	UpsertCandidate(opp models.Opportunity) (bool, error)
	RemoveCandidate(id string) error
	GetCandidate(id string) (*models.Opportunity, error)
	ListOpportunities() ([]models.Opportunity, error)
	FilterCandidates(filter CandidateFilter) ([]models.Opportunity, error)
	Import(path string) (ImportResult, error)
	Load() error
	Save() error
}

// stalenessHorizon is the discovery age at which an imported opportunity
// counts as fully stale.
const stalenessHorizon = 90 * 24 * time.Hour

type fileCandidateStore struct {
	mu       sync.RWMutex
	basePath string
	data     CandidateFile
	now      func() time.Time
}

// NewCandidateStore creates a CandidateStore backed by a candidates.yaml file
// in the given base directory.
func NewCandidateStore(basePath string) CandidateStore {
	return &fileCandidateStore{
		basePath: basePath,
		data:     emptyCandidateFile(),
		now:      time.Now,
	}
}

func emptyCandidateFile() CandidateFile {
	return CandidateFile{
		Version:    "1.0",
		Candidates: make(map[string]models.Opportunity),
	}
}

func (s *fileCandidateStore) filePath() string {
	return filepath.Join(s.basePath, "candidates.yaml")
}

func (s *fileCandidateStore) AddCandidate(opp models.Opportunity) error {
	if opp.ID == "" {
		return fmt.Errorf("adding candidate: ID must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data.Candidates[opp.ID]; exists {
		return fmt.Errorf("adding candidate: candidate %s already exists", opp.ID)
	}
	s.data.Candidates[opp.ID] = opp
	return nil
}

// UpsertCandidate stores opp, replacing any candidate with the same ID. It
// reports whether an existing candidate was replaced.
func (s *fileCandidateStore) UpsertCandidate(opp models.Opportunity) (bool, error) {
	if opp.ID == "" {
		return false, fmt.Errorf("upserting candidate: ID must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.data.Candidates[opp.ID]
	s.data.Candidates[opp.ID] = opp
	return exists, nil
}

func (s *fileCandidateStore) RemoveCandidate(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data.Candidates[id]; !exists {
		return fmt.Errorf("removing candidate: candidate %s not found", id)
	}
	delete(s.data.Candidates, id)
	return nil
}

func (s *fileCandidateStore) GetCandidate(id string) (*models.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	opp, exists := s.data.Candidates[id]
	if !exists {
		return nil, fmt.Errorf("candidate %s not found", id)
	}
	return &opp, nil
}

// ListOpportunities returns every stored candidate sorted by ID.
func (s *fileCandidateStore) ListOpportunities() ([]models.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	opps := make([]models.Opportunity, 0, len(s.data.Candidates))
	for _, opp := range s.data.Candidates {
		opps = append(opps, opp)
	}
	sort.Slice(opps, func(i, j int) bool {
		return opps[i].ID < opps[j].ID
	})
	return opps, nil
}

func (s *fileCandidateStore) FilterCandidates(filter CandidateFilter) ([]models.Opportunity, error) {
	all, err := s.ListOpportunities()
	if err != nil {
		return nil, err
	}
	result := make([]models.Opportunity, 0, len(all))
	for _, opp := range all {
		if matchesCandidateFilter(opp, filter) {
			result = append(result, opp)
		}
	}
	return result, nil
}

func matchesCandidateFilter(opp models.Opportunity, filter CandidateFilter) bool {
	if len(filter.Categories) > 0 && !containsCategory(filter.Categories, opp.Category) {
		return false
	}
	if filter.Language != "" && !strings.EqualFold(filter.Language, opp.Repository.Language) {
		return false
	}
	if filter.Repository != "" && opp.Repository.ID != filter.Repository {
		return false
	}
	return true
}

func containsCategory(haystack []models.Category, needle models.Category) bool {
	for _, c := range haystack {
		if c == needle {
			return true
		}
	}
	return false
}

// Import merges the opportunities listed in the YAML file at path into the
// store. Entries without an ID are skipped. An entry with no staleness but a
// discovery time gets its staleness from its age. The store is not saved.
func (s *fileCandidateStore) Import(path string) (ImportResult, error) {
	var res ImportResult
	data, err := os.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("importing candidates: %w", err)
	}
	var f ImportFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return res, fmt.Errorf("importing candidates: parsing YAML: %w", err)
	}
	for _, opp := range f.Opportunities {
		if opp.ID == "" {
			res.Skipped++
			continue
		}
		if opp.Staleness == 0 && !opp.DiscoveredAt.IsZero() {
			opp.Staleness = models.StalenessFromAge(s.now().Sub(opp.DiscoveredAt), stalenessHorizon)
		}
		replaced, err := s.UpsertCandidate(opp)
		if err != nil {
			return res, fmt.Errorf("importing candidates: %w", err)
		}
		if replaced {
			res.Updated++
		} else {
			res.Added++
		}
	}
	return res, nil
}

func (s *fileCandidateStore) Load() error {
	data, err := os.ReadFile(s.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			s.mu.Lock()
			s.data = emptyCandidateFile()
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("loading candidates: %w", err)
	}

	var cf CandidateFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("loading candidates: parsing YAML: %w", err)
	}
	if cf.Candidates == nil {
		cf.Candidates = make(map[string]models.Opportunity)
	}
	// The map key is authoritative for the ID.
	for id, opp := range cf.Candidates {
		if opp.ID != id {
			opp.ID = id
			cf.Candidates[id] = opp
		}
	}
	s.mu.Lock()
	s.data = cf
	s.mu.Unlock()
	return nil
}

func (s *fileCandidateStore) Save() error {
	if err := os.MkdirAll(s.basePath, 0o750); err != nil {
		return fmt.Errorf("saving candidates: creating directory: %w", err)
	}
	s.mu.RLock()
	data, err := yaml.Marshal(&s.data)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("saving candidates: marshaling YAML: %w", err)
	}
	if err := writeFileLocked(s.filePath(), data); err != nil {
		return fmt.Errorf("saving candidates: writing file: %w", err)
	}
	return nil
}
