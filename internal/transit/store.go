// Package transit holds the read-mostly transit reference data for
// optimization runs: sites, timetable lines, deviations and their merge.
package transit

import (
	"sync"
	"time"

	"slroute/internal/domain"
)

// Store is refreshed at the start of a run and only read during it. All
// accessors copy out so callers never observe a mid-refresh swap.
type Store struct {
	mu         sync.RWMutex
	sites      []domain.Site
	siteByID   map[string]int
	lines      []domain.TimetableEntry
	deviations []domain.Deviation
	merged     map[string][]domain.MergedLine

	keepUndeviated bool
	droppedSites   int
	droppedLines   int
	lastRefresh    time.Time
}

// New creates an empty store. keepUndeviated selects the timetable/deviation
// join type: true keeps lines without an active deviation routable (left
// join), false drops them (inner join).
func New(keepUndeviated bool) *Store {
	return &Store{
		siteByID:       make(map[string]int),
		merged:         make(map[string][]domain.MergedLine),
		keepUndeviated: keepUndeviated,
	}
}

// SetSites replaces the site list. dropped is the count of upstream rows
// excluded for missing coordinates.
func (s *Store) SetSites(sites []domain.Site, dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sites = sites
	s.droppedSites = dropped
	s.siteByID = make(map[string]int, len(sites))
	for i, site := range sites {
		s.siteByID[site.ID] = i
	}
	s.lastRefresh = time.Now()
}

// SetLines replaces the timetable and rebuilds the merged view.
func (s *Store) SetLines(lines []domain.TimetableEntry, dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = lines
	s.droppedLines = dropped
	s.merged = MergeTimetableWithDeviations(s.lines, s.deviations, s.keepUndeviated)
	s.lastRefresh = time.Now()
}

// SetDeviations replaces the deviations and rebuilds the merged view.
func (s *Store) SetDeviations(devs []domain.Deviation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deviations = devs
	s.merged = MergeTimetableWithDeviations(s.lines, s.deviations, s.keepUndeviated)
	s.lastRefresh = time.Now()
}

// Sites returns a copy of the cached site list.
func (s *Store) Sites() []domain.Site {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Site, len(s.sites))
	copy(out, s.sites)
	return out
}

// Site looks up one site by id.
func (s *Store) Site(id string) (domain.Site, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.siteByID[id]
	if !ok {
		return domain.Site{}, false
	}
	return s.sites[i], true
}

// SiteCount returns the number of cached sites.
func (s *Store) SiteCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sites)
}

// Lines returns a copy of the cached timetable.
func (s *Store) Lines() []domain.TimetableEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TimetableEntry, len(s.lines))
	copy(out, s.lines)
	return out
}

// Deviations returns a copy of the cached deviations.
func (s *Store) Deviations() []domain.Deviation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Deviation, len(s.deviations))
	copy(out, s.deviations)
	return out
}

// Merged returns the line_id keyed timetable/deviation join.
func (s *Store) Merged() map[string][]domain.MergedLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]domain.MergedLine, len(s.merged))
	for id, rows := range s.merged {
		copied := make([]domain.MergedLine, len(rows))
		copy(copied, rows)
		out[id] = copied
	}
	return out
}

// Stats describes the current reference data for health and stats endpoints.
type Stats struct {
	Sites        int       `json:"sites"`
	Lines        int       `json:"lines"`
	Deviations   int       `json:"deviations"`
	DroppedSites int       `json:"dropped_sites"`
	DroppedLines int       `json:"dropped_lines"`
	LastRefresh  time.Time `json:"last_refresh"`
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Sites:        len(s.sites),
		Lines:        len(s.lines),
		Deviations:   len(s.deviations),
		DroppedSites: s.droppedSites,
		DroppedLines: s.droppedLines,
		LastRefresh:  s.lastRefresh,
	}
}
