package natal

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/linnemanlabs/orrery/internal/alert"
	"github.com/linnemanlabs/orrery/internal/astro"
)

// MemStore holds natal records in memory. Suitable for dev/testing.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemStore initializes an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]*Record)}
}

// Put validates and stores a copy of r, replacing any previous record.
func (s *MemStore) Put(_ context.Context, r *Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	n := r.normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[n.Chart.UserID] = n
	return nil
}

// NatalChart returns a copy of the user's chart.
func (s *MemStore) NatalChart(_ context.Context, userID string) (*astro.NatalChart, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[userID]
	if !ok {
		return nil, false, nil
	}
	c := r.Chart
	c.Planets = maps.Clone(r.Chart.Planets)
	return &c, true, nil
}

// Profile returns the user's profile. A user with no profile fields set is
// reported as absent.
func (s *MemStore) Profile(_ context.Context, userID string) (*alert.Profile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[userID]
	if !ok || r.Profile == (alert.Profile{}) {
		return nil, false, nil
	}
	p := r.Profile
	return &p, true, nil
}

// ListUserIDs returns every user with a stored chart, sorted.
func (s *MemStore) ListUserIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.records)), nil
}
