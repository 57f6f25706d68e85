// Package memstore provides an in-memory implementation of alert.Store.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/linnemanlabs/orrery/internal/alert"
)

// Store holds alerts in memory. Suitable for dev/testing.
type Store struct {
	mu     sync.RWMutex
	alerts map[string][]*alert.Alert // user ID -> alerts in insertion order
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{alerts: make(map[string][]*alert.Alert)}
}

// Create stores a copy of the alert.
func (s *Store) Create(_ context.Context, a *alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.UserID] = append(s.alerts[a.UserID], clone(a))
	return nil
}

// List returns copies of the user's alerts of the given type, newest first.
// An empty alertType matches every type.
func (s *Store) List(_ context.Context, userID, alertType string) ([]*alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*alert.Alert, 0, len(s.alerts[userID]))
	for _, a := range s.alerts[userID] {
		if alertType != "" && a.AlertType != alertType {
			continue
		}
		out = append(out, clone(a))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func clone(a *alert.Alert) *alert.Alert {
	cp := *a
	cp.Metadata.Transit.Planets = slices.Clone(a.Metadata.Transit.Planets)
	return &cp
}
