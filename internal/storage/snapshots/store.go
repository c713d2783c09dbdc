package snapshots

import (
	"sync"
	"time"

	"github.com/vadiminshakov/riskwatch/internal/entity"
)

// Store owns every InstanceState. The sync engine is the sole writer per
// instance; readers only ever receive deep copies, so concurrent snapshot
// export never touches the live structures.
type Store struct {
	mu     sync.RWMutex
	states map[string]*entity.InstanceState
}

func New() *Store {
	return &Store{states: make(map[string]*entity.InstanceState)}
}

// State returns a deep copy of the named instance state, or nil when the
// instance has never been synced.
func (s *Store) State(name string) *entity.InstanceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[name].Clone()
}

// Touch records a sync attempt before any network call so concurrent
// triggers inside the debounce interval see a fresh timestamp. Creates an
// empty state on first touch.
func (s *Store) Touch(name string, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[name]
	if !ok {
		state = &entity.InstanceState{Borrowers: make(map[string]entity.Borrower)}
		s.states[name] = state
	}
	state.LastSync = ts
}

// Commit replaces the named instance state in one assignment. The store
// takes ownership of the value; callers must not retain it.
func (s *Store) Commit(name string, state *entity.InstanceState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[name] = state
}
