package session

import (
	"sort"
	"sync"

	"github.com/pavelanni/assessor/internal/model"
)

// State is the per-question record of review outcomes for the current session.
// At most one outcome is kept per question id; every stored id belongs to the
// catalog the State was created for.
type State struct {
	catalog *Catalog

	mu       sync.RWMutex
	outcomes map[int64]model.ReviewOutcome
	version  uint64
}

// NewState returns an empty State bound to catalog.
func NewState(catalog *Catalog) *State {
	return &State{
		catalog:  catalog,
		outcomes: make(map[int64]model.ReviewOutcome),
	}
}

// Upsert inserts or replaces the outcome for o.QuestionID.
func (s *State) Upsert(o model.ReviewOutcome) error {
	if !s.catalog.Contains(o.QuestionID) {
		return &UnknownQuestionError{QuestionID: o.QuestionID}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[o.QuestionID] = o
	s.version++
	return nil
}

// Get returns the outcome for id, if any.
func (s *State) Get(id int64) (model.ReviewOutcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.outcomes[id]
	return o, ok
}

// All returns the outcomes ordered by ascending question id.
func (s *State) All() []model.ReviewOutcome {
	s.mu.RLock()
	out := make([]model.ReviewOutcome, 0, len(s.outcomes))
	for _, o := range s.outcomes {
		out = append(out, o)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out
}

// Len returns the number of questions with an outcome.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.outcomes)
}

// IsComplete reports whether the stored ids are exactly the given id set.
func (s *State) IsComplete(ids []int64) bool {
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.outcomes) != len(want) {
		return false
	}
	for id := range want {
		if _, ok := s.outcomes[id]; !ok {
			return false
		}
	}
	return true
}

// CompleteFor reports whether every question of c has an outcome.
func (s *State) CompleteFor(c *Catalog) bool {
	return s.IsComplete(c.IDs())
}

// Missing returns the ids without an outcome, in the given order.
func (s *State) Missing(ids []int64) []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var missing []int64
	for _, id := range ids {
		if _, ok := s.outcomes[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// Clear removes every outcome.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.outcomes)
	s.version++
}

// Version increases on every mutation.
func (s *State) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
