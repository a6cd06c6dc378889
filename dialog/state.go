package dialog

import (
	"sync"
	"time"

	"finbot/ledger"
)

// Step identifies where a user is inside a multi-turn flow.
type Step int

const (
	StepNone Step = iota

	StepSetupBalance

	StepMoveCategory
	StepMoveNewCategory
	StepMoveAmount
	StepMoveDescription

	StepSubName
	StepSubAmount
	StepSubCategory
	StepSubDay

	StepReminderDescription
	StepReminderDate

	StepDebtName
	StepDebtDirection
	StepDebtAmount

	StepAlertScope
	StepAlertThreshold

	StepBalanceAmount
)

// Payload accumulates the inputs collected so far in a flow. One flat record
// instead of an untyped map keeps transitions type-safe.
type Payload struct {
	Kind        ledger.Kind
	Category    string
	Name        string
	Amount      ledger.Cents
	Description string
	Direction   ledger.Direction
	Scope       ledger.Scope
}

// State is one user's position in a flow.
type State struct {
	Step      Step
	Payload   Payload
	Timestamp time.Time
}

// StateStore maps user ids to dialog state with a hard capacity. When full,
// the entry inserted earliest is evicted (FIFO, not LRU). A single mutex
// guards the map; callers must not hold it across ledger calls.
type StateStore struct {
	mu       sync.Mutex
	capacity int
	states   map[int64]State
	order    []int64
	now      func() time.Time
}

// NewStateStore builds a store bounded at capacity entries.
func NewStateStore(capacity int) *StateStore {
	if capacity <= 0 {
		capacity = 100
	}
	return &StateStore{
		capacity: capacity,
		states:   make(map[int64]State, capacity),
		now:      time.Now,
	}
}

// WithClock overrides the store clock. Intended for tests.
func (s *StateStore) WithClock(now func() time.Time) *StateStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// Get returns the user's state, if any.
func (s *StateStore) Get(userID int64) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userID]
	return st, ok
}

// Set stores the user's state, stamping it with the current time. At
// capacity the earliest-inserted other user is evicted first.
func (s *StateStore) Set(userID int64, step Step, payload Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.states[userID]; !exists {
		if len(s.states) >= s.capacity {
			s.evictOldestLocked()
		}
		s.order = append(s.order, userID)
	}
	s.states[userID] = State{Step: step, Payload: payload, Timestamp: s.now()}
}

// Touch refreshes the timestamp without changing step or payload. Called on
// invalid input so an actively retrying user is not swept.
func (s *StateStore) Touch(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[userID]; ok {
		st.Timestamp = s.now()
		s.states[userID] = st
	}
}

// Clear drops the user's state.
func (s *StateStore) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(userID)
}

// SweepExpired removes entries older than ttl and returns how many were
// evicted.
func (s *StateStore) SweepExpired(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	removed := 0
	for id, st := range s.states {
		if st.Timestamp.Before(cutoff) {
			s.removeLocked(id)
			removed++
		}
	}
	return removed
}

// Len reports the current entry count.
func (s *StateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

func (s *StateStore) evictOldestLocked() {
	for len(s.order) > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]
		if _, ok := s.states[oldest]; ok {
			delete(s.states, oldest)
			return
		}
	}
}

func (s *StateStore) removeLocked(userID int64) {
	if _, ok := s.states[userID]; !ok {
		return
	}
	delete(s.states, userID)
	for i, id := range s.order {
		if id == userID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
