// Package session keeps per-user interaction state (selected date, unsaved text, pending
// delete confirmation) between requests.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultIdleTimeout is how long an untouched session survives.
const DefaultIdleTimeout = 24 * time.Hour

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// State is the interaction state of one user
type State struct {
	ID           string `json:"id"`
	SelectedDate string `json:"selected_date"`
	PendingText  string `json:"pending_text"`
	// ConfirmDelete holds the date awaiting a second delete request, if any.
	ConfirmDelete string    `json:"confirm_delete,omitempty"`
	LastSeen      time.Time `json:"last_seen"`
}

// Store is an in-memory session store
type Store struct {
	mu       sync.Mutex
	sessions map[string]State
	idle     time.Duration
	now      func() time.Time
}

// NewStore creates a store expiring sessions idle for longer than idle
func NewStore(idle time.Duration) *Store {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Store{
		sessions: make(map[string]State),
		idle:     idle,
		now:      time.Now,
	}
}

// Create starts a new session with the given selected date
func (s *Store) Create(selectedDate string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		ID:           uuid.NewString(),
		SelectedDate: selectedDate,
		LastSeen:     s.now(),
	}
	s.sessions[st.ID] = st
	logrus.WithField("session", st.ID).Debug("Created session")
	return st
}

// Get returns a session and refreshes its idle timer
func (s *Store) Get(id string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[id]
	if !ok {
		return State{}, ErrNotFound
	}
	if s.expired(st) {
		delete(s.sessions, id)
		return State{}, ErrNotFound
	}
	st.LastSeen = s.now()
	s.sessions[id] = st
	return st, nil
}

// Save stores the state of an existing session
func (s *Store) Save(st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[st.ID]; !ok {
		return ErrNotFound
	}
	st.LastSeen = s.now()
	s.sessions[st.ID] = st
	return nil
}

// Delete forgets a session
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Sweep removes expired sessions and returns how many were removed
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, st := range s.sessions {
		if s.expired(st) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		logrus.Debugf("Swept %d expired sessions", removed)
	}
	return removed
}

// Len returns the number of live and not yet swept sessions
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) expired(st State) bool {
	return s.now().Sub(st.LastSeen) > s.idle
}
