package call

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry is the concurrent map of live call sessions, keyed by call
// id. The registry mutex guards only the map structure (insert, remove,
// snapshot); all per-call mutation goes through the session's own lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// CreateParams carries the metadata for a new session. Defaults have
// already been resolved by the dispatcher boundary.
type CreateParams struct {
	ID          string
	Direction   Direction
	Handle      string
	HandleType  HandleType
	DisplayName string
	HasVideo    bool
}

// ValidateID checks that a call identifier is a well-formed UUID.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidIdentifier
	}
	return nil
}

// Create inserts a new session in Initializing. A colliding id is
// rejected with ErrDuplicateID and the existing session is unchanged.
func (r *Registry) Create(p CreateParams, now time.Time) (*Session, error) {
	if err := ValidateID(p.ID); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[p.ID]; exists {
		return nil, ErrDuplicateID
	}
	s := newSession(p.ID, p.Direction, p.Handle, p.HandleType, p.DisplayName, p.HasVideo, now)
	r.sessions[p.ID] = s
	return s, nil
}

// Get looks up a session by id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove drops a session from the registry. Called after the terminal
// event for the session has been built.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Snapshot returns the current sessions. The slice is a copy; the
// sessions themselves remain live and lock-guarded.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Drain removes every session and returns them. Used on provider reset
// where the platform discarded all call state.
func (r *Registry) Drain() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		out = append(out, s)
		delete(r.sessions, id)
	}
	return out
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
