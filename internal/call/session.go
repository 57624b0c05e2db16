package call

import (
	"sync"
	"time"
)

// Session is one active call. All mutable fields are guarded by the
// session's own mutex so that operations on one call never block
// operations on another. The registry owns every Session; other
// components hold at most a short-lived reference obtained by lookup.
type Session struct {
	mu sync.Mutex

	id        string
	direction Direction
	createdAt time.Time

	// Immutable metadata, set at creation. DisplayName may be updated
	// later through UpdateDisplay.
	handle      string
	handleType  HandleType
	displayName string
	hasVideo    bool

	state      State
	muted      bool
	onHold     bool
	generation uint64

	// inFlight marks a pending engine transaction. A second conflicting
	// request while it is set fails ErrOperationInProgress instead of
	// racing the completion callback.
	inFlight Action

	// prev is the state to restore if the in-flight action is aborted.
	prev State

	// reason is set when the session reaches Disconnected and is only
	// read while building the terminal event.
	reason DisconnectReason
}

func newSession(id string, dir Direction, handle string, handleType HandleType, displayName string, hasVideo bool, now time.Time) *Session {
	return &Session{
		id:          id,
		direction:   dir,
		createdAt:   now,
		handle:      handle,
		handleType:  handleType,
		displayName: displayName,
		hasVideo:    hasVideo,
		state:       StateInitializing,
	}
}

// ID returns the immutable call identifier.
func (s *Session) ID() string { return s.id }

// Info is a point-in-time snapshot of a session, safe to serialize.
type Info struct {
	ID          string           `json:"id"`
	Direction   Direction        `json:"direction"`
	Handle      string           `json:"handle"`
	HandleType  HandleType       `json:"handle_type"`
	DisplayName string           `json:"display_name"`
	HasVideo    bool             `json:"has_video"`
	State       State            `json:"state"`
	Muted       bool             `json:"muted"`
	OnHold      bool             `json:"on_hold"`
	CreatedAt   time.Time        `json:"created_at"`
	Generation  uint64           `json:"-"`
	Reason      DisconnectReason `json:"reason,omitempty"`
}

// Snapshot returns a copy of the session's current state.
func (s *Session) Snapshot() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:          s.id,
		Direction:   s.direction,
		Handle:      s.handle,
		HandleType:  s.handleType,
		DisplayName: s.displayName,
		HasVideo:    s.hasVideo,
		State:       s.state,
		Muted:       s.muted,
		OnHold:      s.onHold,
		CreatedAt:   s.createdAt,
		Generation:  s.generation,
		Reason:      s.reason,
	}
}

// Begin validates that a can be requested from the current state and
// marks it in flight. For ActionEnd the session moves to Disconnecting
// immediately; all other actions keep their state until Commit. The
// returned generation identifies the state the decision was made
// against.
func (s *Session) Begin(a Action) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDisconnected {
		return 0, ErrInvalidState
	}
	if s.inFlight != "" {
		return 0, ErrOperationInProgress
	}

	if a == ActionEnd {
		s.prev = s.state
		s.state = StateDisconnecting
		s.inFlight = a
		return s.generation, nil
	}

	if _, ok := edges[a][s.state]; !ok {
		return 0, ErrInvalidState
	}
	s.prev = s.state
	s.inFlight = a
	return s.generation, nil
}

// Abort clears the in-flight marker after an engine rejection, leaving
// the session in the state it had before Begin.
func (s *Session) Abort(a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight != a {
		return
	}
	if a == ActionEnd && s.state == StateDisconnecting {
		s.state = s.prev
	}
	s.inFlight = ""
}

// Commit applies the transition for the in-flight action a, bumps the
// generation when the state changes and clears the marker. If the
// session was force-disconnected while the transaction was in flight,
// Commit fails ErrInvalidState and the terminal event already emitted
// by the force path stands.
func (s *Session) Commit(a Action) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight != a {
		return Info{}, ErrInvalidState
	}
	s.inFlight = ""

	if a == ActionEnd {
		if s.state != StateDisconnecting {
			return Info{}, ErrInvalidState
		}
		s.applyLocked(StateDisconnected)
		s.reason = EndReasonFor(s.prev)
		return s.infoLocked(), nil
	}

	next, ok := edges[a][s.state]
	if !ok {
		return Info{}, ErrInvalidState
	}
	s.applyEffectLocked(a)
	s.applyLocked(next)
	if a == ActionReject {
		s.reason = ReasonRejected
	}
	return s.infoLocked(), nil
}

// Apply performs Begin and Commit atomically for actions that need no
// engine round-trip (report operations and bridge reconciliation).
func (s *Session) Apply(a Action) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDisconnected {
		return Info{}, ErrInvalidState
	}
	if s.inFlight != "" {
		return Info{}, ErrOperationInProgress
	}

	if a == ActionEnd {
		prev := s.state
		s.applyLocked(StateDisconnected)
		s.reason = EndReasonFor(prev)
		return s.infoLocked(), nil
	}

	next, ok := edges[a][s.state]
	if !ok {
		return Info{}, ErrInvalidState
	}
	s.applyEffectLocked(a)
	s.applyLocked(next)
	if a == ActionReject {
		s.reason = ReasonRejected
	}
	return s.infoLocked(), nil
}

// ForceDisconnect moves the session to Disconnected regardless of
// in-flight markers. Used for engine denials, provider resets and
// caller-reported ends. Reports false when the session was already
// terminal.
func (s *Session) ForceDisconnect(reason DisconnectReason) (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return Info{}, false
	}
	s.inFlight = ""
	s.applyLocked(StateDisconnected)
	s.reason = reason
	return s.infoLocked(), true
}

// TimeoutIfRinging applies the reachability deadline: the session moves
// to Disconnected(Timeout) only if it is still Ringing at the same
// generation the timer was armed against. Stale timers are a no-op;
// this check, not timer cancellation, is the correctness mechanism.
func (s *Session) TimeoutIfRinging(armedGen uint64) (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRinging || s.generation != armedGen {
		return Info{}, false
	}
	s.inFlight = ""
	s.applyLocked(StateDisconnected)
	s.reason = ReasonTimeout
	return s.infoLocked(), true
}

// UpdateDisplay replaces the mutable display metadata. Allowed in any
// non-terminal state; it is not a state transition and emits no event.
func (s *Session) UpdateDisplay(displayName, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return ErrInvalidState
	}
	if displayName != "" {
		s.displayName = displayName
	}
	if handle != "" {
		s.handle = handle
	}
	return nil
}

// applyLocked moves to next and bumps the generation on a state change.
// Caller holds s.mu.
func (s *Session) applyLocked(next State) {
	if s.state != next {
		s.state = next
		s.generation++
	}
}

// applyEffectLocked updates the mute/hold attributes tied to an action.
// Caller holds s.mu.
func (s *Session) applyEffectLocked(a Action) {
	switch a {
	case ActionMute:
		s.muted = true
	case ActionUnmute:
		s.muted = false
	case ActionHold:
		s.onHold = true
	case ActionUnhold:
		s.onHold = false
	case ActionAnswer, ActionConnect:
		s.onHold = false
	}
}

func (s *Session) infoLocked() Info {
	return Info{
		ID:          s.id,
		Direction:   s.direction,
		Handle:      s.handle,
		HandleType:  s.handleType,
		DisplayName: s.displayName,
		HasVideo:    s.hasVideo,
		State:       s.state,
		Muted:       s.muted,
		OnHold:      s.onHold,
		CreatedAt:   s.createdAt,
		Generation:  s.generation,
		Reason:      s.reason,
	}
}
