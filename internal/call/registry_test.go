package call

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func params(id string) CreateParams {
	return CreateParams{
		ID:         id,
		Direction:  DirectionIncoming,
		Handle:     "+15551234567",
		HandleType: HandlePhoneNumber,
	}
}

func TestRegistryCreateGetRemove(t *testing.T) {
	r := NewRegistry()
	id := "f81d4fae-7dec-11d0-a765-00a0c91e6bf6"

	s, err := r.Create(params(id), time.Now().UTC())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if s.Snapshot().State != StateInitializing {
		t.Fatalf("new session state = %q, want %q", s.Snapshot().State, StateInitializing)
	}

	got, err := r.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != s {
		t.Fatalf("Get returned a different session")
	}

	r.Remove(id)
	if _, err := r.Get(id); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get after Remove error = %v, want ErrSessionNotFound", err)
	}
}

func TestRegistryDuplicateID(t *testing.T) {
	r := NewRegistry()
	id := "f81d4fae-7dec-11d0-a765-00a0c91e6bf6"

	first, err := r.Create(params(id), time.Now().UTC())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := r.Create(params(id), time.Now().UTC()); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("second Create error = %v, want ErrDuplicateID", err)
	}

	// The original session must be unchanged by the rejected create.
	got, err := r.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != first {
		t.Fatalf("existing session replaced by rejected create")
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistryInvalidIdentifier(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"", "not-a-uuid", "12345"} {
		if _, err := r.Create(params(id), time.Now().UTC()); !errors.Is(err, ErrInvalidIdentifier) {
			t.Fatalf("Create(%q) error = %v, want ErrInvalidIdentifier", id, err)
		}
	}
}

func TestRegistryDrain(t *testing.T) {
	r := NewRegistry()
	ids := []string{
		"11111111-1111-1111-1111-111111111111",
		"22222222-2222-2222-2222-222222222222",
		"33333333-3333-3333-3333-333333333333",
	}
	for _, id := range ids {
		if _, err := r.Create(params(id), time.Now().UTC()); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}

	drained := r.Drain()
	if len(drained) != len(ids) {
		t.Fatalf("Drain() returned %d sessions, want %d", len(drained), len(ids))
	}
	if r.Len() != 0 {
		t.Fatalf("Len() after Drain = %d, want 0", r.Len())
	}
}

func TestRegistryConcurrentDistinctCalls(t *testing.T) {
	r := NewRegistry()
	ids := []string{
		"44444444-4444-4444-4444-444444444444",
		"55555555-5555-5555-5555-555555555555",
	}
	sessions := make([]*Session, len(ids))
	for i, id := range ids {
		s, err := r.Create(params(id), time.Now().UTC())
		if err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
		if _, err := s.Apply(ActionDisplay); err != nil {
			t.Fatalf("Apply(display) error = %v", err)
		}
		if _, err := s.Apply(ActionAnswer); err != nil {
			t.Fatalf("Apply(answer) error = %v", err)
		}
		sessions[i] = s
	}

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if _, err := s.Apply(ActionMute); err != nil {
					t.Errorf("Apply(mute) error = %v", err)
					return
				}
				if _, err := s.Apply(ActionUnmute); err != nil {
					t.Errorf("Apply(unmute) error = %v", err)
					return
				}
			}
		}(s)
	}
	wg.Wait()
}

func TestSessionConcurrentHoldEndRace(t *testing.T) {
	// Two near-simultaneous conflicting actions must not both apply:
	// exactly one wins, the other fails InvalidState or
	// OperationInProgress.
	for i := 0; i < 50; i++ {
		s := newRingingSession(t)
		if _, err := s.Apply(ActionAnswer); err != nil {
			t.Fatalf("Apply(answer) error = %v", err)
		}

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = s.Apply(ActionHold)
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = s.Apply(ActionEnd)
		}()
		wg.Wait()

		state := s.Snapshot().State
		if errs[0] == nil && errs[1] == nil {
			// Both may legitimately succeed if hold applied before end;
			// the end must then have won the final state.
			if state != StateDisconnected {
				t.Fatalf("both applied but state = %q", state)
			}
			continue
		}
		if errs[0] != nil && errs[1] != nil {
			t.Fatalf("both actions failed: %v / %v", errs[0], errs[1])
		}
		if errs[1] == nil && state != StateDisconnected {
			t.Fatalf("end applied but state = %q", state)
		}
		if errs[0] == nil && errs[1] != nil && state != StateHeld {
			t.Fatalf("hold applied but state = %q", state)
		}
	}
}
