package call

import "errors"

var (
	// ErrNotInitialized is returned for call actions issued before the
	// provider settings store has been initialized.
	ErrNotInitialized = errors.New("provider not initialized")

	// ErrDuplicateID is returned when a create request collides with an
	// existing session. The existing session is left untouched.
	ErrDuplicateID = errors.New("call id already in use")

	// ErrSessionNotFound is returned for actions on an unknown call id.
	ErrSessionNotFound = errors.New("call session not found")

	// ErrInvalidState is returned when the requested action has no edge
	// from the session's current state.
	ErrInvalidState = errors.New("no transition from current state")

	// ErrOperationInProgress is returned when another action is already
	// in flight for the same session.
	ErrOperationInProgress = errors.New("operation already in progress")

	// ErrInvalidIdentifier is returned for malformed call ids.
	ErrInvalidIdentifier = errors.New("malformed call id")

	// ErrEngineRejected wraps a rejection reason from the telephony
	// engine. Session state is left unchanged when it is returned.
	ErrEngineRejected = errors.New("engine rejected transaction")

	// ErrUnavailable is returned when incoming calls are refused because
	// the application marked itself unavailable.
	ErrUnavailable = errors.New("application unavailable for calls")
)
