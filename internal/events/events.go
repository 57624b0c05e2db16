// Package events defines the outbound event stream of the call
// coordinator and the delayed delivery queue that buffers events until
// the application attaches its first listener.
package events

// Name identifies an outbound event.
type Name string

const (
	DidDisplayIncomingCall       Name = "didDisplayIncomingCall"
	CheckReachability            Name = "checkReachability"
	AnswerCall                   Name = "answerCall"
	DidReceiveStartCallAction    Name = "didReceiveStartCallAction"
	EndCall                      Name = "endCall"
	DidActivateAudioSession      Name = "didActivateAudioSession"
	DidDeactivateAudioSession    Name = "didDeactivateAudioSession"
	DidPerformSetMutedCallAction Name = "didPerformSetMutedCallAction"
	DidToggleHoldAction          Name = "didToggleHoldAction"
	DidPerformDTMFAction         Name = "didPerformDTMFAction"
	DidResetProvider             Name = "didResetProvider"
)

// Payload carries the per-event fields. All fields are optional; which
// ones are set depends on the event name.
type Payload struct {
	CallID string `json:"callUUID,omitempty"`
	Handle string `json:"handle,omitempty"`
	Muted  *bool  `json:"muted,omitempty"`
	Hold   *bool  `json:"hold,omitempty"`
	Digits string `json:"digits,omitempty"`
}

// Event is one produced notification. Seq is assigned by the queue from
// a single global counter; consumers reading one subscription observe
// per-call events in production order.
type Event struct {
	Name    Name    `json:"name"`
	Payload Payload `json:"payload"`
	Seq     uint64  `json:"seq"`
}

// Bool is a convenience for the optional boolean payload fields.
func Bool(v bool) *bool { return &v }
