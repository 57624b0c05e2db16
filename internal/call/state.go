package call

import "strings"

// State is a call session lifecycle state.
type State string

const (
	StateInitializing  State = "initializing"
	StateRinging       State = "ringing"
	StateDialing       State = "dialing"
	StateActive        State = "active"
	StateHeld          State = "held"
	StateDisconnecting State = "disconnecting"
	StateDisconnected  State = "disconnected"
)

// Direction distinguishes who originated the call.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// HandleType classifies the remote party handle.
type HandleType string

const (
	HandleGeneric     HandleType = "generic"
	HandlePhoneNumber HandleType = "number"
	HandleEmail       HandleType = "email"
)

// ParseHandleType resolves a caller-supplied handle type string.
// Unknown or empty values default to generic; this is the single
// default-resolution rule for the field.
func ParseHandleType(s string) HandleType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "number", "phonenumber", "phone_number":
		return HandlePhoneNumber
	case "email":
		return HandleEmail
	default:
		return HandleGeneric
	}
}

// DisconnectReason records why a session reached Disconnected.
type DisconnectReason string

const (
	ReasonFailed      DisconnectReason = "failed"
	ReasonRemoteEnded DisconnectReason = "remote_ended"
	ReasonLocalEnded  DisconnectReason = "local_ended"
	ReasonCanceled    DisconnectReason = "canceled"
	ReasonRejected    DisconnectReason = "rejected"
	ReasonMissed      DisconnectReason = "missed"
	ReasonUnknown     DisconnectReason = "unknown"
	ReasonTimeout     DisconnectReason = "timeout"
)

// ReasonFromCode maps a numeric end-call reason code from the wire to a
// DisconnectReason. Unknown codes map to ReasonUnknown. Missed is kept
// distinct from Timeout: a timeout is produced only by the reachability
// watchdog, never by a caller-supplied code.
func ReasonFromCode(code int) DisconnectReason {
	switch code {
	case 1:
		return ReasonFailed
	case 2:
		return ReasonRemoteEnded
	case 3:
		return ReasonLocalEnded
	case 4:
		return ReasonCanceled
	case 5:
		return ReasonRejected
	case 6:
		return ReasonMissed
	default:
		return ReasonUnknown
	}
}

// Action is a requested effect against a session. Actions double as the
// session's in-flight marker while an engine transaction is pending.
type Action string

const (
	ActionStart   Action = "start"   // outgoing create granted by engine
	ActionDisplay Action = "display" // incoming create granted by engine
	ActionAnswer  Action = "answer"
	ActionReject  Action = "reject"
	ActionEnd     Action = "end"
	ActionHold    Action = "hold"
	ActionUnhold  Action = "unhold"
	ActionMute    Action = "mute"
	ActionUnmute  Action = "unmute"
	ActionConnect Action = "connect" // outgoing call reported connected
)

// edges lists, per action, the states it may be requested from and the
// state it lands in. ActionEnd is absent: it is legal from every
// non-terminal state and handled explicitly by the session.
var edges = map[Action]map[State]State{
	ActionStart:   {StateInitializing: StateDialing},
	ActionDisplay: {StateInitializing: StateRinging},
	ActionAnswer:  {StateRinging: StateActive},
	ActionConnect: {StateDialing: StateActive},
	ActionReject:  {StateRinging: StateDisconnected},
	ActionHold:    {StateActive: StateHeld},
	ActionUnhold:  {StateHeld: StateActive},
	ActionMute:    {StateActive: StateActive, StateHeld: StateHeld},
	ActionUnmute:  {StateActive: StateActive, StateHeld: StateHeld},
}

// EndReasonFor picks the terminal reason for a locally requested end
// based on the state the call was in when the end was issued.
func EndReasonFor(from State) DisconnectReason {
	switch from {
	case StateActive, StateHeld:
		return ReasonLocalEnded
	default:
		return ReasonCanceled
	}
}
