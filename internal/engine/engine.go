// Package engine defines the contract with the external platform
// telephony subsystem. The coordinator only ever talks to the Engine
// interface; the subsystem talks back through the Inbound interface.
// No platform delegate protocol leaks into the core.
package engine

import (
	"context"

	"github.com/callkeeper/callkeeper/internal/settings"
)

// TransactionKind names a single requested effect.
type TransactionKind string

const (
	TxStart  TransactionKind = "start"
	TxAnswer TransactionKind = "answer"
	TxReject TransactionKind = "reject"
	TxEnd    TransactionKind = "end"
	TxHold   TransactionKind = "hold"
	TxUnhold TransactionKind = "unhold"
	TxMute   TransactionKind = "mute"
	TxUnmute TransactionKind = "unmute"
)

// Transaction is one effect submitted to the engine for asynchronous
// acknowledgement.
type Transaction struct {
	Kind       TransactionKind
	CallID     string
	Handle     string
	HandleType string
	HasVideo   bool
}

// CallUpdate describes a new incoming call being handed to the engine
// for display.
type CallUpdate struct {
	CallID      string
	Handle      string
	HandleType  string
	DisplayName string
	HasVideo    bool
}

// Engine is the external telephony collaborator. Transactions are
// acknowledged through the done callback, possibly from a different
// goroutine than the caller's; callers must not hold session locks
// while waiting.
type Engine interface {
	Name() string
	RegisterProvider(ctx context.Context, cfg settings.ProviderConfiguration) error
	RequestTransaction(ctx context.Context, tx Transaction, done func(error))
	ReportNewIncomingCall(ctx context.Context, update CallUpdate, done func(error))
}

// PerformedKind names an action the engine reports it already carried
// out on its side.
type PerformedKind string

const (
	PerformedStart  PerformedKind = "start"
	PerformedAnswer PerformedKind = "answer"
	PerformedEnd    PerformedKind = "end"
	PerformedHold   PerformedKind = "hold"
	PerformedMute   PerformedKind = "mute"
	PerformedDTMF   PerformedKind = "dtmf"
)

// Performed is an inbound notification that the engine executed an
// action; the core reconciles its state to match.
type Performed struct {
	Kind   PerformedKind
	CallID string
	Handle string
	Muted  bool
	OnHold bool
	Digits string
}

// Inbound is the callback surface implemented by the core coordinator
// and invoked by the engine adapter.
type Inbound interface {
	EnginePerformed(p Performed)
	AudioSessionActivated()
	AudioSessionDeactivated()
	ProviderReset()
}
