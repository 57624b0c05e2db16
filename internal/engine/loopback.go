package engine

import (
	"context"
	"sync"
	"time"

	"github.com/callkeeper/callkeeper/internal/settings"
)

// Loopback is an in-process engine that acknowledges every transaction
// asynchronously. It backs local development and tests, and doubles as
// a remote-party simulator: Perform, ActivateAudio and Reset drive the
// Inbound surface the way a real platform would.
type Loopback struct {
	mu         sync.Mutex
	registered *settings.ProviderConfiguration
	inbound    Inbound
	ackDelay   time.Duration
	failNext   map[TransactionKind]error
	reportErr  error
}

// LoopbackOption configures a Loopback engine.
type LoopbackOption func(*Loopback)

// WithAckDelay delays every acknowledgement, approximating a platform
// round-trip.
func WithAckDelay(d time.Duration) LoopbackOption {
	return func(l *Loopback) { l.ackDelay = d }
}

func NewLoopback(opts ...LoopbackOption) *Loopback {
	l := &Loopback{failNext: make(map[TransactionKind]error)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loopback) Name() string { return "loopback" }

// SetInbound wires the core's callback surface. Must be called before
// any simulated inbound traffic.
func (l *Loopback) SetInbound(in Inbound) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inbound = in
}

func (l *Loopback) RegisterProvider(_ context.Context, cfg settings.ProviderConfiguration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := cfg
	l.registered = &c
	return nil
}

// Registered returns the last provider configuration handed to the
// engine, or nil.
func (l *Loopback) Registered() *settings.ProviderConfiguration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.registered
}

// FailNextTransaction makes the next transaction of the given kind be
// rejected with err. Test hook.
func (l *Loopback) FailNextTransaction(kind TransactionKind, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNext[kind] = err
}

// FailNextReport makes the next ReportNewIncomingCall fail. Test hook.
func (l *Loopback) FailNextReport(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reportErr = err
}

func (l *Loopback) RequestTransaction(_ context.Context, tx Transaction, done func(error)) {
	l.mu.Lock()
	err := l.failNext[tx.Kind]
	delete(l.failNext, tx.Kind)
	delay := l.ackDelay
	l.mu.Unlock()

	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		done(err)
	}()
}

func (l *Loopback) ReportNewIncomingCall(_ context.Context, _ CallUpdate, done func(error)) {
	l.mu.Lock()
	err := l.reportErr
	l.reportErr = nil
	delay := l.ackDelay
	l.mu.Unlock()

	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		done(err)
	}()
}

// Perform simulates the platform reporting that it executed an action.
func (l *Loopback) Perform(p Performed) {
	if in := l.currentInbound(); in != nil {
		in.EnginePerformed(p)
	}
}

// ActivateAudio simulates the platform activating the audio session.
func (l *Loopback) ActivateAudio() {
	if in := l.currentInbound(); in != nil {
		in.AudioSessionActivated()
	}
}

// DeactivateAudio simulates the platform deactivating the audio
// session.
func (l *Loopback) DeactivateAudio() {
	if in := l.currentInbound(); in != nil {
		in.AudioSessionDeactivated()
	}
}

// Reset simulates the platform discarding all native call state.
func (l *Loopback) Reset() {
	if in := l.currentInbound(); in != nil {
		in.ProviderReset()
	}
}

func (l *Loopback) currentInbound() Inbound {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inbound
}
