// Package keeper coordinates the per-call lifecycle between the
// application layer issuing intents and the platform telephony engine
// reporting events. It owns the session registry, validates every
// intent against the state machine, reconciles engine callbacks and
// enforces the reachability deadline on displayed incoming calls.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/callkeeper/callkeeper/internal/call"
	"github.com/callkeeper/callkeeper/internal/engine"
	"github.com/callkeeper/callkeeper/internal/events"
	"github.com/callkeeper/callkeeper/internal/observability"
	"github.com/callkeeper/callkeeper/internal/settings"
)

// Config carries the coordinator's own knobs.
type Config struct {
	// ReachabilityTimeout is the default watchdog delay; the provider
	// configuration may override it. 0 disables the watchdog.
	ReachabilityTimeout time.Duration
}

// Coordinator is the explicit context object holding the registry,
// settings store and watchdog scheduling. Every operation goes through
// it; there is no process-wide shared state.
type Coordinator struct {
	cfg      Config
	settings *settings.Store
	registry *call.Registry
	eng      engine.Engine
	queue    *events.Queue
	metrics  *observability.Metrics
	logger   *slog.Logger
	clock    func() time.Time

	mu        sync.Mutex
	reachable bool
	available bool
}

func New(cfg Config, st *settings.Store, eng engine.Engine, queue *events.Queue, metrics *observability.Metrics, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		cfg:       cfg,
		settings:  st,
		registry:  call.NewRegistry(),
		eng:       eng,
		queue:     queue,
		metrics:   metrics,
		logger:    logger,
		clock:     time.Now,
		available: true,
	}
	// The first attached listener doubles as the reachability signal.
	queue.SetAttachHook(c.SetReachable)
	return c
}

// Initialize stores the provider configuration (first writer wins) and
// registers the provider with the engine on the first success.
func (c *Coordinator) Initialize(ctx context.Context, cfg settings.ProviderConfiguration) error {
	alreadyInit := c.settings.Initialized()
	if err := c.settings.Initialize(ctx, cfg); err != nil {
		return err
	}
	if alreadyInit {
		return nil
	}

	current, err := c.settings.Current()
	if err != nil {
		return err
	}
	if err := c.eng.RegisterProvider(ctx, current); err != nil {
		return fmt.Errorf("register provider: %w", err)
	}
	c.logger.Info("provider registered", "engine", c.eng.Name(), "app", current.AppName)
	return nil
}

// Ready reports whether a provider configuration is known, from this
// process or read back from persistence.
func (c *Coordinator) Ready() bool {
	return c.settings.Ready()
}

// EngineName identifies the telephony engine behind the coordinator.
func (c *Coordinator) EngineName() string {
	return c.eng.Name()
}

// CurrentSettings exposes the immutable configuration snapshot.
func (c *Coordinator) CurrentSettings() (settings.ProviderConfiguration, error) {
	return c.settings.Current()
}

// IncomingCall is a createIncomingCall request. Optional fields resolve
// to their documented defaults exactly once, here at the dispatcher
// boundary: CallerName falls back to Handle, HandleType to generic.
type IncomingCall struct {
	ID         string
	Handle     string
	CallerName string
	HandleType string
	HasVideo   bool
}

// OutgoingCall is a createOutgoingCall request. ContactID falls back to
// Handle, HandleType to generic.
type OutgoingCall struct {
	ID         string
	Handle     string
	ContactID  string
	HandleType string
	HasVideo   bool
}

// CreateIncoming registers a new incoming call, hands it to the engine
// for display and transitions it to Ringing on acknowledgement. The
// reachability watchdog is armed when the call is displayed.
func (c *Coordinator) CreateIncoming(ctx context.Context, req IncomingCall) (call.Info, error) {
	if !c.settings.Ready() {
		return call.Info{}, call.ErrNotInitialized
	}
	if !c.Available() {
		return call.Info{}, call.ErrUnavailable
	}

	displayName := req.CallerName
	if displayName == "" {
		displayName = req.Handle
	}

	s, err := c.registry.Create(call.CreateParams{
		ID:          req.ID,
		Direction:   call.DirectionIncoming,
		Handle:      req.Handle,
		HandleType:  call.ParseHandleType(req.HandleType),
		DisplayName: displayName,
		HasVideo:    req.HasVideo,
	}, c.clock().UTC())
	if err != nil {
		return call.Info{}, err
	}
	c.metrics.ActiveCalls.Set(float64(c.registry.Len()))

	if _, err := s.Begin(call.ActionDisplay); err != nil {
		return call.Info{}, err
	}

	ackErr := c.report(ctx, engine.CallUpdate{
		CallID:      req.ID,
		Handle:      req.Handle,
		HandleType:  string(call.ParseHandleType(req.HandleType)),
		DisplayName: displayName,
		HasVideo:    req.HasVideo,
	})
	if ackErr != nil {
		// Engine denied the incoming call: the session fails terminally
		// and is removed before any consumer learned of it.
		info, _ := s.ForceDisconnect(call.ReasonFailed)
		c.finish(info)
		return call.Info{}, fmt.Errorf("%w: %v", call.ErrEngineRejected, ackErr)
	}

	info, err := s.Commit(call.ActionDisplay)
	if err != nil {
		return call.Info{}, err
	}

	c.emit(events.DidDisplayIncomingCall, events.Payload{CallID: info.ID})
	if !c.Reachable() {
		c.emit(events.CheckReachability, events.Payload{})
	}
	c.armWatchdog(s, info.Generation)
	return info, nil
}

// CreateOutgoing registers a new outgoing call and submits the start
// transaction; the session dials on acknowledgement.
func (c *Coordinator) CreateOutgoing(ctx context.Context, req OutgoingCall) (call.Info, error) {
	if !c.settings.Ready() {
		return call.Info{}, call.ErrNotInitialized
	}

	contactID := req.ContactID
	if contactID == "" {
		contactID = req.Handle
	}

	s, err := c.registry.Create(call.CreateParams{
		ID:          req.ID,
		Direction:   call.DirectionOutgoing,
		Handle:      req.Handle,
		HandleType:  call.ParseHandleType(req.HandleType),
		DisplayName: contactID,
		HasVideo:    req.HasVideo,
	}, c.clock().UTC())
	if err != nil {
		return call.Info{}, err
	}
	c.metrics.ActiveCalls.Set(float64(c.registry.Len()))

	if _, err := s.Begin(call.ActionStart); err != nil {
		return call.Info{}, err
	}

	if ackErr := c.submit(ctx, engine.Transaction{
		Kind:       engine.TxStart,
		CallID:     req.ID,
		Handle:     req.Handle,
		HandleType: string(call.ParseHandleType(req.HandleType)),
		HasVideo:   req.HasVideo,
	}); ackErr != nil {
		info, _ := s.ForceDisconnect(call.ReasonFailed)
		c.finish(info)
		return call.Info{}, fmt.Errorf("%w: %v", call.ErrEngineRejected, ackErr)
	}

	info, err := s.Commit(call.ActionStart)
	if err != nil {
		return call.Info{}, err
	}
	c.emit(events.DidReceiveStartCallAction, events.Payload{CallID: info.ID, Handle: info.Handle})
	return info, nil
}

// Answer accepts a ringing incoming call.
func (c *Coordinator) Answer(ctx context.Context, id string) (call.Info, error) {
	info, err := c.transact(ctx, id, call.ActionAnswer, engine.TxAnswer)
	if err != nil {
		return call.Info{}, err
	}
	c.emit(events.AnswerCall, events.Payload{CallID: info.ID})
	return info, nil
}

// Reject declines a ringing incoming call; the session ends
// Disconnected(Rejected) and is removed.
func (c *Coordinator) Reject(ctx context.Context, id string) error {
	info, err := c.transact(ctx, id, call.ActionReject, engine.TxReject)
	if err != nil {
		return err
	}
	c.finishWithEvent(info)
	return nil
}

// End terminates a call from any non-terminal state. The terminal
// reason depends on how far the call had progressed: established calls
// end LocalEnded, earlier ones Canceled.
func (c *Coordinator) End(ctx context.Context, id string) error {
	info, err := c.transact(ctx, id, call.ActionEnd, engine.TxEnd)
	if err != nil {
		return err
	}
	c.finishWithEvent(info)
	return nil
}

// EndAll ends every live call independently. One session's failure does
// not block the others; the returned map carries one error per failed
// id and is empty on full success.
func (c *Coordinator) EndAll(ctx context.Context) map[string]error {
	failed := make(map[string]error)
	for _, s := range c.registry.Snapshot() {
		if err := c.End(ctx, s.ID()); err != nil {
			failed[s.ID()] = err
			c.logger.Warn("end-all: session failed", "call_id", s.ID(), "error", err)
		}
	}
	return failed
}

// SetMuted toggles the mute attribute; legal only while Active or Held.
func (c *Coordinator) SetMuted(ctx context.Context, id string, muted bool) error {
	action, kind := call.ActionMute, engine.TxMute
	if !muted {
		action, kind = call.ActionUnmute, engine.TxUnmute
	}
	info, err := c.transact(ctx, id, action, kind)
	if err != nil {
		return err
	}
	c.emit(events.DidPerformSetMutedCallAction, events.Payload{CallID: info.ID, Muted: events.Bool(muted)})
	return nil
}

// SetOnHold moves a call between Active and Held.
func (c *Coordinator) SetOnHold(ctx context.Context, id string, hold bool) error {
	action, kind := call.ActionHold, engine.TxHold
	if !hold {
		action, kind = call.ActionUnhold, engine.TxUnhold
	}
	info, err := c.transact(ctx, id, action, kind)
	if err != nil {
		return err
	}
	c.emit(events.DidToggleHoldAction, events.Payload{CallID: info.ID, Hold: events.Bool(hold)})
	return nil
}

// ReportConnected reconciles an outgoing call the caller knows has been
// picked up. No engine round-trip and no event; the engine already owns
// the audio path.
func (c *Coordinator) ReportConnected(_ context.Context, id string) error {
	s, err := c.registry.Get(id)
	if err != nil {
		return err
	}
	_, err = s.Apply(call.ActionConnect)
	return err
}

// SetActive reconciles a call into Active from either Ringing (answered
// out-of-band) or Dialing (connected out-of-band).
func (c *Coordinator) SetActive(_ context.Context, id string) error {
	s, err := c.registry.Get(id)
	if err != nil {
		return err
	}
	if _, err := s.Apply(call.ActionAnswer); !errors.Is(err, call.ErrInvalidState) {
		return err
	}
	_, err = s.Apply(call.ActionConnect)
	return err
}

// ReportEnded applies a caller-reported terminal reason code. The
// report is authoritative: it overrides any in-flight action.
func (c *Coordinator) ReportEnded(_ context.Context, id string, reasonCode int) error {
	s, err := c.registry.Get(id)
	if err != nil {
		return err
	}
	info, ok := s.ForceDisconnect(call.ReasonFromCode(reasonCode))
	if !ok {
		return call.ErrInvalidState
	}
	c.finishWithEvent(info)
	return nil
}

// UpdateDisplay replaces a call's display metadata.
func (c *Coordinator) UpdateDisplay(_ context.Context, id, displayName, handle string) error {
	s, err := c.registry.Get(id)
	if err != nil {
		return err
	}
	return s.UpdateDisplay(displayName, handle)
}

// SetReachable marks the application reachable; armed watchdogs become
// no-ops from this point on.
func (c *Coordinator) SetReachable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reachable = true
}

// Reachable reports whether the application has signalled reachability.
func (c *Coordinator) Reachable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reachable
}

// SetAvailable toggles whether new incoming calls are accepted.
func (c *Coordinator) SetAvailable(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.available = v
}

// Available reports whether incoming calls are currently accepted.
func (c *Coordinator) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.available
}

// ActiveCalls returns a snapshot of every live session.
func (c *Coordinator) ActiveCalls() []call.Info {
	sessions := c.registry.Snapshot()
	out := make([]call.Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	return out
}

// InManagedCall reports whether any call is established (Active or
// Held).
func (c *Coordinator) InManagedCall() bool {
	for _, s := range c.registry.Snapshot() {
		switch s.Snapshot().State {
		case call.StateActive, call.StateHeld:
			return true
		}
	}
	return false
}

// transact runs the common dispatcher sequence: resolve the session,
// validate and mark the action in flight, submit the engine
// transaction with no session lock held, then reconcile the
// acknowledgement. Engine rejections leave the session unchanged.
func (c *Coordinator) transact(ctx context.Context, id string, action call.Action, kind engine.TransactionKind) (call.Info, error) {
	s, err := c.registry.Get(id)
	if err != nil {
		return call.Info{}, err
	}
	if _, err := s.Begin(action); err != nil {
		return call.Info{}, err
	}

	if ackErr := c.submit(ctx, engine.Transaction{Kind: kind, CallID: id}); ackErr != nil {
		s.Abort(action)
		c.metrics.EngineErrors.WithLabelValues(string(kind)).Inc()
		return call.Info{}, fmt.Errorf("%w: %v", call.ErrEngineRejected, ackErr)
	}

	info, err := s.Commit(action)
	if err != nil {
		// The session was force-disconnected while the transaction was
		// in flight; its terminal event has already been emitted.
		c.logger.Warn("transaction completion superseded", "call_id", id, "action", string(action))
		return call.Info{}, err
	}
	return info, nil
}

// submit sends one transaction and waits for its asynchronous
// acknowledgement.
func (c *Coordinator) submit(ctx context.Context, tx engine.Transaction) error {
	done := make(chan error, 1)
	c.eng.RequestTransaction(ctx, tx, func(err error) { done <- err })
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// report hands a new incoming call to the engine and waits for the
// acknowledgement.
func (c *Coordinator) report(ctx context.Context, update engine.CallUpdate) error {
	done := make(chan error, 1)
	c.eng.ReportNewIncomingCall(ctx, update, func(err error) { done <- err })
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) emit(name events.Name, p events.Payload) {
	c.queue.Emit(name, p)
	c.metrics.CallEvents.WithLabelValues(string(name)).Inc()
}

// finish removes a terminal session without emitting; used when no
// consumer ever learned of the call.
func (c *Coordinator) finish(info call.Info) {
	c.registry.Remove(info.ID)
	c.metrics.ActiveCalls.Set(float64(c.registry.Len()))
}

// finishWithEvent emits the terminal event for a disconnected session
// and removes it from the registry.
func (c *Coordinator) finishWithEvent(info call.Info) {
	c.emit(events.EndCall, events.Payload{CallID: info.ID})
	c.logger.Info("call ended", "call_id", info.ID, "reason", string(info.Reason))
	c.finish(info)
}
