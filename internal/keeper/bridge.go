package keeper

import (
	"errors"

	"github.com/callkeeper/callkeeper/internal/call"
	"github.com/callkeeper/callkeeper/internal/engine"
	"github.com/callkeeper/callkeeper/internal/events"
)

// EnginePerformed reconciles an action the engine already executed on
// its side. The mapped event is emitted even when the session is
// unknown or the transition is redundant: the engine owns the truth and
// downstream consumers must hear about it either way.
func (c *Coordinator) EnginePerformed(p engine.Performed) {
	switch p.Kind {
	case engine.PerformedStart:
		c.emit(events.DidReceiveStartCallAction, events.Payload{CallID: p.CallID, Handle: p.Handle})

	case engine.PerformedAnswer:
		c.reconcile(p.CallID, call.ActionAnswer)
		c.emit(events.AnswerCall, events.Payload{CallID: p.CallID})

	case engine.PerformedEnd:
		if s, err := c.registry.Get(p.CallID); err == nil {
			if info, ok := s.ForceDisconnect(call.ReasonRemoteEnded); ok {
				c.finishWithEvent(info)
				return
			}
		}
		c.emit(events.EndCall, events.Payload{CallID: p.CallID})

	case engine.PerformedHold:
		action := call.ActionHold
		if !p.OnHold {
			action = call.ActionUnhold
		}
		c.reconcile(p.CallID, action)
		c.emit(events.DidToggleHoldAction, events.Payload{CallID: p.CallID, Hold: events.Bool(p.OnHold)})

	case engine.PerformedMute:
		action := call.ActionMute
		if !p.Muted {
			action = call.ActionUnmute
		}
		c.reconcile(p.CallID, action)
		c.emit(events.DidPerformSetMutedCallAction, events.Payload{CallID: p.CallID, Muted: events.Bool(p.Muted)})

	case engine.PerformedDTMF:
		c.emit(events.DidPerformDTMFAction, events.Payload{CallID: p.CallID, Digits: p.Digits})

	default:
		c.logger.Warn("unknown engine action", "kind", string(p.Kind), "call_id", p.CallID)
	}
}

// reconcile applies an engine-initiated transition best-effort; a
// failure is logged, never surfaced, since the engine already acted.
func (c *Coordinator) reconcile(id string, action call.Action) {
	s, err := c.registry.Get(id)
	if err != nil {
		c.logger.Warn("engine action for unknown call", "call_id", id, "action", string(action))
		return
	}
	if _, err := s.Apply(action); err != nil && !errors.Is(err, call.ErrInvalidState) {
		c.logger.Warn("engine action not applicable", "call_id", id, "action", string(action), "error", err)
	}
}

// AudioSessionActivated signals that the engine brought the audio path
// up.
func (c *Coordinator) AudioSessionActivated() {
	c.emit(events.DidActivateAudioSession, events.Payload{})
}

// AudioSessionDeactivated signals that the engine tore the audio path
// down.
func (c *Coordinator) AudioSessionDeactivated() {
	c.emit(events.DidDeactivateAudioSession, events.Payload{})
}

// ProviderReset drops every live session. Each one fails terminally
// with its own event, then a single reset event closes the batch.
func (c *Coordinator) ProviderReset() {
	for _, s := range c.registry.Drain() {
		if info, ok := s.ForceDisconnect(call.ReasonUnknown); ok {
			c.emit(events.EndCall, events.Payload{CallID: info.ID})
			c.logger.Info("call dropped by provider reset", "call_id", info.ID)
		}
	}
	c.metrics.ActiveCalls.Set(0)
	c.emit(events.DidResetProvider, events.Payload{})
}
