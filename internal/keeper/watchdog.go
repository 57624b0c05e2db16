package keeper

import (
	"time"

	"github.com/callkeeper/callkeeper/internal/call"
)

// armWatchdog starts the reachability timer for a freshly displayed
// incoming call. The timer holds the session pointer and the generation
// it was armed against, so a recycled call id can never be hit by a
// stale timer. Timers are never cancelled; a fired timer whose session
// moved on is a no-op.
func (c *Coordinator) armWatchdog(s *call.Session, armedGen uint64) {
	delay := c.watchdogDelay()
	if delay <= 0 {
		return
	}
	time.AfterFunc(delay, func() {
		if c.Reachable() {
			return
		}
		info, fired := s.TimeoutIfRinging(armedGen)
		if !fired {
			return
		}
		c.metrics.WatchdogTimeouts.Inc()
		c.logger.Warn("incoming call timed out unreachable", "call_id", info.ID, "delay", delay)
		c.finishWithEvent(info)
	})
}

// watchdogDelay resolves the effective deadline: the provider
// configuration override when present, otherwise the coordinator
// default.
func (c *Coordinator) watchdogDelay() time.Duration {
	if cfg, err := c.settings.Current(); err == nil && cfg.ReachabilityTimeoutMS > 0 {
		return time.Duration(cfg.ReachabilityTimeoutMS) * time.Millisecond
	}
	return c.cfg.ReachabilityTimeout
}
