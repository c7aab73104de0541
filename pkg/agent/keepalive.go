package agent

import (
	"math/rand/v2"
	"time"

	"github.com/forgemesh/nodeagent/pkg/types"
)

// KeepAliveTracker extends a running application's security-token
// lifetime by periodically including it in the heartbeat's keep-alive
// list, so the controller can push fresh system credentials before the
// original ones expire.
//
// Keep-alive is only meaningful when log aggregation and security are
// both enabled; Enabled is computed once at construction from that pair
// of configuration flags per spec, and Tick short-circuits to an empty
// list otherwise.
type KeepAliveTracker struct {
	enabled           bool
	tokenRemovalDelay time.Duration
	nextSend          map[types.ApplicationID]time.Time
}

// NewKeepAliveTracker builds a tracker. enabled should be
// logAggregationEnabled && securityEnabled, matching spec 4.3.
func NewKeepAliveTracker(enabled bool, tokenRemovalDelay time.Duration) *KeepAliveTracker {
	return &KeepAliveTracker{
		enabled:           enabled,
		tokenRemovalDelay: tokenRemovalDelay,
		nextSend:          make(map[types.ApplicationID]time.Time),
	}
}

// Enabled reports whether keep-alive is active for this node.
func (k *KeepAliveTracker) Enabled() bool {
	return k.enabled
}

// nextSendAt computes a jittered next-send time: now + (0.7+0.2r)*D,
// r in [0,1). The jitter spreads keep-alive traffic across applications
// that all started near the same time instead of bunching it at exactly
// 70% of the removal delay.
func (k *KeepAliveTracker) nextSendAt(now time.Time) time.Time {
	factor := 0.7 + 0.2*rand.Float64()
	return now.Add(time.Duration(factor * float64(k.tokenRemovalDelay)))
}

// Tick drops entries for applications no longer live, schedules a
// next-send time for newly observed live applications, and returns the
// IDs of applications whose next-send time has passed -- rescheduling
// each of those for its next round.
func (k *KeepAliveTracker) Tick(now time.Time, liveApps map[types.ApplicationID]types.Application) []types.ApplicationID {
	if !k.enabled {
		return nil
	}

	for id := range k.nextSend {
		if _, stillLive := liveApps[id]; !stillLive {
			delete(k.nextSend, id)
		}
	}

	var due []types.ApplicationID
	for id := range liveApps {
		sendAt, tracked := k.nextSend[id]
		if !tracked {
			k.nextSend[id] = k.nextSendAt(now)
			continue
		}
		if !now.Before(sendAt) {
			due = append(due, id)
			k.nextSend[id] = k.nextSendAt(now)
		}
	}
	return due
}

// Len reports how many applications are currently tracked.
func (k *KeepAliveTracker) Len() int {
	return len(k.nextSend)
}

// TrackApps starts keep-alive tracking for applications the controller just
// told this node to finish: their credentials must stay valid a little
// longer while cleanup runs, so the tracker begins scheduling next-send
// times for them exactly as it would for any other live application. A
// disabled tracker ignores the call.
func (k *KeepAliveTracker) TrackApps(appIDs []types.ApplicationID) {
	if !k.enabled || len(appIDs) == 0 {
		return
	}
	now := time.Now()
	for _, id := range appIDs {
		k.nextSend[id] = k.nextSendAt(now)
	}
}
