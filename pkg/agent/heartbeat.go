package agent

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/forgemesh/nodeagent/internal/rpc"
	"github.com/forgemesh/nodeagent/pkg/events"
	"github.com/forgemesh/nodeagent/pkg/log"
	"github.com/forgemesh/nodeagent/pkg/metrics"
	"github.com/forgemesh/nodeagent/pkg/types"
)

// InvalidRMIdentifier is the sentinel rmIdentifier value after a RESYNC
// directive invalidates the previous one.
const InvalidRMIdentifier int64 = -1

// DefaultHeartbeatInterval is used whenever a response carries an interval
// of zero or less.
const DefaultHeartbeatInterval = 1000 * time.Millisecond

// HeartbeatState is one of the loop's four lifecycle states.
type HeartbeatState int32

const (
	StateConnected HeartbeatState = iota
	StateMissed
	StateStopped
	StateFailed
)

// Loop is the single background actor driving registration results into a
// sustained conversation with the controller: one dedicated goroutine, one
// condition-equivalent wake channel, and exclusive ownership of
// lastHeartbeatID / missed / nextInterval / rmIdentifier outside of
// registration and reboot.
type Loop struct {
	tracker    rpc.ResourceTracker
	collector  *StatusCollector
	labels     LabelsHandler
	dispatcher *Dispatcher
	stopped    *RecentlyStoppedCache
	pending    *PendingCompletionBuffer
	collectors *CollectorRegistry
	ctx        Context

	containerTokenKeys SecretManager
	nodeTokenKeys       SecretManager

	cfg Config

	state   atomic.Int32
	rmMu    sync.Mutex
	rmID    int64

	lastHeartbeatID int64
	missed          bool
	nextInterval    time.Duration

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewLoop wires a heartbeat loop to its collaborators. rmIdentifier should
// be the value returned from registration.
func NewLoop(cfg Config, tracker rpc.ResourceTracker, ctx Context, collector *StatusCollector, labels LabelsHandler, dispatcher *Dispatcher, stopped *RecentlyStoppedCache, pending *PendingCompletionBuffer, collectors *CollectorRegistry, containerTokenKeys, nodeTokenKeys SecretManager, rmIdentifier int64) *Loop {
	l := &Loop{
		tracker:             tracker,
		collector:           collector,
		labels:              labels,
		dispatcher:          dispatcher,
		stopped:             stopped,
		pending:             pending,
		collectors:          collectors,
		ctx:                 ctx,
		containerTokenKeys:  containerTokenKeys,
		nodeTokenKeys:       nodeTokenKeys,
		cfg:                 cfg,
		rmID:                rmIdentifier,
		nextInterval:        DefaultHeartbeatInterval,
		wake:                make(chan struct{}, 1),
		stop:                make(chan struct{}),
		done:                make(chan struct{}),
	}
	l.state.Store(int32(StateConnected))
	return l
}

// State reports the loop's current lifecycle state.
func (l *Loop) State() HeartbeatState {
	return HeartbeatState(l.state.Load())
}

// RMIdentifier returns the controller-epoch value currently in effect.
func (l *Loop) RMIdentifier() int64 {
	l.rmMu.Lock()
	defer l.rmMu.Unlock()
	return l.rmID
}

func (l *Loop) setRMIdentifier(id int64) {
	l.rmMu.Lock()
	l.rmID = id
	l.rmMu.Unlock()
}

// WakeUp signals sendOutOfBandHeartBeat: it wakes the interval wait early,
// whether for a caller reporting a fatal health exception or for the
// reboot path. Non-blocking: a pending wake that has not yet been
// consumed is not duplicated.
func (l *Loop) WakeUp() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Stop requests the loop exit at the next check point and blocks until it
// has.
func (l *Loop) Stop() {
	select {
	case <-l.stop:
		// already stopped
	default:
		close(l.stop)
	}
	<-l.done
}

// Run executes the loop until Stop is called, a SHUTDOWN/RESYNC directive
// is received, or connect retries are exhausted. It returns the directive
// that ended it, or nil if Stop was called externally.
func (l *Loop) Run(background context.Context) *types.NodeAction {
	defer close(l.done)
	logger := log.WithComponent("heartbeat")

	for {
		if l.State() == StateStopped {
			return nil
		}

		select {
		case <-l.stop:
			l.state.Store(int32(StateStopped))
			return nil
		default:
		}

		action, err := l.tick(background)
		if err != nil {
			if isConnectExhausted(err) {
				logger.Error().Err(err).Msg("controller unreachable, giving up")
				l.dispatcher.broker.Publish(&events.Event{Type: events.NodeManagerShutdown, Message: err.Error()})
				l.state.Store(int32(StateFailed))
				return actionPtr(types.NodeActionShutdown)
			}
			logger.Warn().Err(err).Msg("heartbeat tick failed, will retry")
			l.missed = true
			l.state.Store(int32(StateMissed))
		} else if action != nil {
			return action
		}

		select {
		case <-l.wake:
		case <-time.After(l.nextInterval):
		case <-l.stop:
			l.state.Store(int32(StateStopped))
			return nil
		}
	}
}

// tick runs exactly one heartbeat round. A non-nil *types.NodeAction means
// the loop should stop after this round (SHUTDOWN or RESYNC).
func (l *Loop) tick(background context.Context) (*types.NodeAction, error) {
	now := time.Now()

	req := &rpc.HeartbeatRequest{
		LastResponseID:        l.lastHeartbeatID,
		NodeStatus:            l.collector.Collect(now, l.lastHeartbeatID),
		NodeLabels:            l.labels.LabelsForHeartbeat(now),
		RegisteringCollectors: l.collectors.Registering(),
	}
	if key, ok := l.containerTokenKeys.(interface{ Active() (types.SecurityKey, bool) }); ok {
		if k, has := key.Active(); has {
			req.ContainerTokenMasterKey = &k
		}
	}
	if key, ok := l.nodeTokenKeys.(interface{ Active() (types.SecurityKey, bool) }); ok {
		if k, has := key.Active(); has {
			req.NodeTokenMasterKey = &k
		}
	}

	ctx, cancel := context.WithTimeout(background, 10*time.Second)
	defer cancel()

	rpcTimer := metrics.NewTimer()
	resp, err := l.tracker.NodeHeartbeat(ctx, req)
	rpcTimer.ObserveDuration(metrics.HeartbeatLatency)
	metrics.HeartbeatsTotal.Inc()
	if err != nil {
		metrics.HeartbeatFailuresTotal.Inc()
		return nil, err
	}

	if resp.NextHeartBeatIntervalMs > 0 {
		l.nextInterval = time.Duration(resp.NextHeartBeatIntervalMs) * time.Millisecond
	} else {
		l.nextInterval = DefaultHeartbeatInterval
	}

	if resp.ContainerTokenMasterKey != nil {
		l.containerTokenKeys.SetMasterKey(*resp.ContainerTokenMasterKey)
		metrics.MasterKeyRotationsTotal.WithLabelValues("container").Inc()
	}
	if resp.NodeTokenMasterKey != nil {
		l.nodeTokenKeys.SetMasterKey(*resp.NodeTokenMasterKey)
		metrics.MasterKeyRotationsTotal.WithLabelValues("node").Inc()
	}

	switch resp.Action {
	case types.NodeActionShutdown:
		// SHUTDOWN: the master-key updates above have already been
		// applied, but nothing below is processed for this response --
		// no label ack, container removals or directives, queuing limit,
		// resource override or collector updates -- and the
		// pending-completion buffer is left as it is.
		l.ctx.SetDecommissioned(true)
		l.dispatcher.broker.Publish(&events.Event{Type: events.NodeManagerShutdown, Message: resp.DiagnosticsMessage})
		action := types.NodeActionShutdown
		return &action, nil

	case types.NodeActionResync:
		l.setRMIdentifier(InvalidRMIdentifier)
		l.pending.Clear()
		l.dispatcher.broker.Publish(&events.Event{Type: events.NodeManagerResync, Message: resp.DiagnosticsMessage})
		action := types.NodeActionResync
		return &action, nil
	}

	l.labels.VerifyHeartbeatAck(resp.AreNodeLabelsAccepted, resp.DiagnosticsMessage)

	live := l.ctx.ContainerSnapshot()
	for _, id := range resp.ContainersToBeRemovedFromNM {
		// The controller has acknowledged this completion either way; stop
		// re-sending it regardless of whether the container is still being
		// tracked locally.
		l.pending.Remove(id)

		if container, ok := live[id]; ok && container.Status.State.IsTerminal() {
			l.ctx.RemoveContainer(id)
			if err := l.ctx.RemoveFromStateStore(id); err != nil {
				heartbeatLogger := log.WithComponent("heartbeat")
				heartbeatLogger.Warn().Err(err).Str("container_id", id.String()).Msg("state store removal failed")
			}
		}
	}

	if !l.missed {
		l.pending.Clear()
	} else {
		l.missed = false
		heartbeatLogger := log.WithComponent("heartbeat")
		heartbeatLogger.Info().Msg("recovered from missed heartbeat, pending completions retained")
	}
	l.lastHeartbeatID = resp.ResponseID
	l.state.Store(int32(StateConnected))

	l.dispatcher.Dispatch(resp)

	if resp.ContainerQueuingLimit != nil {
		l.ctx.UpdateQueuingLimit(*resp.ContainerQueuingLimit)
	}

	if resp.Resource != nil {
		metrics.NodeAdvertisedMemoryMiB.Set(float64(resp.Resource.MemoryMiB))
		metrics.NodeAdvertisedVCores.Set(float64(resp.Resource.VCores))
	}

	if l.cfg.TimelineV2Enabled && len(resp.AppCollectors) > 0 {
		accepted := l.collectors.Merge(resp.AppCollectors)
		for appID, data := range accepted {
			l.dispatcher.broker.Publish(&events.Event{
				Type:     events.CMgrCollectorAddressUpdated,
				Message:  "collector address updated",
				Metadata: map[string]string{"application_id": string(appID), "collector_addr": data.Addr},
			})
		}
	}

	applications := l.ctx.ApplicationSnapshot()
	l.stopped.GC(now, func(id types.ContainerID) bool {
		_, stillLive := l.ctx.ContainerSnapshot()[id]
		return stillLive
	}, func(appID types.ApplicationID) bool {
		app, ok := applications[appID]
		return !ok || app.Phase.IsStopped()
	})

	metrics.RecentlyStoppedCacheSize.Set(float64(l.stopped.Len()))
	metrics.PendingCompletionsSize.Set(float64(l.pending.Len()))
	metrics.ContainersByState.Reset()
	for _, c := range l.ctx.ContainerSnapshot() {
		metrics.ContainersByState.WithLabelValues(string(c.Status.State)).Inc()
	}
	if len(req.NodeStatus.KeepAliveApplications) > 0 {
		metrics.KeepAliveSentTotal.Add(float64(len(req.NodeStatus.KeepAliveApplications)))
	}
	if !resp.AreNodeLabelsAccepted && len(req.NodeLabels) > 0 {
		metrics.NodeLabelsRejectedTotal.Inc()
	}

	return nil, nil
}

func actionPtr(a types.NodeAction) *types.NodeAction { return &a }

// NewConnectExhaustedError wraps err as a connect-exhaustion failure. It is
// a thin re-export of rpc.NewConnectExhaustedError, kept here so callers
// and tests within this package don't need to reach into internal/rpc
// directly to construct one.
func NewConnectExhaustedError(err error) error {
	return rpc.NewConnectExhaustedError(err)
}

// isConnectExhausted reports whether err is the connect-exhaustion failure
// the transport (internal/rpc.Client) reports once its Unavailable retry
// budget is spent.
func isConnectExhausted(err error) bool {
	return rpc.IsConnectExhausted(err)
}
