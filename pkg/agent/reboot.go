package agent

import (
	"context"
	"fmt"

	"github.com/forgemesh/nodeagent/pkg/log"
	"github.com/forgemesh/nodeagent/pkg/types"
)

// SendOutOfBandHeartBeat wakes the heartbeat loop ahead of its scheduled
// interval. Callers reporting a fatal health condition and the reboot
// sequence both use this instead of waiting out the remainder of the
// current interval.
func (a *Agent) SendOutOfBandHeartBeat() {
	a.shutdownMu.Lock()
	loop := a.loop
	a.shutdownMu.Unlock()
	if loop != nil {
		loop.WakeUp()
	}
}

// Reboot tears down the current heartbeat loop and re-registers from
// scratch, holding the shutdown monitor for the duration: stop the running
// loop, wake and join it, re-register with the controller, start a fresh
// loop, then clear the recently-stopped cache.
func (a *Agent) Reboot(ctx context.Context, existing []types.ContainerStatus, runningApps []types.ApplicationID) error {
	a.shutdownMu.Lock()
	defer a.shutdownMu.Unlock()

	if a.stoppedForGood {
		return nil
	}

	logger := log.WithComponent("agent").With().Str("node_id", a.cfg.NodeID.String()).Logger()
	logger.Warn().Msg("rebooting node status updater")

	if a.loop != nil {
		a.loop.WakeUp()
		a.loop.Stop()
		a.loop = nil
	}
	if a.lifecycle != nil {
		a.lifecycle.stop()
		a.lifecycle = nil
	}

	regCtx, cancel := context.WithTimeout(ctx, RegistrationTimeout)
	result, err := a.registrar.Register(regCtx, a.cfg, a.totalResource, existing, runningApps)
	cancel()
	if err != nil {
		return fmt.Errorf("reboot: re-registration failed: %w", err)
	}

	a.totalResource = result.TotalResource
	a.registered = true
	a.loop = NewLoop(a.cfg, a.tracker, a.ctx, a.collector, a.labels, a.dispatcher, a.stopped, a.pending, a.collectors, a.containerTokenKeys, a.nodeTokenKeys, result.RMIdentifier)
	a.lifecycle = startLoop(ctx, a.loop)
	lifecycle := a.lifecycle
	go a.awaitLoop(lifecycle)

	a.stopped.Clear()
	logger.Info().Int64("rm_identifier", result.RMIdentifier).Msg("reboot complete")
	return nil
}
