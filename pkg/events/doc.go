/*
Package events provides the in-memory event broker the node status
updater's dispatch adapter publishes onto: a lightweight, non-blocking
pub/sub bus that decouples the heartbeat loop from whatever local
component reacts to a controller directive.

# Architecture

	Heartbeat Loop → Dispatch Adapter → Broker.Publish → broadcast loop
	                                                          │
	                                             ┌────────────┴────────────┐
	                                             ▼                         ▼
	                                     containment subsystem      metrics / audit

Publish never blocks the heartbeat loop: the broker's intake channel is
buffered (100), and a full subscriber buffer (50) causes that subscriber to
skip the event rather than stall the broadcast loop.

# Event Types

  - CMgrCompletedContainers / CMgrCompletedApps: the controller's cleanup
    lists from a heartbeat response, translated 1:1 by the dispatch
    adapter.
  - CMgrUpdateContainers / CMgrSignalContainers: controller-driven
    container updates and signal requests.
  - CMgrInstallSystemCredentials: fresh per-application system credentials
    to unseal and install, published by the dispatch adapter once per
    application rather than as a 1:1 list translation.
  - CMgrCollectorAddressUpdated: a timeline-service-v2 collector address
    the controller accepted for an application, published once per
    application from the heartbeat loop's AppCollectors handling.
  - NodeManagerShutdown / NodeManagerResync: the two directives that end
    the current heartbeat loop iteration; see pkg/agent for how each is
    handled.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for ev := range sub {
			switch ev.Type {
			case events.NodeManagerShutdown:
				// stop accepting new work
			case events.CMgrCompletedContainers:
				// forward ev.Metadata["container_ids"] to the runtime
			}
		}
	}()

# Design Notes

Fire-and-forget, no acknowledgment, no persistence: the controller is the
source of truth and will repeat any directive the node agent misses on its
next heartbeat, so the broker optimizes for never blocking the loop over
guaranteed delivery.
*/
package events
