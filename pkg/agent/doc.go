/*
Package agent implements the node status updater: the agent running on a
worker node that registers it with the cluster controller and sustains a
periodic heartbeat conversation reporting container and node state, while
applying the directives the controller sends back.

# Architecture

	┌──────────────────── NODE STATUS UPDATER ───────────────────┐
	│                                                              │
	│  ┌──────────────┐     once      ┌──────────────────────┐  │
	│  │  Registrar   │──────────────▶│  ResourceTracker RPC  │  │
	│  └──────────────┘               └───────────┬──────────┘  │
	│                                              │              │
	│  ┌──────────────────────────────────────────▼───────────┐ │
	│  │                  Heartbeat Loop                       │ │
	│  │  - one dedicated goroutine, CONNECTED/MISSED/         │ │
	│  │    STOPPED/FAILED                                     │ │
	│  │  - interval wait with out-of-band wakeup              │ │
	│  └──────┬─────────────────┬─────────────────┬───────────┘ │
	│         │                 │                 │              │
	│  ┌──────▼──────┐  ┌──────▼───────┐  ┌──────▼──────────┐  │
	│  │StatusCollector│  │ Dispatcher   │  │  Labels Handler │  │
	│  │ stopped cache│  │ -> local bus │  │  centralized /   │  │
	│  │ pending buf  │  │              │  │  distributed     │  │
	│  │ keep-alive   │  └──────────────┘  └──────────────────┘  │
	│  └──────────────┘                                           │
	└──────────────────────────────────────────────────────────┘

# Core Components

Agent:
  - Owns the lifecycle: Init, Start, Stop, Reboot
  - Constructs and wires every collaborator below

Registrar:
  - One-shot handshake: sends node identity and capacity, receives the
    controller epoch (rmIdentifier), initial master keys, and any resource
    override
  - Enforces the minimum-controller-version gate

Loop:
  - The heartbeat state machine; the only goroutine that mutates
    lastHeartbeatId, missed, nextInterval and rmIdentifier outside
    registration/reboot
  - Out-of-band wakeup via a non-blocking buffered channel in place of a
    monitor wait/notify pair

StatusCollector:
  - Builds one NodeStatus snapshot per tick from the Context, folding
    completed containers into the recently-stopped cache and pending
    completion buffer

RecentlyStoppedCache:
  - Insertion-ordered suppression of duplicate completion notices, garbage
    collected from the oldest end under a monotonic-expiry invariant

PendingCompletionBuffer:
  - Holds completion reports until a heartbeat round-trips without being
    missed; serialized entirely by the loop goroutine, so it carries no
    lock of its own

KeepAliveTracker:
  - Jittered re-send schedule for applications relying on extended system
    credential lifetimes, active only when log aggregation and security
    are both enabled

LabelsHandler:
  - CentralizedLabelsHandler: a no-op, for clusters where labels are
    assigned by the controller
  - DistributedLabelsHandler: detects local label changes, honors a resync
    interval, and validates label syntax before sending

MasterKeyManager:
  - Holds the active container/node token master key and seals/opens
    payloads with it

CollectorRegistry:
  - Merges timeline-v2 collector address assignments under a
    happens-before ordering so a stale assignment never overwrites a
    newer one

Dispatcher:
  - Pure translator from heartbeat-response fields to events on the local
    bus; carries no state of its own

# Lifecycle

Init reads configuration, lets resource plugins amend total capacity,
builds the node-labels handler, and validates the stopped-container
retention duration.

Start registers with the controller and launches the heartbeat loop; it
runs last in the enclosing process, once the node's identity is known.

Stop acquires the shutdown monitor, stops the loop, sends
unregisterNodeManager iff the node was registered, not already stopped,
not under supervised recovery, not decommissioned, and did not fail to
connect, then tears down the transport.

Reboot also holds the shutdown monitor: stop the running loop, join it,
re-register from scratch, start a fresh loop, and clear the
recently-stopped cache.

# Design Patterns

Capability Tables Instead of Inheritance:
  - Context, LabelsHandler, SecretManager and ResourcePlugin are narrow
    interfaces the containing process implements; this package never
    reaches into a concrete containment-subsystem type

Single-Writer Discipline:
  - The loop goroutine is the sole mutator of the fields spec 5 names;
    registration and reboot mutate them only while holding the shutdown
    monitor, never concurrently with a running loop

Non-Blocking Wakeup:
  - WakeUp uses a buffered channel with a select/default send so a wakeup
    that has not yet been consumed is never duplicated and never blocks
    the caller

# Troubleshooting

Loop stuck in StateMissed:
  - Check controller reachability and TLS certificate validity
  - The loop keeps retrying at the last known interval; it only gives up
    once the transport itself reports connect-retry exhaustion

Pending completions never clearing:
  - A tick that round-trips but continues to have missed set true will not
    clear the pending buffer; check for a stuck MISSED state upstream

Labels repeatedly rejected:
  - DistributedLabelsHandler rejects a label set with any name failing the
    accepted name pattern and sends no labels that round, so the controller
    keeps its previous accepted set; check the label provider's output
*/
package agent
