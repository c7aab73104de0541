/*
Package types defines the data model shared by the node status updater and
the collaborators it reads from: node identity and resources, container
identity and status, application phase, and the rotating security keys
installed by the controller.

# Core Types

Node identity and capacity:
  - NodeID: stable host:port identifier, immutable after start
  - Resource: (memoryMiB, vCores) pair; tracked as both advertised
    (totalResource) and physical (immutable) capacity
  - Utilization: a point-in-time usage reading for a container set or node

Containers and applications:
  - ContainerID: {applicationAttemptID, sequence}, ordered via Less
  - ContainerState: NEW, LOCALIZED, RUNNING, COMPLETE, FAILED
  - ContainerStatus: a container's reported state, exit code and diagnostics
  - ApplicationPhase: RUNNING through the terminal cleanup phases; IsStopped
    reports whether a COMPLETE container belonging to the application may
    be evicted from the live container map
  - OpportunisticSummary: opportunistic/guaranteed queue depths attached to
    every outgoing NodeStatus

Security and protocol:
  - SecurityKey: an opaque rotating master key with a key ID
  - NodeAction: NORMAL, SHUTDOWN, RESYNC
  - SignalContainerRequest, ContainerQueuingLimit: heartbeat-response
    payloads forwarded to the containment subsystem
  - CollectorData: a timeline-v2 collector address with a HappensBefore
    ordering used to decide whether an incoming assignment should replace
    the one currently known for an application

# Ownership

Container and Application values are read-only snapshots from the
perspective of this package: the containment subsystem owns the live maps
and the locking discipline around them. ContainerStatus.Clone exists so a
caller can safely hand a copy across a package boundary without extending
the live map's lock scope.
*/
package types
