package agent

import "github.com/forgemesh/nodeagent/pkg/types"

// Context is the set of capabilities the node status updater reads from
// and occasionally mutates, owned by the containment subsystem that hosts
// this agent. The transport, scheduler and container runtime behind it are
// out of this repository's scope; Context is the narrow seam between them.
//
// Container and application snapshots are plain maps, not live references:
// the containment subsystem's locking discipline governs the original
// data, and a snapshot is this package's only safe way to iterate it
// without extending that lock's scope into a status-collector tick.
type Context interface {
	// ContainerSnapshot returns every container currently known to the
	// containment subsystem, keyed by ID.
	ContainerSnapshot() map[types.ContainerID]types.Container

	// RemoveContainer evicts a completed container from the live map.
	// Per spec this is the only mutation this package makes to
	// containment-subsystem state, and only once the container's
	// application has also reached a stopped phase.
	RemoveContainer(id types.ContainerID)

	// ApplicationSnapshot returns every application currently tracked,
	// keyed by ID.
	ApplicationSnapshot() map[types.ApplicationID]types.Application

	// DrainIncreasedContainers returns and clears the set of containers
	// whose resource allocation increased since the last call.
	DrainIncreasedContainers() []types.ContainerStatus

	// RemoveFromStateStore annotates the local recovery state store so a
	// completed container is not replayed on restart. Failures here are
	// logged, not fatal.
	RemoveFromStateStore(id types.ContainerID) error

	// ContainerUtilization reports aggregate resource usage across all
	// running containers.
	ContainerUtilization() types.Utilization

	// NodeUtilization reports whole-node resource usage.
	NodeUtilization() types.Utilization

	// HealthStatus reports the node's current health as observed by the
	// containment subsystem's health checker.
	HealthStatus() types.HealthStatus

	// OpportunisticStatus reports the containment subsystem's
	// opportunistic-container queue depths.
	OpportunisticStatus() types.OpportunisticSummary

	// UpdateQueuingLimit forwards a controller-provided queuing limit to
	// the containment subsystem's queuing controller.
	UpdateQueuingLimit(limit types.ContainerQueuingLimit)

	// Decommissioned reports whether this node has been told to shut
	// down cooperatively.
	Decommissioned() bool

	// SetDecommissioned records a decommission directive.
	SetDecommissioned(bool)
}

// SecretManager installs a rotating master key. The two instances the
// registrar and heartbeat loop install into -- container-token and
// node-token -- are both this same capability.
type SecretManager interface {
	SetMasterKey(key types.SecurityKey)
}

// ResourcePlugin amends the node's advertised capacity at initialization,
// mirroring a hardware or accelerator plugin discovering extra capacity
// the base detection missed. Concrete plugins are out of scope; only the
// extension point is implemented here.
type ResourcePlugin interface {
	AmendResource(current types.Resource) types.Resource
}
