package types

import (
	"fmt"
	"time"
)

// NodeID is the opaque, immutable identifier of a worker node: its
// advertised host and the port its local RPC/HTTP endpoint listens on.
type NodeID struct {
	Host string
	Port int
}

func (n NodeID) String() string {
	return fmt.Sprintf("%s:%d", n.Host, n.Port)
}

// Resource is the (memory, vcores) pair tracked for both the advertised
// and physical capacity of a node.
type Resource struct {
	MemoryMiB uint64
	VCores    uint32
}

// Add returns the element-wise sum of two resources.
func (r Resource) Add(o Resource) Resource {
	return Resource{MemoryMiB: r.MemoryMiB + o.MemoryMiB, VCores: r.VCores + o.VCores}
}

// ContainerID identifies a container within an application attempt by a
// monotonic per-attempt sequence number. It is ordered and comparable.
type ContainerID struct {
	ApplicationAttemptID string
	Sequence             int64
}

func (c ContainerID) String() string {
	return fmt.Sprintf("%s_%06d", c.ApplicationAttemptID, c.Sequence)
}

// Less orders container IDs first by application attempt, then by
// sequence, matching insertion order within one attempt.
func (c ContainerID) Less(o ContainerID) bool {
	if c.ApplicationAttemptID != o.ApplicationAttemptID {
		return c.ApplicationAttemptID < o.ApplicationAttemptID
	}
	return c.Sequence < o.Sequence
}

// ApplicationID identifies the application a container belongs to.
type ApplicationID string

// ContainerState is the lifecycle state of a single container as observed
// by the containment subsystem.
type ContainerState string

const (
	ContainerStateNew       ContainerState = "NEW"
	ContainerStateLocalized ContainerState = "LOCALIZED"
	ContainerStateRunning   ContainerState = "RUNNING"
	ContainerStateComplete  ContainerState = "COMPLETE"
	ContainerStateFailed    ContainerState = "FAILED"
)

// IsTerminal reports whether a container state will not transition further.
func (s ContainerState) IsTerminal() bool {
	return s == ContainerStateComplete || s == ContainerStateFailed
}

// ApplicationPhase is the lifecycle phase of an application attempt, as
// tracked by the containment subsystem. Only the terminal phases matter to
// the status updater, which uses them to decide when a completed container
// may be evicted from the live container map.
type ApplicationPhase string

const (
	ApplicationPhaseRunning                 ApplicationPhase = "RUNNING"
	ApplicationPhaseFinishingContainersWait ApplicationPhase = "FINISHING_CONTAINERS_WAIT"
	ApplicationPhaseResourcesCleaningUp     ApplicationPhase = "APPLICATION_RESOURCES_CLEANINGUP"
	ApplicationPhaseFinished                ApplicationPhase = "FINISHED"
)

// IsStopped reports whether the phase is one of the terminal phases in
// which a COMPLETE container belonging to the application may be dropped
// from the live container map.
func (p ApplicationPhase) IsStopped() bool {
	switch p {
	case ApplicationPhaseFinishingContainersWait, ApplicationPhaseResourcesCleaningUp, ApplicationPhaseFinished:
		return true
	default:
		return false
	}
}

// ContainerStatus is a point-in-time snapshot of one container, as reported
// to the controller.
type ContainerStatus struct {
	ID           ContainerID
	State        ContainerState
	ExitCode     int32
	Diagnostics  string
	Capabilities []string
}

// Clone returns a value copy of the status, safe to hand to a caller that
// does not hold the containment subsystem's lock.
func (s ContainerStatus) Clone() ContainerStatus {
	caps := make([]string, len(s.Capabilities))
	copy(caps, s.Capabilities)
	s.Capabilities = caps
	return s
}

// Container is the subset of containment-subsystem state the status
// updater needs to read: identity, current status and the application it
// belongs to.
type Container struct {
	Status        ContainerStatus
	ApplicationID ApplicationID
}

// Application is the subset of containment-subsystem state needed to
// decide keep-alive scheduling and container eviction.
type Application struct {
	ID    ApplicationID
	Phase ApplicationPhase
}

// OpportunisticSummary is attached to every NodeStatus snapshot describing
// the containment subsystem's opportunistic-container queue.
type OpportunisticSummary struct {
	QueuedOpportunistic int32
	QueuedGuaranteed    int32
	WaitQueueLength     int32
}

// Utilization is a point-in-time resource usage reading, for either the
// whole node or the aggregate of running containers.
type Utilization struct {
	MemoryMiB  uint64
	VCoreUsage float64
}

// HealthStatus mirrors the containment subsystem's nodeHealthStatus
// collaborator: a free-text report, a health flag and the time it was
// last produced.
type HealthStatus struct {
	Healthy      bool
	Report       string
	LastReportAt time.Time
}

// SecurityKey is an opaque rotating master key (container-token or
// node-token) identified by a key ID.
type SecurityKey struct {
	KeyID   int32
	Bytes   []byte
	IssueAt time.Time
}

// NodeAction is the directive a controller response may carry.
type NodeAction string

const (
	NodeActionNormal   NodeAction = "NORMAL"
	NodeActionShutdown NodeAction = "SHUTDOWN"
	NodeActionResync   NodeAction = "RESYNC"
)

// SignalCommand identifies the kind of signal requested for a running
// container via a CMgrSignalContainers event.
type SignalCommand string

const (
	SignalOutputThreadDump SignalCommand = "OUTPUT_THREAD_DUMP"
	SignalGracefulShutdown SignalCommand = "GRACEFUL_SHUTDOWN"
	SignalForcefulShutdown SignalCommand = "FORCEFUL_SHUTDOWN"
)

// SignalContainerRequest is one entry of a containersToSignalList.
type SignalContainerRequest struct {
	ID      ContainerID
	Command SignalCommand
}

// ContainerQueuingLimit is forwarded verbatim to the containment
// subsystem's queuing controller.
type ContainerQueuingLimit struct {
	MaxQueueLength int32
}

// CollectorData is a timeline-service-v2 collector address annotated with
// a version used to decide happens-before ordering against the
// previously known address for the same application.
type CollectorData struct {
	Addr    string
	Version int64
}

// HappensBefore reports whether o is a strictly later collector
// assignment than c, i.e. whether o should replace c in the known-
// collectors map.
func (c CollectorData) HappensBefore(o CollectorData) bool {
	return c.Version < o.Version
}
