// Package rpc defines the controller-facing wire contract the node status
// updater consumes as the ResourceTracker capability, and a concrete gRPC
// transport for it.
package rpc

import (
	"github.com/forgemesh/nodeagent/pkg/types"
)

// RegisterRequest is sent once at startup.
type RegisterRequest struct {
	NodeID                   types.NodeID
	HTTPPort                 int
	TotalResource            types.Resource
	PhysicalResource         types.Resource
	NodeManagerVersion       string
	ExistingContainerReports []types.ContainerStatus
	RunningApplicationIDs    []types.ApplicationID
	NodeLabels               []string
}

// RegisterResponse is the controller's reply to RegisterRequest.
type RegisterResponse struct {
	RMIdentifier            int64
	RMVersion               string
	Action                  types.NodeAction
	DiagnosticsMessage      string
	ContainerTokenMasterKey *types.SecurityKey
	NodeTokenMasterKey      *types.SecurityKey
	Resource                *types.Resource
	AreNodeLabelsAccepted   bool
}

// HeartbeatRequest is sent once per heartbeat tick.
type HeartbeatRequest struct {
	LastResponseID          int64
	NodeStatus              NodeStatus
	ContainerTokenMasterKey *types.SecurityKey
	NodeTokenMasterKey      *types.SecurityKey
	NodeLabels              []string
	RegisteringCollectors   map[types.ApplicationID]types.CollectorData
	LogAggregationReports   []byte
}

// NodeStatus is the per-tick status snapshot built by the status
// collector.
type NodeStatus struct {
	ResponseID            int64
	Health                types.HealthStatus
	ContainerStatuses     []types.ContainerStatus
	IncreasedContainers   []types.ContainerStatus
	ContainersUtilization types.Utilization
	NodeUtilization       types.Utilization
	KeepAliveApplications []types.ApplicationID
	Opportunistic         types.OpportunisticSummary
}

// HeartbeatResponse is the controller's reply to HeartbeatRequest.
type HeartbeatResponse struct {
	ResponseID                  int64
	Action                      types.NodeAction
	DiagnosticsMessage          string
	NextHeartBeatIntervalMs     int64
	ContainersToCleanup         []types.ContainerID
	ApplicationsToCleanup       []types.ApplicationID
	ContainersToBeRemovedFromNM []types.ContainerID
	ContainersToUpdate          []types.ContainerStatus
	ContainersToSignal          []types.SignalContainerRequest
	SystemCredentialsForApps    map[types.ApplicationID][]byte
	AppCollectors               map[types.ApplicationID]types.CollectorData
	ContainerQueuingLimit       *types.ContainerQueuingLimit
	ContainerTokenMasterKey     *types.SecurityKey
	NodeTokenMasterKey          *types.SecurityKey
	Resource                    *types.Resource
	AreNodeLabelsAccepted       bool
}

// UnregisterRequest is sent once, best-effort, at clean shutdown.
type UnregisterRequest struct {
	NodeID types.NodeID
}
