package agent

import (
	"time"

	"github.com/forgemesh/nodeagent/internal/rpc"
	"github.com/forgemesh/nodeagent/pkg/types"
)

// StatusCollector builds one NodeStatus snapshot per heartbeat tick.
type StatusCollector struct {
	ctx      Context
	stopped  *RecentlyStoppedCache
	pending  *PendingCompletionBuffer
	keepAlive *KeepAliveTracker
}

// NewStatusCollector wires a collector to its collaborators.
func NewStatusCollector(ctx Context, stopped *RecentlyStoppedCache, pending *PendingCompletionBuffer, keepAlive *KeepAliveTracker) *StatusCollector {
	return &StatusCollector{ctx: ctx, stopped: stopped, pending: pending, keepAlive: keepAlive}
}

// Collect builds the NodeStatus for the given responseID, the same one
// echoed back from the last acknowledged heartbeat.
func (c *StatusCollector) Collect(now time.Time, responseID int64) rpc.NodeStatus {
	containers := c.ctx.ContainerSnapshot()
	applications := c.ctx.ApplicationSnapshot()

	statuses := make([]types.ContainerStatus, 0, len(containers))
	for id, container := range containers {
		status := container.Status.Clone()

		if status.State == types.ContainerStateComplete {
			c.pending.Put(status)
			c.stopped.Add(id, container.ApplicationID, now)

			if app, ok := applications[container.ApplicationID]; ok && app.Phase.IsStopped() {
				c.ctx.RemoveContainer(id)
			}
			continue
		}

		statuses = append(statuses, status)
	}

	statuses = append(statuses, c.pending.All()...)

	return rpc.NodeStatus{
		ResponseID:            responseID,
		Health:                c.ctx.HealthStatus(),
		ContainerStatuses:     statuses,
		IncreasedContainers:   c.ctx.DrainIncreasedContainers(),
		ContainersUtilization: c.ctx.ContainerUtilization(),
		NodeUtilization:       c.ctx.NodeUtilization(),
		KeepAliveApplications: c.keepAlive.Tick(now, applications),
		Opportunistic:         c.ctx.OpportunisticStatus(),
	}
}
