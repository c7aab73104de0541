package agent

import (
	"context"
	"sync"
	"time"

	"github.com/forgemesh/nodeagent/pkg/health"
	"github.com/forgemesh/nodeagent/pkg/storage"
	"github.com/forgemesh/nodeagent/pkg/types"
)

// LocalState is a reference Context implementation: an in-memory
// container/application map guarded by a single RWMutex, the same
// locking discipline the containment subsystem's own worker uses for its
// container map. Production deployments plug in the real containment
// subsystem's own Context adapter; this one is what cmd/nodeagent wires
// up, and what this package's own tests exercise against.
type LocalState struct {
	mu           sync.RWMutex
	containers   map[types.ContainerID]types.Container
	applications map[types.ApplicationID]types.Application
	increased    []types.ContainerStatus

	utilizationMu     sync.RWMutex
	containerUtil     types.Utilization
	nodeUtil          types.Utilization
	opportunistic     types.OpportunisticSummary
	queuingLimit      types.ContainerQueuingLimit

	healthChecker health.Checker
	healthMu      sync.RWMutex
	lastHealth    types.HealthStatus

	completions storage.CompletionStore

	decommissionedMu sync.RWMutex
	decommissioned   bool
}

// NewLocalState builds an empty reference Context. checker, if non-nil, is
// consulted by HealthStatus; completions, if non-nil, backs
// RemoveFromStateStore with a durable tombstone.
func NewLocalState(checker health.Checker, completions storage.CompletionStore) *LocalState {
	return &LocalState{
		containers:    make(map[types.ContainerID]types.Container),
		applications:  make(map[types.ApplicationID]types.Application),
		healthChecker: checker,
		completions:   completions,
		lastHealth:    types.HealthStatus{Healthy: true, Report: "no health checks run yet", LastReportAt: time.Now()},
	}
}

// PutContainer inserts or replaces a container, mirroring how the
// containment subsystem's own admission path would populate this map.
func (l *LocalState) PutContainer(c types.Container) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.containers[c.Status.ID] = c
}

// PutApplication inserts or replaces an application's tracked phase.
func (l *LocalState) PutApplication(a types.Application) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.applications[a.ID] = a
}

// MarkIncreased records a container as having had its resource
// allocation increased since the last DrainIncreasedContainers call.
func (l *LocalState) MarkIncreased(status types.ContainerStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.increased = append(l.increased, status)
}

// SetUtilization sets the values ContainerUtilization/NodeUtilization
// report.
func (l *LocalState) SetUtilization(container, node types.Utilization) {
	l.utilizationMu.Lock()
	defer l.utilizationMu.Unlock()
	l.containerUtil = container
	l.nodeUtil = node
}

// SetOpportunisticStatus sets the value OpportunisticStatus reports.
func (l *LocalState) SetOpportunisticStatus(s types.OpportunisticSummary) {
	l.utilizationMu.Lock()
	defer l.utilizationMu.Unlock()
	l.opportunistic = s
}

func (l *LocalState) ContainerSnapshot() map[types.ContainerID]types.Container {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[types.ContainerID]types.Container, len(l.containers))
	for k, v := range l.containers {
		out[k] = v
	}
	return out
}

func (l *LocalState) RemoveContainer(id types.ContainerID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.containers, id)
}

func (l *LocalState) ApplicationSnapshot() map[types.ApplicationID]types.Application {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[types.ApplicationID]types.Application, len(l.applications))
	for k, v := range l.applications {
		out[k] = v
	}
	return out
}

func (l *LocalState) DrainIncreasedContainers() []types.ContainerStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	drained := l.increased
	l.increased = nil
	return drained
}

// RemoveFromStateStore tombstones id in the completion store, if one was
// configured. Failures are the caller's to log; per spec 7 this is
// non-fatal.
func (l *LocalState) RemoveFromStateStore(id types.ContainerID) error {
	if l.completions == nil {
		return nil
	}
	return l.completions.Tombstone(id)
}

func (l *LocalState) ContainerUtilization() types.Utilization {
	l.utilizationMu.RLock()
	defer l.utilizationMu.RUnlock()
	return l.containerUtil
}

func (l *LocalState) NodeUtilization() types.Utilization {
	l.utilizationMu.RLock()
	defer l.utilizationMu.RUnlock()
	return l.nodeUtil
}

// HealthStatus runs the configured health.Checker, if any, and converts
// its Result into the whole-node HealthStatus the status collector reads.
// A nil checker returns the last status set (or the initial optimistic
// default), matching a deployment with no health checks configured.
func (l *LocalState) HealthStatus() types.HealthStatus {
	if l.healthChecker == nil {
		l.healthMu.RLock()
		defer l.healthMu.RUnlock()
		return l.lastHealth
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result := l.healthChecker.Check(ctx)

	status := types.HealthStatus{
		Healthy:      result.Healthy,
		Report:       result.Message,
		LastReportAt: result.CheckedAt,
	}

	l.healthMu.Lock()
	l.lastHealth = status
	l.healthMu.Unlock()
	return status
}

func (l *LocalState) OpportunisticStatus() types.OpportunisticSummary {
	l.utilizationMu.RLock()
	defer l.utilizationMu.RUnlock()
	return l.opportunistic
}

func (l *LocalState) UpdateQueuingLimit(limit types.ContainerQueuingLimit) {
	l.utilizationMu.Lock()
	defer l.utilizationMu.Unlock()
	l.queuingLimit = limit
}

// QueuingLimit returns the most recently applied queuing limit, exposed
// for tests and for a real queuing controller to poll.
func (l *LocalState) QueuingLimit() types.ContainerQueuingLimit {
	l.utilizationMu.RLock()
	defer l.utilizationMu.RUnlock()
	return l.queuingLimit
}

func (l *LocalState) Decommissioned() bool {
	l.decommissionedMu.RLock()
	defer l.decommissionedMu.RUnlock()
	return l.decommissioned
}

func (l *LocalState) SetDecommissioned(v bool) {
	l.decommissionedMu.Lock()
	defer l.decommissionedMu.Unlock()
	l.decommissioned = v
}

var _ Context = (*LocalState)(nil)
