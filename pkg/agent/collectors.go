package agent

import (
	"sync"

	"github.com/forgemesh/nodeagent/pkg/types"
)

// CollectorRegistry tracks the timeline-service-v2 collector address
// known for each application, and the set of applications this node is
// still waiting to hear an assignment for.
//
// Merge only accepts an incoming assignment when it happens-before (i.e.
// is strictly newer than) the one already known, so a stale heartbeat
// response delivered out of order cannot roll an application's collector
// back to an earlier address.
type CollectorRegistry struct {
	mu         sync.Mutex
	known      map[types.ApplicationID]types.CollectorData
	registering map[types.ApplicationID]bool
}

// NewCollectorRegistry returns an empty registry.
func NewCollectorRegistry() *CollectorRegistry {
	return &CollectorRegistry{
		known:       make(map[types.ApplicationID]types.CollectorData),
		registering: make(map[types.ApplicationID]bool),
	}
}

// MarkRegistering records that this node is awaiting a collector address
// for appID; it is included in the next heartbeat's registeringCollectors
// field until Merge accepts an assignment for it.
func (r *CollectorRegistry) MarkRegistering(appID types.ApplicationID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registering[appID] = true
}

// Registering returns every application still awaiting a collector
// assignment.
func (r *CollectorRegistry) Registering() map[types.ApplicationID]types.CollectorData {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[types.ApplicationID]types.CollectorData, len(r.registering))
	for id := range r.registering {
		out[id] = r.known[id]
	}
	return out
}

// Merge applies incoming collector assignments, accepting only those that
// happen after what is already known. It returns the set of applications
// whose known collector actually changed, for the caller to publish.
func (r *CollectorRegistry) Merge(incoming map[types.ApplicationID]types.CollectorData) map[types.ApplicationID]types.CollectorData {
	r.mu.Lock()
	defer r.mu.Unlock()

	accepted := make(map[types.ApplicationID]types.CollectorData)
	for appID, data := range incoming {
		current, exists := r.known[appID]
		if exists && !current.HappensBefore(data) {
			continue
		}
		r.known[appID] = data
		accepted[appID] = data
		delete(r.registering, appID)
	}
	return accepted
}
