package agent

import "github.com/forgemesh/nodeagent/pkg/types"

// PendingCompletionBuffer holds COMPLETE container statuses that must be
// re-reported on every heartbeat until the controller has acknowledged
// them. Per spec it is touched only from the heartbeat loop thread and the
// status collector it calls synchronously, so it carries no lock of its
// own -- the loop's single-writer discipline is the synchronization.
type PendingCompletionBuffer struct {
	entries map[types.ContainerID]types.ContainerStatus
}

// NewPendingCompletionBuffer returns an empty buffer.
func NewPendingCompletionBuffer() *PendingCompletionBuffer {
	return &PendingCompletionBuffer{entries: make(map[types.ContainerID]types.ContainerStatus)}
}

// Put records (or overwrites) a completion pending acknowledgment.
func (b *PendingCompletionBuffer) Put(status types.ContainerStatus) {
	b.entries[status.ID] = status
}

// All returns every pending completion, in no particular order.
func (b *PendingCompletionBuffer) All() []types.ContainerStatus {
	out := make([]types.ContainerStatus, 0, len(b.entries))
	for _, s := range b.entries {
		out = append(out, s)
	}
	return out
}

// Clear drops every pending completion -- called once a heartbeat round
// has been acknowledged without a missed tick in between.
func (b *PendingCompletionBuffer) Clear() {
	b.entries = make(map[types.ContainerID]types.ContainerStatus)
}

// Remove drops a single completion once the controller has acknowledged it
// via containersToBeRemovedFromNM, independent of the blanket Clear that a
// missed heartbeat skips -- otherwise an acked completion keeps being
// re-sent every tick until the next unmissed round.
func (b *PendingCompletionBuffer) Remove(id types.ContainerID) {
	delete(b.entries, id)
}

// Len reports how many completions are still awaiting acknowledgment.
func (b *PendingCompletionBuffer) Len() int {
	return len(b.entries)
}
