// Package storage persists the node status updater's completion
// tombstones. It does not persist the container catalogue itself -- that
// stays owned by the containment subsystem's in-memory map -- only the
// fact that a given container ID has already been reported COMPLETE and
// listed by the controller for removal.
package storage

import "github.com/forgemesh/nodeagent/pkg/types"

// CompletionStore is the nmStateStore capability described in spec.md
// section 6: RemoveFromStateStore annotates it, nothing else in this
// repository mutates it.
type CompletionStore interface {
	// Tombstone records id as reported-complete and no longer replayable.
	Tombstone(id types.ContainerID) error

	// IsTombstoned reports whether id was already recorded complete,
	// including by an earlier process instance. Nothing in this repository
	// calls it outside its tests: registration sends the existing container
	// reports its caller passes without consulting it.
	IsTombstoned(id types.ContainerID) (bool, error)

	// Close releases the underlying database handle.
	Close() error
}
