package agent

import (
	"container/list"
	"sync"
	"time"

	"github.com/forgemesh/nodeagent/pkg/types"
)

// RecentlyStoppedCache suppresses duplicate completion notices for
// containers the containment subsystem has already forgotten about. It is
// an insertion-ordered mapping from container ID to the epoch millisecond
// at which the entry may be garbage collected.
//
// Entries are appended with a monotonically non-decreasing expiry: the
// retention duration is process-wide, so insertion order and expiry order
// coincide and GC can stop at the first entry still in the future instead
// of scanning the whole cache.
type RecentlyStoppedCache struct {
	mu        sync.Mutex
	order     *list.List // front = oldest
	index     map[types.ContainerID]*list.Element
	retention time.Duration
}

type stoppedEntry struct {
	id            types.ContainerID
	applicationID types.ApplicationID
	expireAt      time.Time
}

// NewRecentlyStoppedCache builds a cache that retains entries for the
// given duration. A negative duration is a configuration error the caller
// must reject before constructing the agent (spec requires
// durationToTrackStoppedContainers >= 0).
func NewRecentlyStoppedCache(retention time.Duration) *RecentlyStoppedCache {
	return &RecentlyStoppedCache{
		order:     list.New(),
		index:     make(map[types.ContainerID]*list.Element),
		retention: retention,
	}
}

// Add records a container as recently stopped, with expiry now+retention.
// Safe to call even if the ID is already present; it is not re-inserted.
// applicationID is retained so GC can gate eviction on the owning
// application also having stopped, even after the container itself has
// left the live map.
func (c *RecentlyStoppedCache) Add(id types.ContainerID, applicationID types.ApplicationID, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.index[id]; exists {
		return
	}

	elem := c.order.PushBack(&stoppedEntry{id: id, applicationID: applicationID, expireAt: now.Add(c.retention)})
	c.index[id] = elem
}

// Contains reports whether id is currently suppressed.
func (c *RecentlyStoppedCache) Contains(id types.ContainerID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.index[id]
	return ok
}

// Len returns the number of entries currently retained.
func (c *RecentlyStoppedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Clear empties the cache, used by the reboot sequence after
// re-registration discards the previous epoch's completion history.
func (c *RecentlyStoppedCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.index = make(map[types.ContainerID]*list.Element)
}

// stillLiveFunc reports whether a container is still present in the live
// container map (GC must not evict an entry whose container is still
// live, even past its nominal expiry).
type stillLiveFunc func(types.ContainerID) bool

// appStoppedFunc reports whether the application owning an entry has
// itself reached a stopped phase (GC must not evict an entry whose
// application is still running, even once the container itself is gone
// from the live map and its expiry has passed).
type appStoppedFunc func(types.ApplicationID) bool

// GC walks every entry from the oldest end and evicts the ones whose
// expiry has passed, whose container is no longer live, and whose
// application has stopped. Insertion order and expiry order coincide, so
// the first entry still in the future ends the scan -- nothing behind it
// can be expired either. An expired entry that fails the live/app-stopped
// gate is skipped rather than ending the scan, since a later, unrelated
// entry can still be eligible.
func (c *RecentlyStoppedCache) GC(now time.Time, isLive stillLiveFunc, isAppStopped appStoppedFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for e := c.order.Front(); e != nil; {
		entry := e.Value.(*stoppedEntry)
		if now.Before(entry.expireAt) {
			return
		}
		next := e.Next()
		if !isLive(entry.id) && isAppStopped(entry.applicationID) {
			c.order.Remove(e)
			delete(c.index, entry.id)
		}
		e = next
	}
}
