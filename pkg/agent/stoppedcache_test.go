package agent

import (
	"testing"
	"time"

	"github.com/forgemesh/nodeagent/pkg/types"
)

func id(seq int64) types.ContainerID {
	return types.ContainerID{ApplicationAttemptID: "app_0001", Sequence: seq}
}

const testAppID types.ApplicationID = "application_0001_0001"

var allAppsStopped = func(types.ApplicationID) bool { return true }
var noAppsStopped = func(types.ApplicationID) bool { return false }

func TestRecentlyStoppedCacheAddContains(t *testing.T) {
	c := NewRecentlyStoppedCache(time.Minute)
	now := time.Now()

	c.Add(id(1), testAppID, now)
	if !c.Contains(id(1)) {
		t.Fatal("expected id(1) to be present after Add")
	}
	if c.Contains(id(2)) {
		t.Fatal("id(2) should not be present")
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
}

func TestRecentlyStoppedCacheAddIsIdempotent(t *testing.T) {
	c := NewRecentlyStoppedCache(time.Minute)
	now := time.Now()

	c.Add(id(1), testAppID, now)
	c.Add(id(1), testAppID, now.Add(time.Second))

	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after duplicate Add", c.Len())
	}
}

func TestRecentlyStoppedCacheGCStopsAtFirstFutureEntry(t *testing.T) {
	c := NewRecentlyStoppedCache(10 * time.Millisecond)
	base := time.Now()

	c.Add(id(1), testAppID, base)
	c.Add(id(2), testAppID, base.Add(5*time.Millisecond))
	c.Add(id(3), testAppID, base.Add(200*time.Millisecond))

	c.GC(base.Add(100*time.Millisecond), func(types.ContainerID) bool { return false }, allAppsStopped)

	if c.Contains(id(1)) {
		t.Error("id(1) should have been evicted")
	}
	if c.Contains(id(2)) {
		t.Error("id(2) should have been evicted")
	}
	if !c.Contains(id(3)) {
		t.Error("id(3) should be retained: expiry is still in the future")
	}
}

func TestRecentlyStoppedCacheGCSkipsIneligibleEntriesButKeepsScanning(t *testing.T) {
	c := NewRecentlyStoppedCache(10 * time.Millisecond)
	base := time.Now()

	c.Add(id(1), testAppID, base)
	c.Add(id(2), testAppID, base.Add(5*time.Millisecond))
	c.Add(id(3), testAppID, base.Add(5*time.Millisecond))

	// id(2) is still "live", so it must be skipped, but id(1) and id(3)
	// (same or earlier expiry) must still be collected -- a live entry at
	// the front no longer ends the scan.
	isLive := func(cid types.ContainerID) bool { return cid == id(2) }

	c.GC(base.Add(100*time.Millisecond), isLive, allAppsStopped)

	if c.Contains(id(1)) {
		t.Error("id(1) should have been evicted")
	}
	if !c.Contains(id(2)) {
		t.Error("id(2) should be retained: still live")
	}
	if c.Contains(id(3)) {
		t.Error("id(3) should have been evicted despite id(2) being skipped ahead of it")
	}
}

func TestRecentlyStoppedCacheGCRetainsEntryWhoseApplicationHasNotStopped(t *testing.T) {
	c := NewRecentlyStoppedCache(10 * time.Millisecond)
	base := time.Now()

	c.Add(id(1), testAppID, base)

	notLive := func(types.ContainerID) bool { return false }

	c.GC(base.Add(100*time.Millisecond), notLive, noAppsStopped)
	if !c.Contains(id(1)) {
		t.Error("entry should be retained: owning application has not stopped")
	}

	c.GC(base.Add(100*time.Millisecond), notLive, allAppsStopped)
	if c.Contains(id(1)) {
		t.Error("entry should now be evicted: not live and application stopped")
	}
}

func TestRecentlyStoppedCacheGCNoEligibleEntries(t *testing.T) {
	c := NewRecentlyStoppedCache(time.Hour)
	now := time.Now()
	c.Add(id(1), testAppID, now)

	c.GC(now, func(types.ContainerID) bool { return false }, allAppsStopped)

	if !c.Contains(id(1)) {
		t.Error("entry not yet expired should be retained")
	}
}

func TestRecentlyStoppedCacheClear(t *testing.T) {
	c := NewRecentlyStoppedCache(time.Minute)
	now := time.Now()
	c.Add(id(1), testAppID, now)
	c.Add(id(2), testAppID, now)

	c.Clear()

	if c.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after Clear", c.Len())
	}
	if c.Contains(id(1)) {
		t.Error("id(1) should not be present after Clear")
	}
}
