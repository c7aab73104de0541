package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/forgemesh/nodeagent/internal/rpc"
	"github.com/forgemesh/nodeagent/pkg/events"
	"github.com/forgemesh/nodeagent/pkg/types"
)

func newTestLoop(tracker *fakeTracker) (*Loop, *fakeContext, *events.Broker) {
	ctx := newFakeContext()
	broker := events.NewBroker()
	broker.Start()
	dispatcher := NewDispatcher(broker, NewMasterKeyManager(), NewKeepAliveTracker(true, time.Minute))
	stopped := NewRecentlyStoppedCache(time.Minute)
	pending := NewPendingCompletionBuffer()
	collector := NewStatusCollector(ctx, stopped, pending, NewKeepAliveTracker(false, time.Minute))
	loop := NewLoop(Config{}, tracker, ctx, collector, NewCentralizedLabelsHandler(), dispatcher, stopped, pending, NewCollectorRegistry(), NewMasterKeyManager(), NewMasterKeyManager(), 1)
	return loop, ctx, broker
}

func TestLoopTickAdvancesResponseID(t *testing.T) {
	tracker := &fakeTracker{heartbeatResp: &rpc.HeartbeatResponse{ResponseID: 5, Action: types.NodeActionNormal}}
	loop, _, broker := newTestLoop(tracker)
	defer broker.Stop()

	action, err := loop.tick(context.Background())
	if err != nil {
		t.Fatalf("tick() error = %v", err)
	}
	if action != nil {
		t.Fatalf("expected nil action for a NORMAL response, got %v", *action)
	}
	if loop.lastHeartbeatID != 5 {
		t.Errorf("lastHeartbeatID = %d, want 5", loop.lastHeartbeatID)
	}
	if loop.State() != StateConnected {
		t.Errorf("State() = %v, want StateConnected", loop.State())
	}
}

func TestLoopTickShutdownDirective(t *testing.T) {
	tracker := &fakeTracker{heartbeatResp: &rpc.HeartbeatResponse{Action: types.NodeActionShutdown, DiagnosticsMessage: "decommissioning"}}
	loop, ctx, broker := newTestLoop(tracker)
	defer broker.Stop()

	sub := broker.Subscribe()
	action, err := loop.tick(context.Background())
	if err != nil {
		t.Fatalf("tick() error = %v", err)
	}
	if action == nil || *action != types.NodeActionShutdown {
		t.Fatalf("action = %v, want SHUTDOWN", action)
	}
	if !ctx.Decommissioned() {
		t.Error("SHUTDOWN should mark the context decommissioned")
	}

	select {
	case evt := <-sub:
		if evt.Type != events.NodeManagerShutdown {
			t.Errorf("event type = %s, want %s", evt.Type, events.NodeManagerShutdown)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for shutdown event")
	}
}

func TestLoopTickResyncDirectiveInvalidatesRMIdentifier(t *testing.T) {
	tracker := &fakeTracker{heartbeatResp: &rpc.HeartbeatResponse{Action: types.NodeActionResync}}
	loop, _, broker := newTestLoop(tracker)
	defer broker.Stop()

	action, err := loop.tick(context.Background())
	if err != nil {
		t.Fatalf("tick() error = %v", err)
	}
	if action == nil || *action != types.NodeActionResync {
		t.Fatalf("action = %v, want RESYNC", action)
	}
	if loop.RMIdentifier() != InvalidRMIdentifier {
		t.Errorf("RMIdentifier() = %d, want InvalidRMIdentifier", loop.RMIdentifier())
	}
}

func TestLoopTickAppliesControllerInterval(t *testing.T) {
	tracker := &fakeTracker{heartbeatResp: &rpc.HeartbeatResponse{NextHeartBeatIntervalMs: 2500}}
	loop, _, broker := newTestLoop(tracker)
	defer broker.Stop()

	if _, err := loop.tick(context.Background()); err != nil {
		t.Fatalf("tick() error = %v", err)
	}
	if loop.nextInterval != 2500*time.Millisecond {
		t.Errorf("nextInterval = %v, want 2500ms", loop.nextInterval)
	}
}

func TestLoopTickZeroIntervalFallsBackToDefault(t *testing.T) {
	tracker := &fakeTracker{heartbeatResp: &rpc.HeartbeatResponse{NextHeartBeatIntervalMs: 0}}
	loop, _, broker := newTestLoop(tracker)
	defer broker.Stop()

	if _, err := loop.tick(context.Background()); err != nil {
		t.Fatalf("tick() error = %v", err)
	}
	if loop.nextInterval != DefaultHeartbeatInterval {
		t.Errorf("nextInterval = %v, want default %v", loop.nextInterval, DefaultHeartbeatInterval)
	}
}

func TestLoopRunStopsOnExternalStop(t *testing.T) {
	tracker := &fakeTracker{heartbeatResp: &rpc.HeartbeatResponse{Action: types.NodeActionNormal}}
	loop, _, broker := newTestLoop(tracker)
	defer broker.Stop()
	loop.nextInterval = time.Hour

	done := make(chan *types.NodeAction, 1)
	go func() { done <- loop.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	loop.Stop()

	select {
	case action := <-done:
		if action != nil {
			t.Errorf("Run() returned %v, want nil after Stop()", *action)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after Stop()")
	}
	if loop.State() != StateStopped {
		t.Errorf("State() = %v, want StateStopped", loop.State())
	}
}

func TestLoopRunReturnsShutdownOnConnectExhaustion(t *testing.T) {
	tracker := &fakeTracker{heartbeatErr: NewConnectExhaustedError(errors.New("no route to controller"))}
	loop, _, broker := newTestLoop(tracker)
	defer broker.Stop()

	action := loop.Run(context.Background())
	if action == nil || *action != types.NodeActionShutdown {
		t.Fatalf("Run() = %v, want SHUTDOWN action", action)
	}
	if loop.State() != StateFailed {
		t.Errorf("State() = %v, want StateFailed", loop.State())
	}
}

func TestLoopRunRetriesOnTransientFailure(t *testing.T) {
	tracker := &fakeTracker{}
	loop, _, broker := newTestLoop(tracker)
	defer broker.Stop()
	loop.nextInterval = time.Millisecond

	// Fail once, then succeed with a NORMAL response, then stop.
	tracker.setHeartbeat(nil, errors.New("transient"))

	go func() {
		time.Sleep(10 * time.Millisecond)
		tracker.setHeartbeat(&rpc.HeartbeatResponse{Action: types.NodeActionNormal}, nil)
		time.Sleep(10 * time.Millisecond)
		loop.Stop()
	}()

	loop.Run(context.Background())
	if callCount := tracker.calls(); callCount < 2 {
		t.Errorf("expected at least 2 heartbeat attempts, got %d", callCount)
	}
}

func TestLoopWakeUpIsNonBlockingAndNotDuplicated(t *testing.T) {
	tracker := &fakeTracker{}
	loop, _, broker := newTestLoop(tracker)
	defer broker.Stop()

	loop.WakeUp()
	loop.WakeUp() // must not block even though the first wake is unconsumed

	select {
	case <-loop.wake:
	default:
		t.Fatal("expected a pending wake signal")
	}
	select {
	case <-loop.wake:
		t.Fatal("second WakeUp() should not have queued a duplicate signal")
	default:
	}
}

func TestIsConnectExhausted(t *testing.T) {
	plain := errors.New("plain failure")
	if isConnectExhausted(plain) {
		t.Error("a plain error should not be reported as connect-exhausted")
	}

	wrapped := NewConnectExhaustedError(plain)
	if !isConnectExhausted(wrapped) {
		t.Error("a connectExhaustedError should be reported as connect-exhausted")
	}
}
