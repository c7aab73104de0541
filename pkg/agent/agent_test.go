package agent

import (
	"context"
	"testing"
	"time"

	"github.com/forgemesh/nodeagent/internal/rpc"
	"github.com/forgemesh/nodeagent/pkg/types"
)

type addResourcePlugin struct{ extra types.Resource }

func (p addResourcePlugin) AmendResource(current types.Resource) types.Resource {
	return current.Add(p.extra)
}

func TestAgentInitRejectsNegativeRetention(t *testing.T) {
	a := New(Config{StoppedContainersTrackingDuration: -time.Second}, newFakeContext(), &fakeTracker{})
	if err := a.Init(); err == nil {
		t.Fatal("Init() should reject a negative stopped-container retention duration")
	}
}

func TestAgentInitAppliesResourcePlugins(t *testing.T) {
	cfg := Config{
		PhysicalResource: types.Resource{MemoryMiB: 4096, VCores: 2},
		ResourcePlugins:  []ResourcePlugin{addResourcePlugin{extra: types.Resource{MemoryMiB: 1024, VCores: 1}}},
	}
	a := New(cfg, newFakeContext(), &fakeTracker{})
	if err := a.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	want := types.Resource{MemoryMiB: 5120, VCores: 3}
	if a.TotalResource() != want {
		t.Errorf("TotalResource() = %+v, want %+v", a.TotalResource(), want)
	}
}

func TestAgentInitUsesDistributedLabelsWhenProviderSet(t *testing.T) {
	cfg := Config{LabelProvider: func() []string { return []string{"zone-a"} }}
	a := New(cfg, newFakeContext(), &fakeTracker{})
	if err := a.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if _, ok := a.labels.(*DistributedLabelsHandler); !ok {
		t.Errorf("labels = %T, want *DistributedLabelsHandler", a.labels)
	}
}

func TestAgentStartRegistersAndLaunchesLoop(t *testing.T) {
	tracker := &fakeTracker{registerResp: &rpc.RegisterResponse{RMIdentifier: 9, RMVersion: "1.0.0", Action: types.NodeActionNormal}}
	a := New(Config{NodeManagerVersion: "1.0.0"}, newFakeContext(), tracker)
	if err := a.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if err := a.Start(context.Background(), nil, nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	a.shutdownMu.Lock()
	loop := a.loop
	registered := a.registered
	a.shutdownMu.Unlock()

	if !registered {
		t.Error("agent should be marked registered after a successful Start()")
	}
	if loop == nil {
		t.Fatal("Start() should have created a heartbeat loop")
	}
	if loop.RMIdentifier() != 9 {
		t.Errorf("RMIdentifier() = %d, want 9", loop.RMIdentifier())
	}

	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

func TestAgentStartFailsOnRegistrationError(t *testing.T) {
	tracker := &fakeTracker{registerErr: errNotConnected}
	a := New(Config{}, newFakeContext(), tracker)
	if err := a.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if err := a.Start(context.Background(), nil, nil); err == nil {
		t.Fatal("Start() should fail when registration fails")
	}
}

func TestAgentStopUnregistersWhenEligible(t *testing.T) {
	tracker := &fakeTracker{registerResp: &rpc.RegisterResponse{RMIdentifier: 1, RMVersion: "1.0.0"}}
	a := New(Config{}, newFakeContext(), tracker)
	_ = a.Init()
	_ = a.Start(context.Background(), nil, nil)

	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := tracker.unregisterCallCount(); got != 1 {
		t.Errorf("unregisterCallCount() = %d, want 1 for a registered, healthy node", got)
	}
}

func TestAgentStopSkipsUnregisterWhenDecommissioned(t *testing.T) {
	tracker := &fakeTracker{registerResp: &rpc.RegisterResponse{RMIdentifier: 1, RMVersion: "1.0.0"}}
	ctx := newFakeContext()
	ctx.SetDecommissioned(true)
	a := New(Config{}, ctx, tracker)
	_ = a.Init()
	_ = a.Start(context.Background(), nil, nil)

	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := tracker.unregisterCallCount(); got != 0 {
		t.Errorf("unregisterCallCount() = %d, want 0 for a decommissioned node", got)
	}
}

func TestAgentStopSkipsUnregisterWhenSupervisedRecovery(t *testing.T) {
	tracker := &fakeTracker{registerResp: &rpc.RegisterResponse{RMIdentifier: 1, RMVersion: "1.0.0"}}
	a := New(Config{SupervisedRecovery: true}, newFakeContext(), tracker)
	_ = a.Init()
	_ = a.Start(context.Background(), nil, nil)

	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := tracker.unregisterCallCount(); got != 0 {
		t.Errorf("unregisterCallCount() = %d, want 0 under supervised recovery", got)
	}
}

func TestAgentStopIsIdempotent(t *testing.T) {
	tracker := &fakeTracker{registerResp: &rpc.RegisterResponse{RMIdentifier: 1, RMVersion: "1.0.0"}}
	a := New(Config{}, newFakeContext(), tracker)
	_ = a.Init()
	_ = a.Start(context.Background(), nil, nil)

	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("first Stop() error = %v", err)
	}
	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop() should be a no-op, got error = %v", err)
	}
}

var errNotConnected = &StartupError{Reason: "test failure"}

func (e *StartupError) asError() error { return e }
