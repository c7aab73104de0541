package agent

import (
	"testing"
	"time"

	"github.com/forgemesh/nodeagent/internal/rpc"
	"github.com/forgemesh/nodeagent/pkg/events"
	"github.com/forgemesh/nodeagent/pkg/types"
)

func TestDispatcherPublishesContainerCleanup(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	d := NewDispatcher(broker, NewMasterKeyManager(), NewKeepAliveTracker(true, time.Minute))
	d.Dispatch(&rpc.HeartbeatResponse{ContainersToCleanup: []types.ContainerID{id(1), id(2)}})

	evt := waitForEventType(t, sub, events.CMgrCompletedContainers)
	if evt.Metadata["container_ids"] == "" {
		t.Error("expected container_ids metadata to be populated")
	}
}

func TestDispatcherPublishesApplicationCleanup(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	d := NewDispatcher(broker, NewMasterKeyManager(), NewKeepAliveTracker(true, time.Minute))
	d.Dispatch(&rpc.HeartbeatResponse{ApplicationsToCleanup: []types.ApplicationID{"app1"}})

	evt := waitForEventType(t, sub, events.CMgrCompletedApps)
	if evt.Metadata["application_ids"] != "app1" {
		t.Errorf("application_ids = %q, want app1", evt.Metadata["application_ids"])
	}
}

func TestDispatcherTracksCleanedUpAppsForKeepAlive(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	keepAlive := NewKeepAliveTracker(true, time.Minute)
	d := NewDispatcher(broker, NewMasterKeyManager(), keepAlive)
	d.Dispatch(&rpc.HeartbeatResponse{ApplicationsToCleanup: []types.ApplicationID{"app1", "app2"}})

	if keepAlive.Len() != 2 {
		t.Errorf("Len() = %d, want 2 apps tracked for keep-alive after cleanup", keepAlive.Len())
	}
}

func TestDispatcherSkipsKeepAliveTrackingWhenDisabled(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	keepAlive := NewKeepAliveTracker(false, time.Minute)
	d := NewDispatcher(broker, NewMasterKeyManager(), keepAlive)
	d.Dispatch(&rpc.HeartbeatResponse{ApplicationsToCleanup: []types.ApplicationID{"app1"}})

	if keepAlive.Len() != 0 {
		t.Errorf("Len() = %d, want 0 when keep-alive is disabled", keepAlive.Len())
	}
}

func TestDispatcherPublishesSignalAndUpdate(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	d := NewDispatcher(broker, NewMasterKeyManager(), NewKeepAliveTracker(true, time.Minute))
	d.Dispatch(&rpc.HeartbeatResponse{
		ContainersToUpdate: []types.ContainerStatus{{ID: id(1)}},
		ContainersToSignal: []types.SignalContainerRequest{{ID: id(2), Command: types.SignalGracefulShutdown}},
	})

	waitForEventType(t, sub, events.CMgrUpdateContainers)
	waitForEventType(t, sub, events.CMgrSignalContainers)
}

func TestDispatcherSkipsEmptyFields(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	d := NewDispatcher(broker, NewMasterKeyManager(), NewKeepAliveTracker(true, time.Minute))
	d.Dispatch(&rpc.HeartbeatResponse{})

	select {
	case evt := <-sub:
		t.Fatalf("did not expect an event, got %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatcherInstallsSystemCredentials(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	keys := NewMasterKeyManager()
	keys.SetMasterKey(types.SecurityKey{KeyID: 1, Bytes: []byte("node-token-key-32-bytes-long!!!!")})
	sealed, err := keys.Seal([]byte("fresh-app-credential"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	sub := broker.Subscribe()
	d := NewDispatcher(broker, keys, NewKeepAliveTracker(true, time.Minute))
	d.Dispatch(&rpc.HeartbeatResponse{SystemCredentialsForApps: map[types.ApplicationID][]byte{"app1": sealed}})

	evt := waitForEventType(t, sub, events.CMgrInstallSystemCredentials)
	if evt.Metadata["application_id"] != "app1" {
		t.Errorf("application_id = %q, want app1", evt.Metadata["application_id"])
	}
}

func TestDispatcherSkipsUnopenableSystemCredentials(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	d := NewDispatcher(broker, NewMasterKeyManager(), NewKeepAliveTracker(true, time.Minute))
	d.Dispatch(&rpc.HeartbeatResponse{SystemCredentialsForApps: map[types.ApplicationID][]byte{"app1": []byte("not-sealed-under-any-key")}})

	select {
	case evt := <-sub:
		t.Fatalf("did not expect an event for an unopenable credential blob, got %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitForEventType(t *testing.T, sub events.Subscriber, want events.EventType) *events.Event {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case evt := <-sub:
			if evt.Type == want {
				return evt
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %s", want)
			return nil
		}
	}
}
