package agent

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/forgemesh/nodeagent/internal/rpc"
	"github.com/forgemesh/nodeagent/pkg/events"
	"github.com/forgemesh/nodeagent/pkg/log"
	"github.com/forgemesh/nodeagent/pkg/types"
)

// Dispatcher is a pure translator from heartbeat-response fields into
// typed events on the local bus. nodeTokenKeys, if it exposes an Open
// method, is used to unseal systemCredentialsForApps before it is handed
// to the containment subsystem; a manager that cannot open it is treated
// as absent, matching how registration treats a not-yet-installed key.
type Dispatcher struct {
	broker        *events.Broker
	nodeTokenKeys SecretManager
	keepAlive     *KeepAliveTracker
}

// NewDispatcher wires a dispatcher to the broker it publishes onto, the
// node-token key manager it unseals system credentials with, and the
// keep-alive tracker that applications pending cleanup get enrolled in.
func NewDispatcher(broker *events.Broker, nodeTokenKeys SecretManager, keepAlive *KeepAliveTracker) *Dispatcher {
	return &Dispatcher{broker: broker, nodeTokenKeys: nodeTokenKeys, keepAlive: keepAlive}
}

// Dispatch translates every response field with a corresponding local
// event. SHUTDOWN and RESYNC are handled by the loop directly before
// Dispatch is reached; this method only ever sees NORMAL responses.
func (d *Dispatcher) Dispatch(resp *rpc.HeartbeatResponse) {
	if len(resp.ContainersToCleanup) > 0 {
		d.broker.Publish(&events.Event{
			Type:     events.CMgrCompletedContainers,
			Message:  string(events.ReasonByController),
			Metadata: map[string]string{"container_ids": joinContainerIDs(resp.ContainersToCleanup)},
		})
	}

	if len(resp.ApplicationsToCleanup) > 0 {
		if d.keepAlive != nil {
			d.keepAlive.TrackApps(resp.ApplicationsToCleanup)
		}
		d.broker.Publish(&events.Event{
			Type:     events.CMgrCompletedApps,
			Message:  string(events.ReasonByController),
			Metadata: map[string]string{"application_ids": joinApplicationIDs(resp.ApplicationsToCleanup)},
		})
	}

	if len(resp.ContainersToUpdate) > 0 {
		d.broker.Publish(&events.Event{
			Type:    events.CMgrUpdateContainers,
			Message: fmt.Sprintf("%d container(s) updated", len(resp.ContainersToUpdate)),
		})
	}

	if len(resp.ContainersToSignal) > 0 {
		d.broker.Publish(&events.Event{
			Type:    events.CMgrSignalContainers,
			Message: fmt.Sprintf("%d container(s) signaled", len(resp.ContainersToSignal)),
		})
	}

	d.installSystemCredentials(resp.SystemCredentialsForApps)
}

// installSystemCredentials unseals each application's fresh system
// credential blob under the active node-token key and publishes one
// install event per application. An application whose blob fails to open
// is skipped and logged; a rotated key mid-flight is the expected cause,
// not a reason to fail the rest of the batch.
func (d *Dispatcher) installSystemCredentials(sealed map[types.ApplicationID][]byte) {
	if len(sealed) == 0 {
		return
	}
	opener, ok := d.nodeTokenKeys.(interface{ Open([]byte) ([]byte, error) })
	dispatchLogger := log.WithComponent("dispatch")
	if !ok {
		dispatchLogger.Warn().Msg("system credentials received but no key manager can open them")
		return
	}
	for appID, blob := range sealed {
		creds, err := opener.Open(blob)
		if err != nil {
			dispatchLogger.Warn().Err(err).Str("application_id", string(appID)).Msg("failed to unseal system credentials")
			continue
		}
		d.broker.Publish(&events.Event{
			Type:     events.CMgrInstallSystemCredentials,
			Message:  fmt.Sprintf("system credentials installed for %s", appID),
			Metadata: map[string]string{"application_id": string(appID), "credentials": base64.StdEncoding.EncodeToString(creds)},
		})
	}
}

func joinContainerIDs(ids []types.ContainerID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}

func joinApplicationIDs(ids []types.ApplicationID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}
