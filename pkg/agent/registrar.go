package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-semver/semver"

	"github.com/forgemesh/nodeagent/internal/rpc"
	"github.com/forgemesh/nodeagent/pkg/log"
	"github.com/forgemesh/nodeagent/pkg/metrics"
	"github.com/forgemesh/nodeagent/pkg/types"
)

// MinimumControllerVersionNone disables the version gate entirely.
const MinimumControllerVersionNone = "NONE"

// MinimumControllerVersionEqualToNM requires the controller's version to
// equal this node's own nodeManagerVersion exactly.
const MinimumControllerVersionEqualToNM = "EqualToNM"

// StartupError marks an error that should abort the owning process: a
// failed registration, a SHUTDOWN directive received during it, or a
// rejected controller version.
type StartupError struct {
	Reason string
	Err    error
}

func (e *StartupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *StartupError) Unwrap() error { return e.Err }

// Registrar performs the one-shot handshake with the controller.
type Registrar struct {
	tracker            rpc.ResourceTracker
	ctx                Context
	labels             LabelsHandler
	containerTokenKeys SecretManager
	nodeTokenKeys      SecretManager
}

// NewRegistrar wires a registrar to its collaborators.
func NewRegistrar(tracker rpc.ResourceTracker, ctx Context, labels LabelsHandler, containerTokenKeys, nodeTokenKeys SecretManager) *Registrar {
	return &Registrar{
		tracker:            tracker,
		ctx:                ctx,
		labels:             labels,
		containerTokenKeys: containerTokenKeys,
		nodeTokenKeys:      nodeTokenKeys,
	}
}

// Result carries what the heartbeat loop needs to begin running after a
// successful registration.
type Result struct {
	RMIdentifier  int64
	TotalResource types.Resource
}

// Register performs the registration round trip and applies its response.
// It acquires no containment-subsystem lock, and the Context interface
// exposes none, so container admissions that run concurrently are not
// serialized against registration. Agent.Start publishes the returned
// RMIdentifier to the heartbeat loop under the agent's shutdown mutex.
func (r *Registrar) Register(ctx context.Context, cfg Config, totalResource types.Resource, existing []types.ContainerStatus, runningApps []types.ApplicationID) (*Result, error) {
	logger := log.WithComponent("registrar").With().Str("node_id", cfg.NodeID.String()).Logger()

	req := &rpc.RegisterRequest{
		NodeID:                   cfg.NodeID,
		HTTPPort:                 cfg.HTTPPort,
		TotalResource:            totalResource,
		PhysicalResource:         cfg.PhysicalResource,
		NodeManagerVersion:       cfg.NodeManagerVersion,
		ExistingContainerReports: existing,
		RunningApplicationIDs:    runningApps,
		NodeLabels:               r.labels.LabelsForRegistration(),
	}

	resp, err := r.tracker.RegisterNodeManager(ctx, req)
	if err != nil {
		return nil, &StartupError{Reason: "registration failed", Err: err}
	}

	if resp.Action == types.NodeActionShutdown {
		return nil, &StartupError{Reason: fmt.Sprintf("controller directed shutdown at registration: %s", resp.DiagnosticsMessage)}
	}

	if err := checkControllerVersion(cfg.MinimumControllerVersion, cfg.NodeManagerVersion, resp.RMVersion); err != nil {
		return nil, &StartupError{Reason: "controller version rejected", Err: err}
	}

	if resp.ContainerTokenMasterKey != nil {
		r.containerTokenKeys.SetMasterKey(*resp.ContainerTokenMasterKey)
	}
	if resp.NodeTokenMasterKey != nil {
		r.nodeTokenKeys.SetMasterKey(*resp.NodeTokenMasterKey)
	}

	total := totalResource
	if resp.Resource != nil {
		total = *resp.Resource
		metrics.NodeAdvertisedMemoryMiB.Set(float64(total.MemoryMiB))
		metrics.NodeAdvertisedVCores.Set(float64(total.VCores))
	}

	r.labels.VerifyRegistrationAck(resp.AreNodeLabelsAccepted, resp.DiagnosticsMessage)
	if !resp.AreNodeLabelsAccepted && len(req.NodeLabels) > 0 {
		metrics.NodeLabelsRejectedTotal.Inc()
	}
	logger.Info().Int64("rm_identifier", resp.RMIdentifier).Msg("registered with controller")

	return &Result{RMIdentifier: resp.RMIdentifier, TotalResource: total}, nil
}

// checkControllerVersion implements the three-way minimum-version gate:
// NONE disables it, EqualToNM requires an exact match against our own
// version, otherwise the configured string is a semver floor.
func checkControllerVersion(minimum, ourVersion, controllerVersion string) error {
	switch minimum {
	case "", MinimumControllerVersionNone:
		return nil
	case MinimumControllerVersionEqualToNM:
		if controllerVersion != ourVersion {
			return fmt.Errorf("controller version %q does not match required %q", controllerVersion, ourVersion)
		}
		return nil
	default:
		want, err := semver.NewVersion(minimum)
		if err != nil {
			return fmt.Errorf("invalid minimum controller version %q: %w", minimum, err)
		}
		got, err := semver.NewVersion(controllerVersion)
		if err != nil {
			return fmt.Errorf("controller reported unparsable version %q: %w", controllerVersion, err)
		}
		if got.LessThan(*want) {
			return fmt.Errorf("controller version %s is older than required minimum %s", got, want)
		}
		return nil
	}
}

// RegistrationTimeout bounds the registerNodeManager RPC.
const RegistrationTimeout = 10 * time.Second
