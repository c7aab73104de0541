// Package agent implements the node status updater: the long-lived
// subsystem that registers a worker node with a cluster controller and
// then sustains a periodic heartbeat loop reporting node and container
// state, applying controller directives, rotating security material, and
// driving orderly shutdown and resync.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/forgemesh/nodeagent/internal/rpc"
	"github.com/forgemesh/nodeagent/pkg/events"
	"github.com/forgemesh/nodeagent/pkg/log"
	"github.com/forgemesh/nodeagent/pkg/types"
)

// Config is the node status updater's configuration, built by the
// enclosing process's CLI entrypoint. This package never parses flags or
// environment variables itself.
type Config struct {
	NodeID             types.NodeID
	HTTPPort           int
	PhysicalResource   types.Resource
	NodeManagerVersion string

	// MinimumControllerVersion is one of MinimumControllerVersionNone,
	// MinimumControllerVersionEqualToNM, or an explicit semver floor.
	MinimumControllerVersion string

	// StoppedContainersTrackingDuration is how long a completed
	// container's ID is retained in the recently-stopped cache. Must be
	// >= 0; default matches nm.duration-to-track-stopped-containers
	// (600s).
	StoppedContainersTrackingDuration time.Duration

	LogAggregationEnabled bool
	SecurityEnabled       bool

	// SupervisedRecovery mirrors nm.recovery.supervised: when true, a
	// process manager outside this one is expected to restart a crashed
	// agent without losing running containers, so Stop must not send
	// unregisterNodeManager on the way out.
	SupervisedRecovery bool

	// TokenRemovalDelay is the keep-alive tracker's D (spec 3): the
	// nominal lifetime a system credential is extended by.
	TokenRemovalDelay time.Duration

	// NodeLabelsResyncInterval forces a label resend at least this often
	// even when the label set has not changed.
	NodeLabelsResyncInterval time.Duration

	// LabelProvider, if non-nil, selects the distributed node-labels
	// handler; if nil the centralized (no-op) variant is used.
	LabelProvider LabelProvider

	TimelineV2Enabled bool

	// ResourcePlugins amend PhysicalResource/TotalResource at Init,
	// mirroring a hardware/accelerator plugin discovering extra
	// capacity.
	ResourcePlugins []ResourcePlugin
}

// Agent ties every node status updater component together and implements
// the three-phase lifecycle capability: Init, Start, Stop.
type Agent struct {
	cfg     Config
	ctx     Context
	tracker rpc.ResourceTracker

	broker     *events.Broker
	dispatcher *Dispatcher
	labels     LabelsHandler

	stopped    *RecentlyStoppedCache
	pending    *PendingCompletionBuffer
	keepAlive  *KeepAliveTracker
	collectors *CollectorRegistry

	containerTokenKeys *MasterKeyManager
	nodeTokenKeys      *MasterKeyManager

	registrar *Registrar
	collector *StatusCollector

	totalResource types.Resource

	shutdownMu         sync.Mutex
	loop               *Loop
	lifecycle          *lifecycleGroup
	registered         bool
	stoppedForGood     bool
	supervisedRecovery bool
	failedToConnect    bool
}

// New constructs an agent from its configuration and the two
// collaborators this package never owns: the Context into the containment
// subsystem and the ResourceTracker transport to the controller.
func New(cfg Config, ctx Context, tracker rpc.ResourceTracker) *Agent {
	return &Agent{
		cfg:                 cfg,
		ctx:                 ctx,
		tracker:             tracker,
		broker:              events.NewBroker(),
		stopped:             NewRecentlyStoppedCache(cfg.StoppedContainersTrackingDuration),
		pending:             NewPendingCompletionBuffer(),
		keepAlive:           NewKeepAliveTracker(cfg.LogAggregationEnabled && cfg.SecurityEnabled, cfg.TokenRemovalDelay),
		collectors:          NewCollectorRegistry(),
		containerTokenKeys:  NewMasterKeyManager(),
		nodeTokenKeys:       NewMasterKeyManager(),
		supervisedRecovery:  false,
	}
}

// Broker returns the local event bus the dispatch adapter publishes onto.
// Callers needing to react to controller directives subscribe here.
func (a *Agent) Broker() *events.Broker {
	return a.broker
}

// Init reads configuration, lets resource plugins amend total capacity,
// builds the node-labels handler, and validates the stopped-container
// retention duration. It must be called before Start.
func (a *Agent) Init() error {
	if a.cfg.StoppedContainersTrackingDuration < 0 {
		return fmt.Errorf("duration-to-track-stopped-containers must be >= 0, got %s", a.cfg.StoppedContainersTrackingDuration)
	}

	total := a.cfg.PhysicalResource
	for _, plugin := range a.cfg.ResourcePlugins {
		total = plugin.AmendResource(total)
	}
	a.totalResource = total

	if a.cfg.LabelProvider != nil {
		a.labels = NewDistributedLabelsHandler(a.cfg.LabelProvider, a.cfg.NodeLabelsResyncInterval)
	} else {
		a.labels = NewCentralizedLabelsHandler()
	}

	a.supervisedRecovery = a.cfg.SupervisedRecovery
	a.dispatcher = NewDispatcher(a.broker, a.nodeTokenKeys, a.keepAlive)
	a.collector = NewStatusCollector(a.ctx, a.stopped, a.pending, a.keepAlive)
	a.registrar = NewRegistrar(a.tracker, a.ctx, a.labels, a.containerTokenKeys, a.nodeTokenKeys)

	a.broker.Start()
	return nil
}

// Start registers with the controller and starts the heartbeat loop. It
// must run after NodeID is known, as the last step of the enclosing
// process's own startup.
func (a *Agent) Start(ctx context.Context, existing []types.ContainerStatus, runningApps []types.ApplicationID) error {
	regCtx, cancel := context.WithTimeout(ctx, RegistrationTimeout)
	defer cancel()

	result, err := a.registrar.Register(regCtx, a.cfg, a.totalResource, existing, runningApps)
	if err != nil {
		return err
	}

	a.shutdownMu.Lock()
	a.totalResource = result.TotalResource
	a.registered = true
	a.loop = NewLoop(a.cfg, a.tracker, a.ctx, a.collector, a.labels, a.dispatcher, a.stopped, a.pending, a.collectors, a.containerTokenKeys, a.nodeTokenKeys, result.RMIdentifier)
	a.lifecycle = startLoop(ctx, a.loop)
	lifecycle := a.lifecycle
	a.shutdownMu.Unlock()

	go a.awaitLoop(lifecycle)
	return nil
}

func (a *Agent) awaitLoop(lifecycle *lifecycleGroup) {
	logger := log.WithComponent("agent").With().Str("node_id", a.cfg.NodeID.String()).Logger()
	action := lifecycle.wait()
	if action == nil {
		return
	}

	switch *action {
	case types.NodeActionShutdown:
		logger.Warn().Msg("controller directed shutdown")
	case types.NodeActionResync:
		logger.Info().Msg("controller directed resync; external driver must re-register")
	}
}

// Stop implements the shutdown-monitor-serialized stop described in spec
// 4.8: it sends unregisterNodeManager iff the node was registered, is not
// already stopped, is not under supervised recovery, is not decommissioned
// and did not fail to connect.
func (a *Agent) Stop(ctx context.Context) error {
	a.shutdownMu.Lock()
	defer a.shutdownMu.Unlock()

	if a.stoppedForGood {
		return nil
	}

	if a.loop != nil {
		failedToConnect := a.loop.State() == StateFailed
		a.failedToConnect = a.failedToConnect || failedToConnect
		a.loop.Stop()
	}
	if a.lifecycle != nil {
		a.lifecycle.stop()
	}

	shouldUnregister := a.registered &&
		!a.stoppedForGood &&
		!a.supervisedRecovery &&
		!a.ctx.Decommissioned() &&
		!a.failedToConnect

	if shouldUnregister {
		unregCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.tracker.UnRegisterNodeManager(unregCtx, &rpc.UnregisterRequest{NodeID: a.cfg.NodeID}); err != nil {
			unregLogger := log.WithComponent("agent")
			unregLogger.Warn().Err(err).Msg("unregister failed, continuing shutdown")
		}
	}

	a.stoppedForGood = true
	a.broker.Stop()
	return a.tracker.Close()
}

// TotalResource returns the advertised node capacity: the physical
// capacity as amended by resource plugins in Init, replaced by the
// registration response's resource override when it carries one. A
// heartbeat resource override does not change this value; the heartbeat
// loop reports it only through the advertised-capacity gauges.
func (a *Agent) TotalResource() types.Resource {
	a.shutdownMu.Lock()
	defer a.shutdownMu.Unlock()
	return a.totalResource
}
