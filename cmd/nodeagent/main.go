// Command nodeagent is the worker-node process that hosts the node status
// updater: it registers once with the cluster controller, then runs the
// heartbeat loop until told to shut down.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgemesh/nodeagent/internal/rpc"
	"github.com/forgemesh/nodeagent/pkg/agent"
	"github.com/forgemesh/nodeagent/pkg/health"
	"github.com/forgemesh/nodeagent/pkg/log"
	"github.com/forgemesh/nodeagent/pkg/metrics"
	"github.com/forgemesh/nodeagent/pkg/security"
	"github.com/forgemesh/nodeagent/pkg/storage"
	"github.com/forgemesh/nodeagent/pkg/types"
)

var (
	// Version information, set via ldflags during build.
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "nodeagent",
	Short:   "Node status updater: registers this node and sustains its heartbeat to the cluster controller",
	Version: Version,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("config")
		if path == "" {
			return nil
		}
		return loadFileConfig(path)
	},
	RunE: runAgent,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("nodeagent version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime))

	flags := rootCmd.Flags()
	flags.String("config", "", "optional YAML config file; command-line flags override its values")
	flags.String("node-host", "", "advertised host of this node (required)")
	flags.Int("node-port", 0, "advertised RPC/HTTP port of this node (required)")
	flags.String("controller-addr", "", "controller gRPC address (required)")
	flags.String("cert-dir", "", "directory holding this node's mTLS certificate and the CA bundle (required)")
	flags.String("cluster-id", "", "cluster identifier this node belongs to; derives the key sealing the completion tombstone store at rest (required)")
	flags.String("data-dir", "/var/lib/nodeagent", "directory for local state, including the completion tombstone store")
	flags.Uint64("memory-mib", 8192, "advertised node memory capacity in MiB")
	flags.Uint32("vcores", 4, "advertised node vcore capacity")
	flags.Duration("nm.duration-to-track-stopped-containers", 600*time.Second, "how long a completed container ID is retained in the recently-stopped cache")
	flags.String("nm.resourcemanager.minimum-version", agent.MinimumControllerVersionNone, `"NONE", "EqualToNM", or an explicit semver floor`)
	flags.String("node-manager-version", Version, "this node's own version, compared against the minimum-version gate")
	flags.Bool("log-aggregation.enabled", false, "enable log-aggregation reporting and keep-alive scheduling")
	flags.Bool("security.enabled", false, "enable security token issuance and keep-alive scheduling")
	flags.Bool("nm.recovery.supervised", false, "assume an external process manager restarts a crashed agent without losing containers; skips unregisterNodeManager on stop")
	flags.Duration("token-removal-delay", 10*time.Minute, "nominal credential lifetime extended by keep-alive")
	flags.Duration("nm.node-labels.resync-interval-ms", time.Minute, "forced label resend interval even without a change")
	flags.Bool("timeline-v2.enabled", false, "enable timeline-service-v2 collector address propagation")
	flags.String("metrics-addr", ":9090", "address to serve Prometheus metrics on")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.Bool("log-json", false, "emit JSON-formatted logs instead of console output")
}

func runAgent(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	logLevel, _ := flags.GetString("log-level")
	logJSON, _ := flags.GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
	logger := log.WithComponent("nodeagent")

	nodeHost, _ := flags.GetString("node-host")
	nodePort, _ := flags.GetInt("node-port")
	controllerAddr, _ := flags.GetString("controller-addr")
	certDir, _ := flags.GetString("cert-dir")
	clusterID, _ := flags.GetString("cluster-id")
	if nodeHost == "" || nodePort == 0 || controllerAddr == "" || certDir == "" || clusterID == "" {
		return fmt.Errorf("--node-host, --node-port, --controller-addr, --cert-dir and --cluster-id are required")
	}
	if err := security.SetClusterEncryptionKey(security.DeriveKeyFromClusterID(clusterID)); err != nil {
		return fmt.Errorf("set cluster encryption key: %w", err)
	}
	dataDir, _ := flags.GetString("data-dir")
	memoryMiB, _ := flags.GetUint64("memory-mib")
	vcores, _ := flags.GetUint32("vcores")
	stoppedTracking, _ := flags.GetDuration("nm.duration-to-track-stopped-containers")
	minVersion, _ := flags.GetString("nm.resourcemanager.minimum-version")
	nmVersion, _ := flags.GetString("node-manager-version")
	logAggEnabled, _ := flags.GetBool("log-aggregation.enabled")
	securityEnabled, _ := flags.GetBool("security.enabled")
	supervisedRecovery, _ := flags.GetBool("nm.recovery.supervised")
	tokenDelay, _ := flags.GetDuration("token-removal-delay")
	labelResync, _ := flags.GetDuration("nm.node-labels.resync-interval-ms")
	timelineV2, _ := flags.GetBool("timeline-v2.enabled")
	metricsAddr, _ := flags.GetString("metrics-addr")

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	completions, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return fmt.Errorf("open completion store: %w", err)
	}
	defer completions.Close()

	checker := health.NewTCPChecker(fmt.Sprintf("%s:%d", nodeHost, nodePort))
	state := agent.NewLocalState(checker, completions)
	metrics.SetVersion(Version)
	metrics.RegisterComponent("containment", true, "in-memory local state")

	tracker, err := rpc.Dial(rpc.DialConfig{ControllerAddr: controllerAddr, CertDir: certDir, DialTimeout: 10 * time.Second})
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}

	cfg := agent.Config{
		NodeID:                            types.NodeID{Host: nodeHost, Port: nodePort},
		HTTPPort:                          nodePort,
		PhysicalResource:                  types.Resource{MemoryMiB: memoryMiB, VCores: vcores},
		NodeManagerVersion:                nmVersion,
		MinimumControllerVersion:          minVersion,
		StoppedContainersTrackingDuration: stoppedTracking,
		LogAggregationEnabled:             logAggEnabled,
		SecurityEnabled:                   securityEnabled,
		SupervisedRecovery:                supervisedRecovery,
		TokenRemovalDelay:                 tokenDelay,
		NodeLabelsResyncInterval:          labelResync,
		TimelineV2Enabled:                 timelineV2,
	}

	a := agent.New(cfg, state, tracker)
	if err := a.Init(); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	metricsServer := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn().Err(err).Msg("metrics server stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx, nil, nil); err != nil {
		metrics.RegisterComponent("controller_connection", false, err.Error())
		return fmt.Errorf("start: %w", err)
	}
	metrics.RegisterComponent("controller_connection", true, "registered")
	logger.Info().Str("node_id", cfg.NodeID.String()).Str("controller", controllerAddr).Msg("node status updater started")

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.Stop(stopCtx); err != nil {
		logger.Warn().Err(err).Msg("stop returned an error")
	}
	_ = metricsServer.Close()
	return nil
}
