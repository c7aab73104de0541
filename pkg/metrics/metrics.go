package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HeartbeatsTotal counts every completed heartbeat tick, successful or
	// not.
	HeartbeatsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nodeagent_heartbeats_total",
			Help: "Total number of heartbeat ticks sent to the controller",
		},
	)

	HeartbeatFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nodeagent_heartbeat_failures_total",
			Help: "Total number of heartbeat ticks that failed to round-trip",
		},
	)

	HeartbeatLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nodeagent_heartbeat_latency_seconds",
			Help:    "Round-trip latency of the node heartbeat RPC",
			Buckets: prometheus.DefBuckets,
		},
	)

	// NodeAdvertisedMemoryMiB and NodeAdvertisedVCores track the node
	// capacity last advertised by the controller's resource override.
	NodeAdvertisedMemoryMiB = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nodeagent_node_advertised_memory_mib",
			Help: "Node memory capacity as most recently set by the controller",
		},
	)

	NodeAdvertisedVCores = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nodeagent_node_advertised_vcores",
			Help: "Node vcore capacity as most recently set by the controller",
		},
	)

	ContainersByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nodeagent_containers_by_state",
			Help: "Number of containers currently tracked, by state",
		},
		[]string{"state"},
	)

	RecentlyStoppedCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nodeagent_recently_stopped_cache_size",
			Help: "Current size of the recently-stopped container cache",
		},
	)

	PendingCompletionsSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nodeagent_pending_completions_size",
			Help: "Current size of the pending-completion buffer awaiting acknowledgement",
		},
	)

	MasterKeyRotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodeagent_master_key_rotations_total",
			Help: "Total number of master key rotations observed, by key kind",
		},
		[]string{"kind"},
	)

	KeepAliveSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nodeagent_keep_alive_sent_total",
			Help: "Total number of application keep-alive signals sent",
		},
	)

	NodeLabelsRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nodeagent_node_labels_rejected_total",
			Help: "Total number of heartbeats/registrations where the controller rejected node labels",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HeartbeatsTotal,
		HeartbeatFailuresTotal,
		HeartbeatLatency,
		NodeAdvertisedMemoryMiB,
		NodeAdvertisedVCores,
		ContainersByState,
		RecentlyStoppedCacheSize,
		PendingCompletionsSize,
		MasterKeyRotationsTotal,
		KeepAliveSentTotal,
		NodeLabelsRejectedTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
