/*
Package metrics provides Prometheus metrics collection and exposition for the
node status updater.

The metrics package defines and registers every metric using the Prometheus
client library, giving observability into heartbeat health, advertised node
capacity, and the lifecycle of the recently-stopped cache and pending
completion buffer. Metrics are exposed via an HTTP endpoint for scraping by
Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Types                   │          │
	│  │                                              │          │
	│  │  Gauge: Instant values (cache size)         │          │
	│  │  Counter: Monotonic increases (heartbeats)  │          │
	│  │  Histogram: Distributions (RPC latency)     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

Metrics are updated inline, at the point in the heartbeat tick where the
value becomes known, rather than by a separate polling collector: the
heartbeat loop already runs on a fixed cadence, so a second ticker sampling
the same state would add nothing but drift.

# Metrics Catalog

nodeagent_heartbeats_total:
  - Type: Counter
  - Description: Total heartbeat ticks completed, successful or not

nodeagent_heartbeat_failures_total:
  - Type: Counter
  - Description: Total heartbeat ticks whose RPC round-trip failed

nodeagent_heartbeat_latency_seconds:
  - Type: Histogram
  - Description: Round-trip latency of the node heartbeat RPC
  - Buckets: Default Prometheus buckets

nodeagent_node_advertised_memory_mib / nodeagent_node_advertised_vcores:
  - Type: Gauge
  - Description: Node capacity as most recently set by a controller resource
    override, either at registration or during a heartbeat

nodeagent_containers_by_state{state}:
  - Type: Gauge
  - Description: Containers currently tracked, by ContainerState

nodeagent_recently_stopped_cache_size:
  - Type: Gauge
  - Description: Current size of the recently-stopped container cache

nodeagent_pending_completions_size:
  - Type: Gauge
  - Description: Current size of the pending-completion buffer awaiting a
    non-missed acknowledgement

nodeagent_master_key_rotations_total{kind}:
  - Type: Counter
  - Description: Master key rotations observed, labeled "container" or "node"

nodeagent_keep_alive_sent_total:
  - Type: Counter
  - Description: Application keep-alive signals sent across all heartbeats

nodeagent_node_labels_rejected_total:
  - Type: Counter
  - Description: Heartbeats or registrations where the controller rejected
    the advertised node label set

# Usage

	import "github.com/forgemesh/nodeagent/pkg/metrics"

	metrics.HeartbeatsTotal.Inc()
	metrics.NodeAdvertisedMemoryMiB.Set(16384)
	metrics.MasterKeyRotationsTotal.WithLabelValues("container").Inc()

	timer := metrics.NewTimer()
	resp, err := tracker.NodeHeartbeat(ctx, req)
	timer.ObserveDuration(metrics.HeartbeatLatency)

Exposing the endpoint:

	http.Handle("/metrics", metrics.Handler())
	http.ListenAndServe(":9090", nil)

# Design Patterns

Package Init Registration:
  - All metrics registered in init()
  - MustRegister panics on duplicate registration, surfacing mistakes early

Label Discipline:
  - WithLabelValues only for cardinality-bounded labels (kind, state)
  - Never container IDs, application IDs, or timestamps as labels

Timer Pattern:
  - Create a Timer at the start of the operation being measured
  - ObserveDuration/ObserveDurationVec once the operation completes

# Troubleshooting

Missing Metrics:
  - Check the metric variable is registered in init()
  - Check the call site that should update it is actually reached

High Cardinality:
  - Symptom: Prometheus memory usage grows unexpectedly
  - Cause: a label value drawn from an unbounded set slipped in
  - Solution: remove the label, aggregate in logs instead

# Monitoring

Prometheus Queries (PromQL):

Heartbeat Health:
  - Failure rate: rate(nodeagent_heartbeat_failures_total[5m])
  - p95 latency: histogram_quantile(0.95, nodeagent_heartbeat_latency_seconds_bucket)
  - Heartbeat rate: rate(nodeagent_heartbeats_total[1m])

Capacity:
  - Advertised memory: nodeagent_node_advertised_memory_mib
  - Advertised vcores: nodeagent_node_advertised_vcores

Cache Pressure:
  - Stopped cache growth: deriv(nodeagent_recently_stopped_cache_size[10m])
  - Pending completions stuck: nodeagent_pending_completions_size > 0 for an
    extended window usually means the controller has stopped acknowledging

# Alerting Rules

High Heartbeat Failure Rate:
  - Alert: rate(nodeagent_heartbeat_failures_total[5m]) > 0.1
  - Action: check controller reachability and TLS certificate validity

Node Labels Persistently Rejected:
  - Alert: increase(nodeagent_node_labels_rejected_total[15m]) > 0
  - Action: check the label provider's output against the accepted label
    name pattern
*/
package metrics
