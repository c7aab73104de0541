/*
Package health provides pluggable liveness checks used to answer the
controller's periodic HealthStatus query for this node.

# Architecture

	┌──────────────────────────────────────────┐
	│              Checker Interface            │
	│  • Check(ctx) Result                      │
	│  • Type() CheckType                       │
	└────────┬───────────────────────────────────┘
	         │
	    ┌────┴──────┐
	    ▼           ▼
	┌────────┐  ┌──────┐
	│  HTTP  │  │ TCP  │
	│Checker │  │Checker│
	└────────┘  └──────┘

Only one checker runs per node: cmd/nodeagent wires a TCPChecker against
the node's own advertised host:port, and LocalState.HealthStatus invokes
it with a bounded timeout on each status-collector tick. HTTPChecker is
exported for callers embedding this package where the checked endpoint
speaks HTTP rather than being a bare TCP listener.

# Result and Status

	type Result struct {
		Healthy   bool
		Message   string
		CheckedAt time.Time
		Duration  time.Duration
	}

Status adds hysteresis on top of a raw Result stream: ConsecutiveFailures
must reach Config.Retries before Healthy flips false, and a single success
clears it again, avoiding flapping from a single transient failure.

# Usage

	checker := health.NewTCPChecker("10.0.0.5:7000")
	result := checker.Check(ctx)
	if !result.Healthy {
		log.Warn().Str("message", result.Message).Msg("node liveness check failed")
	}

# See Also

  - pkg/agent - LocalState.HealthStatus runs a Checker per status-collector tick
  - cmd/nodeagent - wires the TCP checker used against this node's own port
*/
package health
