package agent

import (
	"regexp"
	"sort"
	"time"

	"github.com/forgemesh/nodeagent/pkg/log"
)

// LabelsHandler is the capability table shared by the two node-label
// variants: centralized (the controller owns label assignment and this
// node never sends any) and distributed (this node sources labels from a
// local provider and pushes them).
type LabelsHandler interface {
	LabelsForRegistration() []string
	LabelsForHeartbeat(now time.Time) []string
	VerifyRegistrationAck(accepted bool, diagnostics string)
	VerifyHeartbeatAck(accepted bool, diagnostics string)
}

// CentralizedLabelsHandler never sends labels and never second-guesses the
// controller's acceptance of them.
type CentralizedLabelsHandler struct{}

func NewCentralizedLabelsHandler() *CentralizedLabelsHandler { return &CentralizedLabelsHandler{} }

func (*CentralizedLabelsHandler) LabelsForRegistration() []string            { return nil }
func (*CentralizedLabelsHandler) LabelsForHeartbeat(time.Time) []string      { return nil }
func (*CentralizedLabelsHandler) VerifyRegistrationAck(bool, string)         {}
func (*CentralizedLabelsHandler) VerifyHeartbeatAck(bool, string)            {}

// LabelProvider sources the set of labels this node should currently
// advertise; node-label detection itself is out of this package's scope.
type LabelProvider func() []string

var labelNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.-]*=[a-zA-Z0-9_.-]*$|^[a-zA-Z][a-zA-Z0-9_.-]*$`)

// DistributedLabelsHandler consults a LabelProvider each tick and decides
// whether the label set has changed enough, or enough resync time has
// elapsed, to warrant sending it again.
type DistributedLabelsHandler struct {
	provider        LabelProvider
	resyncInterval  time.Duration
	previous        []string
	lastSendAt      time.Time
	sentThisRound   bool
}

// NewDistributedLabelsHandler builds a handler sourcing labels from
// provider, resending at least every resyncInterval even if unchanged.
func NewDistributedLabelsHandler(provider LabelProvider, resyncInterval time.Duration) *DistributedLabelsHandler {
	return &DistributedLabelsHandler{provider: provider, resyncInterval: resyncInterval}
}

func (h *DistributedLabelsHandler) LabelsForRegistration() []string {
	labels := h.provider()
	h.previous = sortedCopy(labels)
	return labels
}

// LabelsForHeartbeat returns the labels to attach to this heartbeat, or
// nil if there is nothing new to send this round.
func (h *DistributedLabelsHandler) LabelsForHeartbeat(now time.Time) []string {
	current := h.provider()
	if current == nil {
		current = []string{}
	}

	changed := labelSetChanged(h.previous, current)
	resyncDue := h.lastSendAt.IsZero() || now.Sub(h.lastSendAt) >= h.resyncInterval

	if !changed && !resyncDue {
		h.sentThisRound = false
		return nil
	}

	for _, label := range current {
		if !labelNamePattern.MatchString(label) {
			// Invalid label locally; keep the previously accepted set and
			// try again next round instead of sending garbage upstream.
			h.sentThisRound = false
			return nil
		}
	}

	h.previous = sortedCopy(current)
	h.sentThisRound = true
	h.lastSendAt = now
	return current
}

func (h *DistributedLabelsHandler) VerifyRegistrationAck(accepted bool, diagnostics string) {
	h.VerifyHeartbeatAck(accepted, diagnostics)
}

func (h *DistributedLabelsHandler) VerifyHeartbeatAck(accepted bool, diagnostics string) {
	if !h.sentThisRound {
		return
	}
	logger := log.WithComponent("labels")
	if accepted {
		logger.Debug().Msg("node labels accepted")
	} else {
		logger.Warn().Str("diagnostics", diagnostics).Msg("node labels rejected")
	}
}

// Sent reports whether labels were actually transmitted on the most
// recent LabelsForHeartbeat call, for the caller's ack-logging decision.
func (h *DistributedLabelsHandler) Sent() bool {
	return h.sentThisRound
}

func labelSetChanged(previous, current []string) bool {
	if len(previous) != len(current) {
		return true
	}
	have := make(map[string]bool, len(previous))
	for _, l := range previous {
		have[l] = true
	}
	for _, l := range current {
		if !have[l] {
			return true
		}
	}
	return false
}

func sortedCopy(labels []string) []string {
	out := make([]string, len(labels))
	copy(out, labels)
	sort.Strings(out)
	return out
}

var (
	_ LabelsHandler = (*CentralizedLabelsHandler)(nil)
	_ LabelsHandler = (*DistributedLabelsHandler)(nil)
)
