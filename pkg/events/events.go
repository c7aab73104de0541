package events

import (
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	// CMgrCompletedContainers is published when the heartbeat response
	// lists containers the controller wants the containment subsystem to
	// clean up.
	CMgrCompletedContainers EventType = "cmgr.completed_containers"

	// CMgrCompletedApps is published for applications the controller
	// wants torn down.
	CMgrCompletedApps EventType = "cmgr.completed_apps"

	// CMgrUpdateContainers carries a containersToUpdate batch.
	CMgrUpdateContainers EventType = "cmgr.update_containers"

	// CMgrSignalContainers carries a containersToSignalList batch.
	CMgrSignalContainers EventType = "cmgr.signal_containers"

	// CMgrInstallSystemCredentials is published once per application the
	// controller sent fresh system credentials for, so the containment
	// subsystem can install them onto the running application.
	CMgrInstallSystemCredentials EventType = "cmgr.install_system_credentials"

	// CMgrCollectorAddressUpdated is published once per application whose
	// timeline-service-v2 collector address the controller accepted in a
	// heartbeat response, distinct from a containersToUpdate batch.
	CMgrCollectorAddressUpdated EventType = "cmgr.collector_address_updated"

	// NodeManagerShutdown is published when the controller directs an
	// orderly shutdown, or when the heartbeat loop exhausts its connect
	// retries.
	NodeManagerShutdown EventType = "nodemanager.shutdown"

	// NodeManagerResync is published when the controller directs a
	// resync: the loop's rmIdentifier is invalidated and an external
	// driver is expected to re-register.
	NodeManagerResync EventType = "nodemanager.resync"
)

// CleanupReason qualifies why the controller asked for a cleanup.
type CleanupReason string

// ReasonByController is the only reason the node status updater itself
// produces; containment-subsystem-initiated cleanups are out of its scope.
const ReasonByController CleanupReason = "by controller"

// Event represents a cluster event
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Broker manages event subscriptions and distribution
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100), // Buffer up to 100 events
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns a channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50) // Buffer per subscriber
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers
func (b *Broker) Publish(event *Event) {
	// Set timestamp if not set
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
