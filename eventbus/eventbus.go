// Package eventbus is an in-process broadcast bus for SSE notifications:
// proposal_updated, review_submitted, config_changed, audit_event. It is
// the idiomatic Go substitute for tokio::sync::broadcast — a mutex-guarded
// subscriber set, each with its own buffered channel, guarded by a
// plain sync.Mutex.
package eventbus

import (
	"sync"
)

// Capacity bounds each subscriber's buffer. A subscriber that falls this
// far behind starts missing events — acceptable for notification-style SSE
// where a client can simply reconnect and re-fetch current state.
const Capacity = 256

// ServerEvent is broadcast to every active subscriber.
type ServerEvent struct {
	EventType   string                 `json:"eventType"`
	WorkspaceID *string                `json:"workspaceId,omitempty"`
	ResourceID  string                 `json:"resourceId"`
	ActorID     string                 `json:"actorId"`
	Timestamp   string                 `json:"timestamp"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// Bus fans a published event out to every subscriber. The zero value is
// not usable; use New.
type Bus struct {
	mu          sync.Mutex
	subscribers map[int]chan ServerEvent
	nextID      int
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{subscribers: make(map[int]chan ServerEvent)}
}

// Subscribe registers a new listener and returns its channel plus an
// unsubscribe func the caller must invoke when done (e.g. on SSE
// disconnect) to release the channel.
func (b *Bus) Subscribe() (<-chan ServerEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan ServerEvent, Capacity)
	b.subscribers[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(existing)
		}
	}
	return ch, unsubscribe
}

// Publish fans event out to every subscriber without blocking. A
// subscriber whose buffer is full drops the event rather than stalling the
// publisher; publishing with zero subscribers is a silent no-op.
func (b *Bus) Publish(event ServerEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount reports the number of active subscribers, mostly useful
// for metrics/diagnostics.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
