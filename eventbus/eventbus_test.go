package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishAndReceive(t *testing.T) {
	bus := New()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	bus.Publish(ServerEvent{
		EventType:  "proposal_updated",
		ResourceID: "p-1",
		ActorID:    "user-1",
		Timestamp:  "2026-01-01T00:00:00Z",
	})

	select {
	case event := <-ch:
		assert.Equal(t, "proposal_updated", event.EventType)
		assert.Equal(t, "p-1", event.ResourceID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishWithNoSubscribersDoesNotBlock(t *testing.T) {
	bus := New()
	done := make(chan struct{})
	go func() {
		bus.Publish(ServerEvent{EventType: "test", ResourceID: "x", ActorID: "a", Timestamp: "2026-01-01T00:00:00Z"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish with no subscribers should not block")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New()
	ch, unsubscribe := bus.Subscribe()
	unsubscribe()

	require.Equal(t, 0, bus.SubscriberCount())
	_, stillOpen := <-ch
	assert.False(t, stillOpen, "channel should be closed after unsubscribe")
}
