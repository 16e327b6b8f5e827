package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestEventBrokerSubscribeAndUnsubscribe(t *testing.T) {
	broker := NewEventBroker(testLogger())
	ctx := context.Background()

	var received []Event
	var mu sync.Mutex
	unsubscribe := broker.Subscribe(func(event Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, event)
	})

	broker.Publish(ctx, Event{Type: EventAssignmentCreated, EntityType: EntityAssignment, EntityID: 7})
	unsubscribe()
	unsubscribe()
	broker.Publish(ctx, Event{Type: EventAssignmentAccepted, EntityType: EntityAssignment, EntityID: 7})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	require.Equal(t, EventAssignmentCreated, received[0].Type)
	require.NotEmpty(t, received[0].ID)
	require.False(t, received[0].OccurredAt.IsZero())
}

func TestEventBrokerForwardsToSinks(t *testing.T) {
	broker := NewEventBroker(testLogger())
	sink := &recordingPublisher{}
	broker.AddSink(sink)
	broker.AddSink(nil)

	broker.Publish(context.Background(), Event{ID: "fixed", Type: EventApplicationReviewed, RecipientID: 3})

	events := sink.snapshot()
	require.Len(t, events, 1)
	require.Equal(t, "fixed", events[0].ID)
	require.Equal(t, uint(3), events[0].RecipientID)
}

func TestEventBrokerRelaysThroughRedis(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	publisher := NewEventBroker(testLogger()).WithRedis(client, "tutorhub")
	consumer := NewEventBroker(testLogger()).WithRedis(client, "tutorhub")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consumer.Start(ctx)

	channel := "tutorhub:workflow-events"
	require.Eventually(t, func() bool {
		counts, err := client.PubSubNumSub(ctx, channel).Result()
		return err == nil && counts[channel] == 1
	}, 2*time.Second, 10*time.Millisecond)

	var relayed atomic.Int32
	consumer.Subscribe(func(event Event) {
		if event.Type == EventApplicationSubmitted && event.EntityID == 11 {
			relayed.Add(1)
		}
	})

	var local atomic.Int32
	consumer.Subscribe(func(event Event) {
		if event.Type == EventAssignmentDeclined {
			local.Add(1)
		}
	})

	publisher.Publish(ctx, Event{Type: EventApplicationSubmitted, EntityType: EntityUpgradeApplication, EntityID: 11})
	require.Eventually(t, func() bool { return relayed.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	consumer.Publish(ctx, Event{Type: EventAssignmentDeclined, EntityType: EntityAssignment, EntityID: 12})
	require.Equal(t, int32(1), local.Load())
	require.Never(t, func() bool { return local.Load() > 1 }, 200*time.Millisecond, 20*time.Millisecond)
}

func TestEventBrokerIgnoresInvalidRelayPayload(t *testing.T) {
	broker := NewEventBroker(testLogger())
	var count atomic.Int32
	broker.Subscribe(func(Event) { count.Add(1) })

	broker.handleRelayed([]byte("not json"))
	broker.handleRelayed([]byte(`{"source":"` + broker.nodeID + `","event":{"type":"assignment.created"}}`))
	broker.handleRelayed([]byte(`{"source":"other-node","event":{"type":"assignment.created"}}`))

	require.Equal(t, int32(1), count.Load())
}
