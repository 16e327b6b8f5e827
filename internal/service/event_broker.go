package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutorhub-api/internal/observability"
)

// Workflow event types.
const (
	EventApplicationSubmitted    = "upgrade_application.submitted"
	EventApplicationReviewed     = "upgrade_application.reviewed"
	EventAssignmentCreated       = "assignment.created"
	EventAssignmentAccepted      = "assignment.accepted"
	EventAssignmentDeclined      = "assignment.declined"
	EventAssignmentStatusUpdated = "assignment.status_updated"
)

// Event is emitted after every successful workflow transition.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	EntityType  string    `json:"entity_type"`
	EntityID    uint      `json:"entity_id"`
	ActorID     uint      `json:"actor_id"`
	RecipientID uint      `json:"recipient_id,omitempty"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// EventPublisher is the fire-and-forget sink workflows report transitions to.
type EventPublisher interface {
	Publish(ctx context.Context, event Event)
}

// EventListener receives events synchronously and must not block.
type EventListener func(Event)

type eventEnvelope struct {
	Source string `json:"source"`
	Event  Event  `json:"event"`
}

// EventBroker fans events out to registered listeners, external sinks and,
// when configured, to other API nodes over Redis pub/sub and NATS.
type EventBroker struct {
	mu        sync.RWMutex
	listeners map[uint64]EventListener
	nextID    uint64
	sinks     []EventPublisher

	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string

	nodeID string
	logger zerolog.Logger
}

// NewEventBroker builds a broker. Relays are attached with WithRedis/WithNATS.
func NewEventBroker(logger zerolog.Logger) *EventBroker {
	return &EventBroker{
		listeners: make(map[uint64]EventListener),
		nodeID:    uuid.NewString(),
		logger:    logger.With().Str("component", "event_broker").Logger(),
	}
}

// WithRedis relays events through a Redis pub/sub channel.
func (b *EventBroker) WithRedis(client *redis.Client, channelBase string) *EventBroker {
	if client != nil && channelBase != "" {
		b.redis = client
		b.redisChannel = channelBase + ":workflow-events"
	}
	return b
}

// WithNATS relays events through a NATS subject.
func (b *EventBroker) WithNATS(conn *nats.Conn, channelBase string) *EventBroker {
	if conn != nil && channelBase != "" {
		b.nats = conn
		b.natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".workflow-events"
	}
	return b
}

// AddSink forwards every locally published event to an extra publisher.
func (b *EventBroker) AddSink(sink EventPublisher) {
	if sink == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, sink)
}

// Subscribe registers a listener and returns the function that removes it.
func (b *EventBroker) Subscribe(listener EventListener) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = listener
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers the event locally, forwards it to sinks and relays it to other nodes.
func (b *EventBroker) Publish(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	observability.WorkflowEvents().WithLabelValues(event.Type).Inc()
	b.deliver(event)

	b.mu.RLock()
	sinks := append([]EventPublisher(nil), b.sinks...)
	b.mu.RUnlock()
	for _, sink := range sinks {
		sink.Publish(ctx, event)
	}

	if err := b.relay(ctx, event); err != nil {
		b.logger.Warn().Err(err).Str("event_type", event.Type).Msg("failed to relay workflow event")
	}
}

// Start consumes relayed events from other nodes until ctx is done.
func (b *EventBroker) Start(ctx context.Context) {
	if b.redis != nil {
		go b.consumeRedis(ctx)
	}
	if b.nats != nil {
		go b.consumeNATS(ctx)
	}
}

func (b *EventBroker) deliver(event Event) {
	b.mu.RLock()
	listeners := make([]EventListener, 0, len(b.listeners))
	for _, listener := range b.listeners {
		listeners = append(listeners, listener)
	}
	b.mu.RUnlock()

	for _, listener := range listeners {
		listener(event)
	}
}

func (b *EventBroker) relay(ctx context.Context, event Event) error {
	if b.redis == nil && b.nats == nil {
		return nil
	}

	payload, err := json.Marshal(eventEnvelope{Source: b.nodeID, Event: event})
	if err != nil {
		return err
	}

	if b.redis != nil {
		if err := b.redis.Publish(ctx, b.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if b.nats != nil {
		if err := b.nats.Publish(b.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (b *EventBroker) consumeRedis(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, b.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			b.logger.Error().Err(err).Msg("workflow event redis subscription closed")
			return
		}
		b.handleRelayed([]byte(msg.Payload))
	}
}

func (b *EventBroker) consumeNATS(ctx context.Context) {
	sub, err := b.nats.Subscribe(b.natsSubject, func(msg *nats.Msg) {
		b.handleRelayed(msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to workflow event subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain workflow event subscription")
		}
	}()
}

func (b *EventBroker) handleRelayed(payload []byte) {
	var envelope eventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		b.logger.Warn().Err(err).Msg("invalid workflow event payload")
		return
	}

	if envelope.Source == b.nodeID {
		return
	}

	b.deliver(envelope.Event)
}
