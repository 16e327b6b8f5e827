package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutorhub-api/internal/service"
)

const (
	eventFeedBuffer   = 32
	eventFeedPing     = 30 * time.Second
	eventFeedDeadline = 10 * time.Second
)

// EventSubscriber registers workflow event listeners.
type EventSubscriber interface {
	Subscribe(listener service.EventListener) func()
}

// UpgradeEventsHandler streams upgrade application events to admin dashboards so
// they can refresh the review queue without waiting for the next poll.
type UpgradeEventsHandler struct {
	events EventSubscriber
	logger zerolog.Logger
}

// NewUpgradeEventsHandler constructs the websocket feed handler.
func NewUpgradeEventsHandler(events EventSubscriber, logger zerolog.Logger) *UpgradeEventsHandler {
	return &UpgradeEventsHandler{
		events: events,
		logger: logger.With().Str("component", "upgrade_events_handler").Logger(),
	}
}

// Register binds the websocket route under the provided group.
func (h *UpgradeEventsHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *UpgradeEventsHandler) handleConnection(conn *websocket.Conn) {
	feed := make(chan service.Event, eventFeedBuffer)
	unsubscribe := h.events.Subscribe(func(event service.Event) {
		if event.EntityType != service.EntityUpgradeApplication {
			return
		}
		select {
		case feed <- event:
		default:
			h.logger.Warn().Str("event_id", event.ID).Msg("dropping event for slow websocket client")
		}
	})
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.logger.Info().Interface("user_id", conn.Locals("user_id")).Msg("upgrade event feed connected")
	defer h.logger.Info().Interface("user_id", conn.Locals("user_id")).Msg("upgrade event feed disconnected")

	ticker := time.NewTicker(eventFeedPing)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case event := <-feed:
			_ = conn.SetWriteDeadline(time.Now().Add(eventFeedDeadline))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(eventFeedDeadline))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
