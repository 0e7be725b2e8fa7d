package realtime

import (
	"context"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// PresenceSetter lets the transport forward agent presence
// announcements without depending on the service layer.
type PresenceSetter interface {
	SetPresence(ctx context.Context, email string, online bool)
}

// inboundFrame is what connections send us: room subscription and
// agent presence announcements.
type inboundFrame struct {
	Event    string `json:"event"`
	ThreadID string `json:"thread_id"`
	Email    string `json:"email"`
}

// WSHandler serves the bidirectional realtime channel on /ws.
type WSHandler struct {
	hub      *Hub
	presence PresenceSetter
	buffer   int
	logger   *zap.Logger
}

// NewWSHandler constructs the handler.
func NewWSHandler(hub *Hub, presence PresenceSetter, buffer int, logger *zap.Logger) *WSHandler {
	return &WSHandler{hub: hub, presence: presence, buffer: buffer, logger: logger}
}

// UpgradeGate rejects plain HTTP requests on the websocket path.
func (h *WSHandler) UpgradeGate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// Handler upgrades and serves the connection.
func (h *WSHandler) Handler() fiber.Handler {
	return websocket.New(h.serve)
}

func (h *WSHandler) serve(conn *websocket.Conn) {
	client := NewClient(h.buffer)
	h.hub.Connect(client)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for frame := range client.Out() {
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}()

	// Email announced via agent_online on this connection; dropping the
	// socket without an explicit agent_offline marks the agent offline.
	announced := ""

	for {
		var in inboundFrame
		if err := conn.ReadJSON(&in); err != nil {
			break
		}
		switch in.Event {
		case "join":
			if in.ThreadID != "" {
				h.hub.Join(client, in.ThreadID)
			}
		case "leave":
			if in.ThreadID != "" {
				h.hub.Leave(client, in.ThreadID)
			}
		case "agent_online":
			if in.Email != "" {
				announced = in.Email
				h.presence.SetPresence(context.Background(), in.Email, true)
			}
		case "agent_offline":
			if in.Email != "" {
				if in.Email == announced {
					announced = ""
				}
				h.presence.SetPresence(context.Background(), in.Email, false)
			}
		default:
			h.logger.Debug("unknown realtime frame", zap.String("event", in.Event))
		}
	}

	h.hub.Disconnect(client)
	<-writerDone
	if announced != "" {
		h.presence.SetPresence(context.Background(), announced, false)
	}
}
