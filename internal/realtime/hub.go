package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/supportrelay/chat-relay/internal/domain"
	"github.com/supportrelay/chat-relay/internal/events"
	"github.com/supportrelay/chat-relay/internal/observability"
)

// Frame is the wire envelope pushed to subscribers.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Client is one realtime connection. Delivery is best-effort: the send
// channel is buffered and frames for a full channel are dropped so a
// slow socket never blocks a publisher. The mutex serializes enqueue
// against close; publishers may hold a client reference snapshotted
// before a concurrent Disconnect, and must never send on a closed
// channel.
type Client struct {
	id     string
	mu     sync.Mutex
	closed bool
	send   chan Frame
}

// NewClient allocates a connection handle with the given buffer size.
func NewClient(buffer int) *Client {
	if buffer <= 0 {
		buffer = 64
	}
	return &Client{
		id:   uuid.NewString(),
		send: make(chan Frame, buffer),
	}
}

// ID returns the connection identifier.
func (c *Client) ID() string { return c.id }

// Out is the stream of frames to write to the socket. Closed when the
// client is disconnected from the hub.
func (c *Client) Out() <-chan Frame { return c.send }

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// enqueue attempts a non-blocking send. Returns whether the frame was
// buffered and whether the client is still open.
func (c *Client) enqueue(frame Frame) (sent, open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, false
	}
	select {
	case c.send <- frame:
		return true, true
	default:
		return false, true
	}
}

// HistoryProvider supplies the transcript replayed on room join.
type HistoryProvider interface {
	Get(id string) (*domain.Conversation, error)
}

// Hub fans conversation and presence events out to subscribers. Every
// connection is a dashboard subscriber for global events; room
// subscriptions are per conversation via Join/Leave.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client

	history HistoryProvider
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewHub creates the hub.
func NewHub(history HistoryProvider, logger *zap.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		history: history,
		logger:  logger,
		metrics: metrics,
	}
}

// Connect registers a connection for global events.
func (h *Hub) Connect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

// Disconnect removes the connection from all rooms and closes its
// outbound stream.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	for threadID, room := range h.rooms {
		delete(room, c.id)
		if len(room) == 0 {
			delete(h.rooms, threadID)
		}
	}
	h.mu.Unlock()
	c.close()
}

// Join subscribes the connection to a conversation room and replays the
// current transcript once, to this connection only.
func (h *Hub) Join(c *Client, threadID string) {
	h.mu.Lock()
	room, ok := h.rooms[threadID]
	if !ok {
		room = make(map[string]*Client)
		h.rooms[threadID] = room
	}
	room[c.id] = c
	h.mu.Unlock()

	conv, err := h.history.Get(threadID)
	if err != nil {
		return
	}
	h.deliver(c, Frame{Event: "chat_history", Data: map[string]any{
		"thread_id": threadID,
		"messages":  conv.Messages,
		"status":    conv.Status,
	}})
}

// Leave unsubscribes the connection from a conversation room.
func (h *Hub) Leave(c *Client, threadID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[threadID]; ok {
		delete(room, c.id)
		if len(room) == 0 {
			delete(h.rooms, threadID)
		}
	}
}

// RegisterHandlers subscribes the hub to the event dispatcher. Room
// events go to the conversation's subscribers; presence snapshots go to
// every connection.
func (h *Hub) RegisterHandlers(dispatcher events.Dispatcher) {
	roomEvents := []events.EventType{
		events.EventNewMessage,
		events.EventChatResolved,
		events.EventChatReopened,
		events.EventAgentConnected,
		events.EventAgentRequired,
	}
	for _, eventType := range roomEvents {
		dispatcher.Subscribe(eventType, h.handleRoomEvent)
	}
	dispatcher.Subscribe(events.EventPresenceChanged, h.handlePresenceEvent)
}

func (h *Hub) handleRoomEvent(_ context.Context, event events.Event) error {
	h.metrics.RecordEvent(string(event.Type))
	frame := frameFor(event)

	h.mu.RLock()
	room := h.rooms[event.ThreadID]
	targets := make([]*Client, 0, len(room))
	for _, c := range room {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.deliver(c, frame)
	}
	return nil
}

func (h *Hub) handlePresenceEvent(_ context.Context, event events.Event) error {
	h.metrics.RecordEvent(string(event.Type))
	frame := frameFor(event)

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.deliver(c, frame)
	}
	return nil
}

// deliver enqueues without blocking; frames to a saturated client are
// dropped, frames to a disconnected client are discarded silently.
func (h *Hub) deliver(c *Client, frame Frame) {
	sent, open := c.enqueue(frame)
	if !sent && open {
		h.logger.Warn("dropping frame for slow subscriber",
			zap.String("client_id", c.id),
			zap.String("event", frame.Event))
	}
}

func frameFor(event events.Event) Frame {
	data := map[string]any{}
	if event.ThreadID != "" {
		data["thread_id"] = event.ThreadID
	}
	switch payload := event.Payload.(type) {
	case events.NewMessagePayload:
		data["message"] = payload.Message
	case events.AgentConnectedPayload:
		data["agent_name"] = payload.AgentName
		data["agent_email"] = payload.AgentEmail
	case events.PresenceChangedPayload:
		data["agents"] = payload.Agents
	}
	return Frame{Event: string(event.Type), Data: data}
}
