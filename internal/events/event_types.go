package events

import (
	"time"

	"github.com/supportrelay/chat-relay/internal/domain"
)

// EventType enumerates supported event identifiers. Room-scoped types
// carry the wire name pushed to conversation subscribers; presence is
// broadcast to dashboard subscribers only.
type EventType string

const (
	EventNewMessage      EventType = "new_message"
	EventChatResolved    EventType = "chat_resolved"
	EventChatReopened    EventType = "chat_reopened"
	EventAgentConnected  EventType = "agent_connected"
	EventAgentRequired   EventType = "agent_required"
	EventPresenceChanged EventType = "active_agents"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ThreadID  string      `json:"thread_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewMessagePayload payload.
type NewMessagePayload struct {
	Message domain.Message `json:"message"`
}

// AgentConnectedPayload payload.
type AgentConnectedPayload struct {
	AgentEmail string `json:"agent_email"`
	AgentName  string `json:"agent_name"`
}

// PresenceChangedPayload carries the full active_agents snapshot; the
// dashboard always receives the whole set, not a diff.
type PresenceChangedPayload struct {
	Agents []domain.Agent `json:"agents"`
}
