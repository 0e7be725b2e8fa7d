package domain

import "time"

// ConversationStatus enumerates lifecycle states for conversations.
type ConversationStatus string

const (
	ConversationInProgress ConversationStatus = "in_progress"
	ConversationResolved   ConversationStatus = "resolved"
)

// MessageRole indicates who authored a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleAgent     MessageRole = "agent"
	RoleSystem    MessageRole = "system"
)

// Message is a single entry of a conversation transcript. Immutable
// once appended. Sender identifies the authoring agent for agent-role
// messages; other roles leave it empty.
type Message struct {
	ID                   string      `json:"id"`
	Role                 MessageRole `json:"role"`
	Content              string      `json:"content"`
	Sender               string      `json:"sender,omitempty"`
	FileURL              *string     `json:"file,omitempty"`
	AgentConnectedNotice bool        `json:"isAgentConnectedMessage,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
}

// Conversation is the aggregate for one end-user support session.
type Conversation struct {
	ID            string
	Messages      []Message
	Status        ConversationStatus
	Escalated     bool
	AssignedAgent *string
	WasReopened   bool
	CreatedAt     time.Time
	LastActivity  time.Time
	ResolvedAt    *time.Time

	// Seq is the creation order, used as a stable tie-break when
	// listing conversations with equal LastActivity.
	Seq uint64
}

// LastMessage returns the content of the newest message, or "" for an
// empty transcript.
func (c *Conversation) LastMessage() string {
	if len(c.Messages) == 0 {
		return ""
	}
	return c.Messages[len(c.Messages)-1].Content
}

// ConversationSummary is the listing projection of a conversation.
type ConversationSummary struct {
	ThreadID      string             `json:"thread_id"`
	Status        ConversationStatus `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
	LastActivity  time.Time          `json:"last_activity"`
	LastMessage   string             `json:"last_message"`
	AgentRequired bool               `json:"agent_required"`
	AssignedAgent *string            `json:"assigned_agent,omitempty"`
	WasReopened   bool               `json:"was_reopened"`
	ResolvedAt    *time.Time         `json:"resolved_at,omitempty"`
}
