package dto

import (
	"time"

	"github.com/supportrelay/chat-relay/internal/domain"
)

// NewThreadResponse is returned on conversation creation.
type NewThreadResponse struct {
	ThreadID string `json:"thread_id"`
}

// ThreadRequest addresses a conversation by id.
type ThreadRequest struct {
	ThreadID string `json:"thread_id"`
}

// AskResponse is the outcome of a user turn.
type AskResponse struct {
	Success        bool    `json:"success"`
	Response       string  `json:"response,omitempty"`
	File           *string `json:"file,omitempty"`
	AgentConnected bool    `json:"agent_connected"`
}

// ChatListResponse wraps conversation summaries.
type ChatListResponse struct {
	Chats []domain.ConversationSummary `json:"chats"`
}

// AgentChat is the dashboard view of an escalated conversation,
// transcript included.
type AgentChat struct {
	ThreadID      string                    `json:"thread_id"`
	Status        domain.ConversationStatus `json:"status"`
	CreatedAt     time.Time                 `json:"created_at"`
	LastActivity  time.Time                 `json:"last_activity"`
	Messages      []domain.Message          `json:"messages"`
	AgentRequired bool                      `json:"agent_required"`
	AssignedAgent *string                   `json:"assigned_agent,omitempty"`
	WasReopened   bool                      `json:"was_reopened"`
}

// AgentChatListResponse wraps dashboard conversations.
type AgentChatListResponse struct {
	Chats []AgentChat `json:"chats"`
}

// MessagesResponse is the full transcript of a conversation.
type MessagesResponse struct {
	Messages []domain.Message          `json:"messages"`
	Status   domain.ConversationStatus `json:"status"`
}

// ConnectAgentResponse reports the assigned agent.
type ConnectAgentResponse struct {
	Success   bool   `json:"success"`
	AgentName string `json:"agent_name,omitempty"`
}
