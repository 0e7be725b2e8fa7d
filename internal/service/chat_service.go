package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/supportrelay/chat-relay/internal/assistant"
	"github.com/supportrelay/chat-relay/internal/domain"
	"github.com/supportrelay/chat-relay/internal/events"
	"github.com/supportrelay/chat-relay/internal/repository"
	apperrors "github.com/supportrelay/chat-relay/pkg/util/errorutil"
)

// ChatService orchestrates the conversation lifecycle: user turns
// through the assistant bridge, escalation to human agents, agent
// replies, and status transitions.
type ChatService struct {
	store       *repository.ConversationStore
	assignments *AssignmentService
	bridge      assistant.Bridge
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// ChatDependencies bundles collaborators.
type ChatDependencies struct {
	Store       *repository.ConversationStore
	Assignments *AssignmentService
	Bridge      assistant.Bridge
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewChatService creates the service.
func NewChatService(deps ChatDependencies) *ChatService {
	return &ChatService{
		store:       deps.Store,
		assignments: deps.Assignments,
		bridge:      deps.Bridge,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
	}
}

// TurnResult is the outcome of a user turn.
type TurnResult struct {
	Response       string
	FileURL        *string
	AgentConnected bool
}

// StartConversation opens an assistant thread and registers the
// conversation under its id.
func (s *ChatService) StartConversation(ctx context.Context) (string, error) {
	threadID, err := s.bridge.CreateThread(ctx)
	if err != nil {
		return "", apperrors.NewUpstreamFailure(err)
	}
	conv := s.store.Create(threadID)
	s.logger.Info("conversation started", zap.String("thread_id", conv.ID))
	return conv.ID, nil
}

// SubmitUserTurn appends the user message and, unless the conversation
// is already escalated, runs an assistant turn. An escalation tool
// request triggers agent assignment mid-run; the tool outcome is
// acknowledged back through the bridge before the run continues. A
// bridge failure surfaces as UPSTREAM_FAILURE with all prior messages
// retained.
func (s *ChatService) SubmitUserTurn(ctx context.Context, threadID, question string, fileURL *string) (*TurnResult, error) {
	conv, err := s.store.Get(threadID)
	if err != nil {
		return nil, s.mapStoreErr(err, threadID)
	}

	userMsg, err := s.store.AppendMessage(threadID, domain.Message{
		Role:    domain.RoleUser,
		Content: question,
		FileURL: fileURL,
	})
	if err != nil {
		return nil, s.mapStoreErr(err, threadID)
	}
	s.publish(ctx, events.EventNewMessage, threadID, events.NewMessagePayload{Message: userMsg})

	// Escalated conversations are human-handled: no further automatic
	// assistant turns.
	if conv.Escalated {
		return &TurnResult{FileURL: fileURL, AgentConnected: true}, nil
	}

	reply, err := s.bridge.SubmitTurn(ctx, threadID, question, s.toolHandler(ctx, threadID))
	if err != nil {
		s.logger.Error("assistant turn failed",
			zap.String("thread_id", threadID),
			zap.Error(err))
		return nil, apperrors.NewUpstreamFailure(err)
	}

	assistantMsg, err := s.store.AppendMessage(threadID, domain.Message{
		Role:    domain.RoleAssistant,
		Content: reply,
	})
	if err != nil {
		return nil, s.mapStoreErr(err, threadID)
	}
	s.publish(ctx, events.EventNewMessage, threadID, events.NewMessagePayload{Message: assistantMsg})

	latest, err := s.store.Get(threadID)
	if err != nil {
		return nil, s.mapStoreErr(err, threadID)
	}
	return &TurnResult{
		Response:       reply,
		FileURL:        fileURL,
		AgentConnected: latest.Escalated,
	}, nil
}

// toolHandler resolves tool requests surfaced mid-run. Only escalation
// is supported; anything else is acknowledged as unsupported so the run
// can terminate cleanly.
func (s *ChatService) toolHandler(ctx context.Context, threadID string) assistant.ToolHandler {
	return func(req assistant.ToolRequest) assistant.ToolOutcome {
		switch req.Action {
		case assistant.ToolActionEscalate:
			return s.escalateFromTool(ctx, threadID)
		default:
			s.logger.Warn("unsupported tool action requested",
				zap.String("thread_id", threadID),
				zap.String("call_id", req.CallID))
			return assistant.ToolOutcome{Success: false, Message: "unsupported tool action"}
		}
	}
}

func (s *ChatService) escalateFromTool(ctx context.Context, threadID string) assistant.ToolOutcome {
	agentEmail, err := s.assignments.Assign(ctx, threadID)
	if err != nil {
		if isAgentUnavailable(err) {
			s.markRequiringAgent(ctx, threadID)
			return assistant.ToolOutcome{Success: false, Message: "no agent available"}
		}
		s.logger.Error("escalation failed",
			zap.String("thread_id", threadID),
			zap.Error(err))
		return assistant.ToolOutcome{Success: false, Message: "escalation failed"}
	}

	s.appendSystemNotice(ctx, threadID, "Connecting you to an agent...")
	s.publish(ctx, events.EventAgentConnected, threadID, events.AgentConnectedPayload{
		AgentEmail: agentEmail,
		AgentName:  agentEmail,
	})
	s.publish(ctx, events.EventAgentRequired, threadID, nil)
	return assistant.ToolOutcome{Success: true, Message: "Connected to agent"}
}

// ConnectAgent is the manual escalation path. On success the chosen
// agent's identity is returned; with no online agent the conversation
// is still marked as requiring one, a system notice is appended, and
// AGENT_UNAVAILABLE surfaces so the caller can retry later.
func (s *ChatService) ConnectAgent(ctx context.Context, threadID string) (string, error) {
	if _, err := s.store.Get(threadID); err != nil {
		return "", s.mapStoreErr(err, threadID)
	}

	agentEmail, err := s.assignments.Assign(ctx, threadID)
	if err != nil {
		if isAgentUnavailable(err) {
			s.markRequiringAgent(ctx, threadID)
		}
		return "", err
	}

	s.appendSystemNotice(ctx, threadID,
		fmt.Sprintf("You've been connected to %s. They will respond shortly.", agentEmail))
	s.publish(ctx, events.EventAgentConnected, threadID, events.AgentConnectedPayload{
		AgentEmail: agentEmail,
		AgentName:  agentEmail,
	})
	s.publish(ctx, events.EventAgentRequired, threadID, nil)
	return agentEmail, nil
}

// markRequiringAgent records the escalation need when no agent could be
// assigned, so a later retry can succeed.
func (s *ChatService) markRequiringAgent(ctx context.Context, threadID string) {
	if err := s.store.MarkEscalated(threadID); err != nil {
		return
	}
	s.appendSystemNotice(ctx, threadID,
		"All agents are currently busy. You'll be connected as soon as one is available.")
	s.publish(ctx, events.EventAgentRequired, threadID, nil)
}

// Resolve closes the conversation and releases the assigned agent's
// slot so least-loaded selection stays honest. The assignment record on
// the conversation is kept for the dashboard history; a reopen re-binds
// through the assignment engine.
func (s *ChatService) Resolve(ctx context.Context, threadID string) error {
	conv, err := s.store.Get(threadID)
	if err != nil {
		return s.mapStoreErr(err, threadID)
	}
	if err := s.store.Resolve(threadID); err != nil {
		return s.mapStoreErr(err, threadID)
	}
	if conv.AssignedAgent != nil {
		s.assignments.Release(ctx, threadID, *conv.AssignedAgent)
	}
	s.publish(ctx, events.EventChatResolved, threadID, nil)
	return nil
}

// Reopen returns a resolved conversation to in_progress. Reopened chats
// go straight to the human queue.
func (s *ChatService) Reopen(ctx context.Context, threadID string) error {
	if err := s.store.Reopen(threadID); err != nil {
		return s.mapStoreErr(err, threadID)
	}
	s.publish(ctx, events.EventChatReopened, threadID, nil)
	return nil
}

// SendAgentMessage appends a human agent reply attributed to sender.
// Agent replies bypass the assistant bridge entirely.
func (s *ChatService) SendAgentMessage(ctx context.Context, threadID, sender, content string, fileURL *string) error {
	msg, err := s.store.AppendMessage(threadID, domain.Message{
		Role:    domain.RoleAgent,
		Sender:  sender,
		Content: content,
		FileURL: fileURL,
	})
	if err != nil {
		return s.mapStoreErr(err, threadID)
	}
	s.publish(ctx, events.EventNewMessage, threadID, events.NewMessagePayload{Message: msg})
	return nil
}

// Transcript returns the full message list and status.
func (s *ChatService) Transcript(threadID string) ([]domain.Message, domain.ConversationStatus, error) {
	conv, err := s.store.Get(threadID)
	if err != nil {
		return nil, "", s.mapStoreErr(err, threadID)
	}
	return conv.Messages, conv.Status, nil
}

// ListConversations yields summaries ordered by last activity,
// optionally restricted to conversations requiring an agent.
func (s *ChatService) ListConversations(escalatedOnly bool) iter.Seq[domain.ConversationSummary] {
	return s.store.List(repository.ListFilter{EscalatedOnly: escalatedOnly})
}

// TranscriptDetail returns the full conversation snapshot for the
// escalated-conversations dashboard view.
func (s *ChatService) TranscriptDetail(threadID string) (*domain.Conversation, error) {
	conv, err := s.store.Get(threadID)
	if err != nil {
		return nil, s.mapStoreErr(err, threadID)
	}
	return conv, nil
}

func (s *ChatService) appendSystemNotice(ctx context.Context, threadID, content string) {
	msg, err := s.store.AppendMessage(threadID, domain.Message{
		Role:                 domain.RoleSystem,
		Content:              content,
		AgentConnectedNotice: true,
	})
	if err != nil {
		return
	}
	s.publish(ctx, events.EventNewMessage, threadID, events.NewMessagePayload{Message: msg})
}

func (s *ChatService) publish(ctx context.Context, eventType events.EventType, threadID string, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ThreadID:  threadID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

func (s *ChatService) mapStoreErr(err error, threadID string) error {
	if errors.Is(err, repository.ErrConversationNotFound) {
		return apperrors.NewNotFound("conversation", map[string]any{"thread_id": threadID})
	}
	return apperrors.MapError(err)
}

func isAgentUnavailable(err error) bool {
	domainErr := apperrors.ToDomainError(err)
	return domainErr != nil && domainErr.Code == "AGENT_UNAVAILABLE"
}
