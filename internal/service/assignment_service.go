package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/supportrelay/chat-relay/internal/events"
	"github.com/supportrelay/chat-relay/internal/repository"
	apperrors "github.com/supportrelay/chat-relay/pkg/util/errorutil"
)

// AssignmentService binds escalated conversations to online agents
// using a least-loaded policy. Its mutex makes the conversation and
// agent mutations atomic with respect to concurrent escalations of the
// same conversation.
type AssignmentService struct {
	mu         sync.Mutex
	store      *repository.ConversationStore
	registry   *repository.AgentRegistry
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	Store      *repository.ConversationStore
	Registry   *repository.AgentRegistry
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		store:      deps.Store,
		registry:   deps.Registry,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// Assign selects the least-loaded online agent for the conversation and
// records the binding. Ties keep first-registered priority. When the
// conversation is already bound to an online agent that agent keeps it;
// when it lands on a different agent the previous binding is released
// first so neither agent's load drifts. With no online agents nothing
// is mutated and AGENT_UNAVAILABLE is returned.
func (s *AssignmentService) Assign(ctx context.Context, conversationID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.store.Get(conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			return "", apperrors.NewNotFound("conversation", map[string]any{"thread_id": conversationID})
		}
		return "", apperrors.MapError(err)
	}

	if conv.AssignedAgent != nil {
		if agent, ok := s.registry.Get(*conv.AssignedAgent); ok && agent.Online {
			// Re-occupy the slot: a resolve may have released it. Bind is
			// idempotent, so a still-bound agent's load does not move.
			s.registry.Bind(agent.Email, conversationID)
			s.publishPresence(ctx)
			return agent.Email, nil
		}
	}

	candidates := s.registry.Candidates()
	if len(candidates) == 0 {
		return "", apperrors.NewAgentUnavailable(map[string]any{"thread_id": conversationID})
	}

	chosen := candidates[0]
	for _, candidate := range candidates[1:] {
		if candidate.Load < chosen.Load {
			chosen = candidate
		}
	}

	if conv.AssignedAgent != nil && *conv.AssignedAgent != chosen.Email {
		s.registry.Unbind(*conv.AssignedAgent, conversationID)
	}
	s.registry.Bind(chosen.Email, conversationID)
	if err := s.store.SetAssignedAgent(conversationID, chosen.Email); err != nil {
		s.registry.Unbind(chosen.Email, conversationID)
		return "", apperrors.MapError(err)
	}

	s.logger.Info("conversation assigned",
		zap.String("thread_id", conversationID),
		zap.String("agent", chosen.Email))
	s.publishPresence(ctx)
	return chosen.Email, nil
}

// Release drops the binding slot for a resolved conversation's agent.
func (s *AssignmentService) Release(ctx context.Context, conversationID, agentEmail string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registry.Unbind(agentEmail, conversationID)
	s.publishPresence(ctx)
}

func (s *AssignmentService) publishPresence(ctx context.Context) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventPresenceChanged,
		Timestamp: time.Now(),
		Payload:   events.PresenceChangedPayload{Agents: s.registry.Snapshot()},
	})
}
