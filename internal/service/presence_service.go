package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/supportrelay/chat-relay/internal/events"
	"github.com/supportrelay/chat-relay/internal/repository"
)

// PresenceService applies agent presence announcements and broadcasts
// the active_agents snapshot to dashboard subscribers on every change.
type PresenceService struct {
	registry   *repository.AgentRegistry
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewPresenceService creates the service.
func NewPresenceService(registry *repository.AgentRegistry, dispatcher events.Dispatcher, logger *zap.Logger) *PresenceService {
	return &PresenceService{registry: registry, dispatcher: dispatcher, logger: logger}
}

// SetPresence flips an agent online or offline, registering it on first
// sight, and pushes the full presence snapshot.
func (s *PresenceService) SetPresence(ctx context.Context, email string, online bool) {
	agent := s.registry.SetOnline(email, online)
	s.logger.Info("agent presence changed",
		zap.String("agent", agent.Email),
		zap.Bool("online", agent.Online),
		zap.Int("load", agent.Load))

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
