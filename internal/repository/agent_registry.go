package repository

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/supportrelay/chat-relay/internal/domain"
)

// agentRecord is the internal mutable presence state for one agent.
type agentRecord struct {
	email        string
	online       bool
	assigned     map[string]struct{}
	assignOrder  []string
	registeredAt int
}

// AgentRegistry tracks known agents, their presence and their current
// conversation load. Agents are created on first sight and never
// removed; going offline only flips the flag.
type AgentRegistry struct {
	mu      sync.RWMutex
	agents  map[string]*agentRecord
	nextReg int
	logger  *zap.Logger
}

// NewAgentRegistry creates an empty registry.
func NewAgentRegistry(logger *zap.Logger) *AgentRegistry {
	return &AgentRegistry{
		agents: make(map[string]*agentRecord),
		logger: logger,
	}
}

// SetOnline updates presence, implicitly registering the agent on first
// sight with zero load. Returns the updated snapshot.
func (r *AgentRegistry) SetOnline(email string, online bool) domain.Agent {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.agents[email]
	if !ok {
		rec = &agentRecord{
			email:        email,
			assigned:     make(map[string]struct{}),
			registeredAt: r.nextReg,
		}
		r.nextReg++
		r.agents[email] = rec
	}
	rec.online = online
	return snapshotAgent(rec)
}

// Bind adds a conversation to the agent's assigned set, incrementing
// load. Binding an unknown agent is a no-op anomaly: presence must have
// been announced first for any assignment to reasonably occur.
// Idempotent per (agent, conversation) pair.
func (r *AgentRegistry) Bind(email, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.agents[email]
	if !ok {
		r.logger.Warn("bind for unregistered agent",
			zap.String("agent", email),
			zap.String("thread_id", conversationID))
		return
	}
	if _, bound := rec.assigned[conversationID]; bound {
		return
	}
	rec.assigned[conversationID] = struct{}{}
	rec.assignOrder = append(rec.assignOrder, conversationID)
}

// Unbind releases a conversation slot. No-op if not bound.
func (r *AgentRegistry) Unbind(email, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.agents[email]
	if !ok {
		return
	}
	if _, bound := rec.assigned[conversationID]; !bound {
		return
	}
	delete(rec.assigned, conversationID)
	for i, id := range rec.assignOrder {
		if id == conversationID {
			rec.assignOrder = append(rec.assignOrder[:i], rec.assignOrder[i+1:]...)
			break
		}
	}
}

// Candidates returns online agents in registration order. The stable
// ordering makes least-loaded selection deterministic: equal loads keep
// first-registered priority.
func (r *AgentRegistry) Candidates() []domain.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := make([]domain.Agent, 0, len(r.agents))
	for _, rec := range r.agents {
		if !rec.online {
			continue
		}
		candidates = append(candidates, snapshotAgent(rec))
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].RegisteredAt < candidates[j].RegisteredAt
	})
	return candidates
}

// Snapshot returns all known agents in registration order, online or
// not, for the dashboard presence broadcast.
func (r *AgentRegistry) Snapshot() []domain.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]domain.Agent, 0, len(r.agents))
	for _, rec := range r.agents {
		agents = append(agents, snapshotAgent(rec))
	}
	sort.Slice(agents, func(i, j int) bool {
		return agents[i].RegisteredAt < agents[j].RegisteredAt
	})
	return agents
}

// Get returns the agent snapshot, if known.
func (r *AgentRegistry) Get(email string) (domain.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.agents[email]
	if !ok {
		return domain.Agent{}, false
	}
	return snapshotAgent(rec), true
}

func snapshotAgent(rec *agentRecord) domain.Agent {
	assigned := make([]string, len(rec.assignOrder))
	copy(assigned, rec.assignOrder)
	return domain.Agent{
		Email:                 rec.email,
		Online:                rec.online,
		Load:                  len(rec.assigned),
		AssignedConversations: assigned,
		RegisteredAt:          rec.registeredAt,
	}
}
