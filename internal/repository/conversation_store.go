package repository

import (
	"errors"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/supportrelay/chat-relay/internal/domain"
)

// ErrConversationNotFound indicates an unknown conversation id.
var ErrConversationNotFound = errors.New("conversation not found")

// ListFilter narrows conversation listings.
type ListFilter struct {
	EscalatedOnly bool
}

// ConversationStore owns the authoritative in-memory conversation
// records. All mutation goes through its methods; callers only ever see
// copies. Conversations are never deleted for the process lifetime.
type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]*domain.Conversation
	seq           uint64
	now           func() time.Time
}

// NewConversationStore creates an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		conversations: make(map[string]*domain.Conversation),
		now:           time.Now,
	}
}

// Create registers a new conversation under the given id (the assistant
// thread id), or a fresh uuid when empty.
func (s *ConversationStore) Create(id string) *domain.Conversation {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.seq++
	conv := &domain.Conversation{
		ID:           id,
		Messages:     []domain.Message{},
		Status:       domain.ConversationInProgress,
		CreatedAt:    now,
		LastActivity: now,
		Seq:          s.seq,
	}
	s.conversations[id] = conv
	return copyConversation(conv)
}

// AppendMessage appends to the transcript and bumps LastActivity. The
// stored message gets its id and timestamp here; the returned value is
// what subscribers should see.
func (s *ConversationStore) AppendMessage(id string, msg domain.Message) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return domain.Message{}, ErrConversationNotFound
	}

	msg.ID = uuid.NewString()
	msg.CreatedAt = s.now()
	conv.Messages = append(conv.Messages, msg)
	conv.LastActivity = msg.CreatedAt
	return msg, nil
}

// Resolve transitions the conversation to resolved and stamps ResolvedAt.
func (s *ConversationStore) Resolve(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return ErrConversationNotFound
	}
	now := s.now()
	conv.Status = domain.ConversationResolved
	conv.ResolvedAt = &now
	return nil
}

// Reopen returns a resolved conversation to in_progress. Reopened chats
// always require a human agent; WasReopened stays sticky.
func (s *ConversationStore) Reopen(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return ErrConversationNotFound
	}
	conv.Status = domain.ConversationInProgress
	conv.WasReopened = true
	conv.Escalated = true
	conv.LastActivity = s.now()
	return nil
}

// MarkEscalated flags the conversation as requiring a human agent.
// Idempotent.
func (s *ConversationStore) MarkEscalated(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return ErrConversationNotFound
	}
	conv.Escalated = true
	return nil
}

// SetAssignedAgent binds the conversation to an agent. An assigned
// conversation is always escalated, preserving the invariant that
// AssignedAgent implies Escalated.
func (s *ConversationStore) SetAssignedAgent(id string, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return ErrConversationNotFound
	}
	conv.Escalated = true
	conv.AssignedAgent = &email
	return nil
}

// Get returns a deep copy of the conversation.
func (s *ConversationStore) Get(id string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return copyConversation(conv), nil
}

// List yields conversation summaries ordered by LastActivity descending,
// ties broken by creation order. The sequence is finite and restartable:
// each range re-yields the same snapshot.
func (s *ConversationStore) List(filter ListFilter) iter.Seq[domain.ConversationSummary] {
	s.mu.RLock()
	summaries := make([]domain.ConversationSummary, 0, len(s.conversations))
	order := make(map[string]uint64, len(s.conversations))
	for _, conv := range s.conversations {
		if filter.EscalatedOnly && !conv.Escalated {
			continue
		}
		order[conv.ID] = conv.Seq
		summaries = append(summaries, domain.ConversationSummary{
			ThreadID:      conv.ID,
			Status:        conv.Status,
			CreatedAt:     conv.CreatedAt,
			LastActivity:  conv.LastActivity,
			LastMessage:   conv.LastMessage(),
			AgentRequired: conv.Escalated,
			AssignedAgent: conv.AssignedAgent,
			WasReopened:   conv.WasReopened,
			ResolvedAt:    conv.ResolvedAt,
		})
	}
	s.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].LastActivity.Equal(summaries[j].LastActivity) {
			return summaries[i].LastActivity.After(summaries[j].LastActivity)
		}
		return order[summaries[i].ThreadID] < order[summaries[j].ThreadID]
	})

	return func(yield func(domain.ConversationSummary) bool) {
		for _, summary := range summaries {
			if !yield(summary) {
				return
			}
		}
	}
}

func copyConversation(conv *domain.Conversation) *domain.Conversation {
	dup := *conv
	dup.Messages = make([]domain.Message, len(conv.Messages))
	copy(dup.Messages, conv.Messages)
	if conv.AssignedAgent != nil {
		email := *conv.AssignedAgent
		dup.AssignedAgent = &email
	}
	if conv.ResolvedAt != nil {
		ts := *conv.ResolvedAt
		dup.ResolvedAt = &ts
	}
	return &dup
}
