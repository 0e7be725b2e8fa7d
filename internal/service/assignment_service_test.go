package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/supportrelay/chat-relay/internal/events"
	"github.com/supportrelay/chat-relay/internal/repository"
	apperrors "github.com/supportrelay/chat-relay/pkg/util/errorutil"
)

func newAssignmentFixture(t *testing.T) (*AssignmentService, *repository.ConversationStore, *repository.AgentRegistry) {
	t.Helper()
	store := repository.NewConversationStore()
	registry := repository.NewAgentRegistry(zap.NewNop())
	svc := NewAssignmentService(AssignmentDependencies{
		Store:      store,
		Registry:   registry,
		Dispatcher: events.NewInMemoryDispatcher(),
		Logger:     zap.NewNop(),
	})
	return svc, store, registry
}

func TestAssignPicksLeastLoadedOnline(t *testing.T) {
	svc, store, registry := newAssignmentFixture(t)
	ctx := context.Background()

	registry.SetOnline("a@example.com", true)
	registry.Bind("a@example.com", "other-1")
	registry.Bind("a@example.com", "other-2")
	registry.SetOnline("b@example.com", true)
	registry.Bind("b@example.com", "other-3")
	registry.SetOnline("c@example.com", false) // lowest load but offline

	store.Create("t")
	agent, err := svc.Assign(ctx, "t")
	require.NoError(t, err)
	require.Equal(t, "b@example.com", agent)

	conv, err := store.Get("t")
	require.NoError(t, err)
	require.NotNil(t, conv.AssignedAgent)
	require.Equal(t, "b@example.com", *conv.AssignedAgent)
	require.True(t, conv.Escalated)

	bound, _ := registry.Get("b@example.com")
	require.Equal(t, 2, bound.Load)
}

func TestAssignTieBreaksOnRegistrationOrder(t *testing.T) {
	svc, store, registry := newAssignmentFixture(t)

	registry.SetOnline("first@example.com", true)
	registry.SetOnline("second@example.com", true)

	store.Create("t")
	agent, err := svc.Assign(context.Background(), "t")
	require.NoError(t, err)
	require.Equal(t, "first@example.com", agent)
}

func TestAssignUnavailableMutatesNothing(t *testing.T) {
	svc, store, registry := newAssignmentFixture(t)

	registry.SetOnline("a@example.com", false)
	store.Create("t")

	_, err := svc.Assign(context.Background(), "t")
	require.Error(t, err)
	require.Equal(t, "AGENT_UNAVAILABLE", apperrors.ToDomainError(err).Code)

	conv, err := store.Get("t")
	require.NoError(t, err)
	require.Nil(t, conv.AssignedAgent)
	require.False(t, conv.Escalated)

	agent, _ := registry.Get("a@example.com")
	require.Zero(t, agent.Load)
}

func TestAssignUnknownConversation(t *testing.T) {
	svc, _, registry := newAssignmentFixture(t)
	registry.SetOnline("a@example.com", true)

	_, err := svc.Assign(context.Background(), "missing")
	require.Error(t, err)
	require.Equal(t, "NOT_FOUND", apperrors.ToDomainError(err).Code)
}

func TestAssignIdempotentWhileAgentOnline(t *testing.T) {
	svc, store, registry := newAssignmentFixture(t)
	ctx := context.Background()

	registry.SetOnline("a@example.com", true)
	store.Create("t")

	first, err := svc.Assign(ctx, "t")
	require.NoError(t, err)
	second, err := svc.Assign(ctx, "t")
	require.NoError(t, err)
	require.Equal(t, first, second)

	agent, _ := registry.Get("a@example.com")
	require.Equal(t, 1, agent.Load, "reassign must not double-count load")
}

func TestAssignRebindsWhenAgentGoesOffline(t *testing.T) {
	svc, store, registry := newAssignmentFixture(t)
	ctx := context.Background()

	registry.SetOnline("a@example.com", true)
	store.Create("t")
	_, err := svc.Assign(ctx, "t")
	require.NoError(t, err)

	registry.SetOnline("a@example.com", false)
	registry.SetOnline("b@example.com", true)

	agent, err := svc.Assign(ctx, "t")
	require.NoError(t, err)
	require.Equal(t, "b@example.com", agent)

	// old binding released before the new one lands
	old, _ := registry.Get("a@example.com")
	require.Zero(t, old.Load)
	fresh, _ := registry.Get("b@example.com")
	require.Equal(t, 1, fresh.Load)

	conv, err := store.Get("t")
	require.NoError(t, err)
	require.Equal(t, "b@example.com", *conv.AssignedAgent)
}

func TestAssignPublishesPresence(t *testing.T) {
	store := repository.NewConversationStore()
	registry := repository.NewAgentRegistry(zap.NewNop())
	dispatcher := events.NewInMemoryDispatcher()

	var published []events.Event
	dispatcher.Subscribe(events.EventPresenceChanged, func(_ context.Context, evt events.Event) error {
		published = append(published, evt)
		return nil
	})

	svc := NewAssignmentService(AssignmentDependencies{
		Store:      store,
		Registry:   registry,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
	})

	registry.SetOnline("a@example.com", true)
	store.Create("t")
	_, err := svc.Assign(context.Background(), "t")
	require.NoError(t, err)

	require.Len(t, published, 1)
	payload, ok := published[0].Payload.(events.PresenceChangedPayload)
	require.True(t, ok)
	require.Len(t, payload.Agents, 1)
	require.Equal(t, 1, payload.Agents[0].Load)
}

func TestReleaseDropsBinding(t *testing.T) {
	svc, store, registry := newAssignmentFixture(t)
	ctx := context.Background()

	registry.SetOnline("a@example.com", true)
	store.Create("t")
	_, err := svc.Assign(ctx, "t")
	require.NoError(t, err)

	svc.Release(ctx, "t", "a@example.com")
	agent, _ := registry.Get("a@example.com")
	require.Zero(t, agent.Load)
}

func TestAssignAfterReleaseReoccupiesSlot(t *testing.T) {
	svc, store, registry := newAssignmentFixture(t)
	ctx := context.Background()

	registry.SetOnline("a@example.com", true)
	store.Create("t")
	_, err := svc.Assign(ctx, "t")
	require.NoError(t, err)
	svc.Release(ctx, "t", "a@example.com")

	agent, err := svc.Assign(ctx, "t")
	require.NoError(t, err)
	require.Equal(t, "a@example.com", agent)

	rec, _ := registry.Get("a@example.com")
	require.Equal(t, 1, rec.Load)
}

func TestAssignConcurrentSameConversation(t *testing.T) {
	svc, store, registry := newAssignmentFixture(t)
	ctx := context.Background()

	registry.SetOnline("a@example.com", true)
	registry.SetOnline("b@example.com", true)
	store.Create("t")

	const callers = 16
	results := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Assign(ctx, "t")
		}(i)
	}
	wg.Wait()

	// every caller sees the same agent and exactly one slot is bound
	for i := range results {
		require.NoError(t, errs[i])
		require.Equal(t, results[0], results[i])
	}
	winner, _ := registry.Get(results[0])
	require.Equal(t, 1, winner.Load)

	totalLoad := 0
	for _, agent := range registry.Snapshot() {
		totalLoad += agent.Load
	}
	require.Equal(t, 1, totalLoad)
}
