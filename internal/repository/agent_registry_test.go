package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAgentRegistryImplicitRegistration(t *testing.T) {
	reg := NewAgentRegistry(zap.NewNop())

	agent := reg.SetOnline("a@example.com", true)
	require.Equal(t, "a@example.com", agent.Email)
	require.True(t, agent.Online)
	require.Zero(t, agent.Load)

	got, ok := reg.Get("a@example.com")
	require.True(t, ok)
	require.True(t, got.Online)
}

func TestAgentRegistryLoadTracksBindings(t *testing.T) {
	reg := NewAgentRegistry(zap.NewNop())
	reg.SetOnline("a@example.com", true)

	reg.Bind("a@example.com", "t1")
	reg.Bind("a@example.com", "t2")
	reg.Bind("a@example.com", "t2") // idempotent

	agent, _ := reg.Get("a@example.com")
	require.Equal(t, 2, agent.Load)
	require.Equal(t, []string{"t1", "t2"}, agent.AssignedConversations)
	require.Len(t, agent.AssignedConversations, agent.Load)

	reg.Unbind("a@example.com", "t1")
	reg.Unbind("a@example.com", "t1") // no-op
	agent, _ = reg.Get("a@example.com")
	require.Equal(t, 1, agent.Load)
	require.Equal(t, []string{"t2"}, agent.AssignedConversations)
}

func TestAgentRegistryLoadSurvivesPresenceFlips(t *testing.T) {
	reg := NewAgentRegistry(zap.NewNop())
	reg.SetOnline("a@example.com", true)
	reg.Bind("a@example.com", "t1")

	reg.SetOnline("a@example.com", false)
	reg.SetOnline("a@example.com", true)

	agent, _ := reg.Get("a@example.com")
	require.Equal(t, 1, agent.Load)
	require.Len(t, agent.AssignedConversations, agent.Load)
}

func TestAgentRegistryBindUnknownAgentIsNoOp(t *testing.T) {
	reg := NewAgentRegistry(zap.NewNop())

	reg.Bind("ghost@example.com", "t1")

	_, ok := reg.Get("ghost@example.com")
	require.False(t, ok)
}

func TestAgentRegistryCandidatesExcludeOffline(t *testing.T) {
	reg := NewAgentRegistry(zap.NewNop())
	reg.SetOnline("a@example.com", true)
	reg.SetOnline("b@example.com", false)
	reg.SetOnline("c@example.com", true)

	candidates := reg.Candidates()
	require.Len(t, candidates, 2)
	require.Equal(t, "a@example.com", candidates[0].Email)
	require.Equal(t, "c@example.com", candidates[1].Email)
}

func TestAgentRegistryCandidatesRegistrationOrder(t *testing.T) {
	reg := NewAgentRegistry(zap.NewNop())
	reg.SetOnline("first@example.com", true)
	reg.SetOnline("second@example.com", true)
	reg.SetOnline("third@example.com", true)

	// flipping presence must not change registration order
	reg.SetOnline("first@example.com", false)
	reg.SetOnline("first@example.com", true)

	candidates := reg.Candidates()
	require.Equal(t, "first@example.com", candidates[0].Email)
	require.Equal(t, "second@example.com", candidates[1].Email)
	require.Equal(t, "third@example.com", candidates[2].Email)
}

func TestAgentRegistrySnapshotIncludesOffline(t *testing.T) {
	reg := NewAgentRegistry(zap.NewNop())
	reg.SetOnline("a@example.com", true)
	reg.SetOnline("b@example.com", false)

	agents := reg.Snapshot()
	require.Len(t, agents, 2)
	require.True(t, agents[0].Online)
	require.False(t, agents[1].Online)
}

func TestAgentRegistrySnapshotIsDetached(t *testing.T) {
	reg := NewAgentRegistry(zap.NewNop())
	reg.SetOnline("a@example.com", true)
	reg.Bind("a@example.com", "t1")

	agent, _ := reg.Get("a@example.com")
	agent.AssignedConversations[0] = "mutated"

	fresh, _ := reg.Get("a@example.com")
	require.Equal(t, []string{"t1"}, fresh.AssignedConversations)
}
