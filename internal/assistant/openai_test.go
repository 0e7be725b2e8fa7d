package assistant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/supportrelay/chat-relay/internal/config"
)

func TestWaitForElapses(t *testing.T) {
	start := time.Now()
	err := waitFor(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestWaitForAbortsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := waitFor(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewOpenAIBridgeDefaults(t *testing.T) {
	bridge := NewOpenAIBridge(config.AssistantConfig{AssistantID: "asst_1"}, zap.NewNop())

	require.Equal(t, "asst_1", bridge.assistantID)
	require.Equal(t, 3, bridge.retryAttempts)
	require.Equal(t, time.Second, bridge.pollInterval)
	require.Equal(t, 2*time.Second, bridge.retryDelay)
}
