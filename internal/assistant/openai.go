package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/supportrelay/chat-relay/internal/config"
)

// ErrNoReply indicates a completed run that produced no assistant message.
var ErrNoReply = errors.New("no response from assistant")

// OpenAIBridge implements Bridge on the OpenAI assistants API: one
// thread per conversation, one run per turn, polled until terminal.
type OpenAIBridge struct {
	client        *openai.Client
	assistantID   string
	pollInterval  time.Duration
	retryAttempts int
	retryDelay    time.Duration
	logger        *zap.Logger
}

// NewOpenAIBridge builds the bridge from assistant configuration.
func NewOpenAIBridge(cfg config.AssistantConfig, logger *zap.Logger) *OpenAIBridge {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "sk-xxx"
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 3
	}

	return &OpenAIBridge{
		client:        openai.NewClientWithConfig(clientCfg),
		assistantID:   cfg.AssistantID,
		pollInterval:  cfg.PollInterval(),
		retryAttempts: attempts,
		retryDelay:    cfg.RetryDelay(),
		logger:        logger,
	}
}

// CreateThread starts a fresh assistant thread and returns its id.
func (b *OpenAIBridge) CreateThread(ctx context.Context) (string, error) {
	thread, err := b.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return thread.ID, nil
}

// SubmitTurn appends the user message, starts a run and drives it to a
// terminal state. The poll loop is retried up to retryAttempts times
// with a fixed delay; only the calling goroutine waits.
func (b *OpenAIBridge) SubmitTurn(ctx context.Context, threadID, question string, onTool ToolHandler) (string, error) {
	_, err := b.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: question,
	})
	if err != nil {
		return "", fmt.Errorf("create message: %w", err)
	}

	run, err := b.client.CreateRun(ctx, threadID, openai.RunRequest{
		AssistantID: b.assistantID,
	})
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= b.retryAttempts; attempt++ {
		if attempt > 1 {
			b.logger.Warn("retrying assistant run",
				zap.String("thread_id", threadID),
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			if err := waitFor(ctx, b.retryDelay); err != nil {
				return "", err
			}
		}
		run, lastErr = b.executeRun(ctx, threadID, run.ID, onTool)
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil {
			return "", lastErr
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("run failed after %d attempts: %w", b.retryAttempts, lastErr)
	}
	if run.Status != openai.RunStatusCompleted {
		return "", fmt.Errorf("run ended with status %s", run.Status)
	}

	return b.latestReply(ctx, threadID)
}

// executeRun polls the run until it leaves the active states, handling
// required tool actions along the way.
func (b *OpenAIBridge) executeRun(ctx context.Context, threadID, runID string, onTool ToolHandler) (openai.Run, error) {
	run, err := b.client.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return run, fmt.Errorf("retrieve run: %w", err)
	}

	for {
		switch run.Status {
		case openai.RunStatusRequiresAction:
			run, err = b.submitToolOutcomes(ctx, threadID, run, onTool)
			if err != nil {
				return run, err
			}
		case openai.RunStatusQueued, openai.RunStatusInProgress:
			if err := waitFor(ctx, b.pollInterval); err != nil {
				return run, err
			}
			run, err = b.client.RetrieveRun(ctx, threadID, runID)
			if err != nil {
				return run, fmt.Errorf("retrieve run: %w", err)
			}
		case openai.RunStatusCompleted:
			return run, nil
		default:
			return run, fmt.Errorf("run failed with status: %s", run.Status)
		}
	}
}

func (b *OpenAIBridge) submitToolOutcomes(ctx context.Context, threadID string, run openai.Run, onTool ToolHandler) (openai.Run, error) {
	if run.RequiredAction == nil || run.RequiredAction.SubmitToolOutputs == nil {
		return run, fmt.Errorf("run requires action without tool outputs")
	}

	calls := run.RequiredAction.SubmitToolOutputs.ToolCalls
	outputs := make([]openai.ToolOutput, 0, len(calls))
	for _, call := range calls {
		req := ToolRequest{
			Action: ParseToolAction(call.Function.Name),
			CallID: call.ID,
		}
		outcome := onTool(req)
		raw, err := json.Marshal(outcome)
		if err != nil {
			return run, fmt.Errorf("marshal tool outcome: %w", err)
		}
		outputs = append(outputs, openai.ToolOutput{
			ToolCallID: call.ID,
			Output:     string(raw),
		})
	}

	run, err := b.client.SubmitToolOutputs(ctx, threadID, run.ID, openai.SubmitToolOutputsRequest{
		ToolOutputs: outputs,
	})
	if err != nil {
		return run, fmt.Errorf("submit tool outputs: %w", err)
	}
	return run, nil
}

// latestReply fetches the newest assistant message of the thread.
func (b *OpenAIBridge) latestReply(ctx context.Context, threadID string) (string, error) {
	limit := 20
	order := "desc"
	list, err := b.client.ListMessage(ctx, threadID, &limit, &order, nil, nil, nil)
	if err != nil {
		return "", fmt.Errorf("list messages: %w", err)
	}
	for _, msg := range list.Messages {
		if msg.Role != openai.ChatMessageRoleAssistant {
			continue
		}
		for _, part := range msg.Content {
			if part.Text != nil {
				return part.Text.Value, nil
			}
		}
	}
	return "", ErrNoReply
}

// waitFor blocks for d or until the context ends, whichever is first.
func waitFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
