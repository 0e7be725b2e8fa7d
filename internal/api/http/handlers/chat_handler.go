package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/supportrelay/chat-relay/internal/api/dto"
	"github.com/supportrelay/chat-relay/internal/auth"
	"github.com/supportrelay/chat-relay/internal/domain"
	"github.com/supportrelay/chat-relay/internal/service"
	"github.com/supportrelay/chat-relay/internal/uploads"
	apperrors "github.com/supportrelay/chat-relay/pkg/util/errorutil"
)

// ChatHandler exposes the conversation endpoints for the end-user
// widget and the agent dashboard.
type ChatHandler struct {
	service *service.ChatService
	uploads *uploads.Store
}

// NewChatHandler constructs the handler.
func NewChatHandler(chatService *service.ChatService, uploadStore *uploads.Store) *ChatHandler {
	return &ChatHandler{service: chatService, uploads: uploadStore}
}

// NewThread POST /new_thread.
func (h *ChatHandler) NewThread(c *fiber.Ctx) error {
	threadID, err := h.service.StartConversation(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.NewThreadResponse{ThreadID: threadID})
}

// Ask POST /ask. Multipart form: thread_id, question, optional file.
func (h *ChatHandler) Ask(c *fiber.Ctx) error {
	threadID := strings.TrimSpace(c.FormValue("thread_id"))
	question := strings.TrimSpace(c.FormValue("question"))
	if threadID == "" || question == "" {
		return apperrors.NewValidationError("thread_id and question required", nil)
	}

	fileURL, err := h.uploads.SaveFromForm(c, "file")
	if err != nil {
		return apperrors.MapError(err)
	}

	result, err := h.service.SubmitUserTurn(c.UserContext(), threadID, question, fileURL)
	if err != nil {
		return err
	}
	return c.JSON(dto.AskResponse{
		Success:        true,
		Response:       result.Response,
		File:           result.FileURL,
		AgentConnected: result.AgentConnected,
	})
}

// ListChats GET /get_chats.
func (h *ChatHandler) ListChats(c *fiber.Ctx) error {
	chats := make([]domain.ConversationSummary, 0)
	for summary := range h.service.ListConversations(false) {
		chats = append(chats, summary)
	}
	return c.JSON(dto.ChatListResponse{Chats: chats})
}

// ListAgentChats GET /get_agent_chats. Escalated conversations with
// full transcripts for the dashboard.
func (h *ChatHandler) ListAgentChats(c *fiber.Ctx) error {
	chats := make([]dto.AgentChat, 0)
	for summary := range h.service.ListConversations(true) {
		conv, err := h.service.TranscriptDetail(summary.ThreadID)
		if err != nil {
			continue
		}
		chats = append(chats, dto.AgentChat{
			ThreadID:      conv.ID,
			Status:        conv.Status,
			CreatedAt:     conv.CreatedAt,
			LastActivity:  conv.LastActivity,
			Messages:      conv.Messages,
			AgentRequired: conv.Escalated,
			AssignedAgent: conv.AssignedAgent,
			WasReopened:   conv.WasReopened,
		})
	}
	return c.JSON(dto.AgentChatListResponse{Chats: chats})
}

// GetMessages GET /get_chat_messages/:thread_id.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	messages, status, err := h.service.Transcript(c.Params("thread_id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.MessagesResponse{Messages: messages, Status: status})
}

// ConnectAgent POST /connect_agent.
func (h *ChatHandler) ConnectAgent(c *fiber.Ctx) error {
	threadID, err := parseThreadID(c)
	if err != nil {
		return err
	}
	agentEmail, err := h.service.ConnectAgent(c.UserContext(), threadID)
	if err != nil {
		return err
	}
	return c.JSON(dto.ConnectAgentResponse{Success: true, AgentName: agentEmail})
}

// ResolveChat POST /resolve_chat.
func (h *ChatHandler) ResolveChat(c *fiber.Ctx) error {
	threadID, err := parseThreadID(c)
	if err != nil {
		return err
	}
	if err := h.service.Resolve(c.UserContext(), threadID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

// ReopenChat POST /reopen_chat.
func (h *ChatHandler) ReopenChat(c *fiber.Ctx) error {
	threadID, err := parseThreadID(c)
	if err != nil {
		return err
	}
	if err := h.service.Reopen(c.UserContext(), threadID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

// SendAgentMessage POST /send_agent_message. Multipart form: thread_id,
// message, optional file. The message is attributed to the
// authenticated agent.
func (h *ChatHandler) SendAgentMessage(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("missing credentials")
	}

	threadID := strings.TrimSpace(c.FormValue("thread_id"))
	message := strings.TrimSpace(c.FormValue("message"))
	if threadID == "" || message == "" {
		return apperrors.NewValidationError("thread_id and message required", nil)
	}

	fileURL, err := h.uploads.SaveFromForm(c, "file")
	if err != nil {
		return apperrors.MapError(err)
	}

	if err := h.service.SendAgentMessage(c.UserContext(), threadID, principal.Email, message, fileURL); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

func parseThreadID(c *fiber.Ctx) (string, error) {
	var req dto.ThreadRequest
	if err := c.BodyParser(&req); err != nil {
		return "", apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.ThreadID) == "" {
		return "", apperrors.NewValidationError("thread_id required", nil)
	}
	return req.ThreadID, nil
}
