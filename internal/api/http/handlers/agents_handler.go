package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/supportrelay/chat-relay/internal/api/dto"
	"github.com/supportrelay/chat-relay/internal/service"
	apperrors "github.com/supportrelay/chat-relay/pkg/util/errorutil"
)

// AgentsHandler serves agent account registration and login.
type AgentsHandler struct {
	auth *service.AuthService
}

// NewAgentsHandler constructs the handler.
func NewAgentsHandler(authService *service.AuthService) *AgentsHandler {
	return &AgentsHandler{auth: authService}
}

// Register POST /agent/add.
func (h *AgentsHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterAgentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	if _, err := h.auth.RegisterAgent(c.UserContext(), req.Name, req.Email, req.Password); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

// Login POST /api/auth/login.
func (h *AgentsHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    result.Token,
		Expires:  result.ExpiresAt,
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteNoneMode,
	})

	return c.JSON(dto.LoginResponse{
		Success: true,
		Token:   result.Token,
		User: dto.AgentProfile{
			Name:  result.Account.Name,
			Email: result.Account.Email,
		},
	})
}
