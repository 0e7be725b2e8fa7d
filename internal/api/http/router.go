package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/supportrelay/chat-relay/internal/api/http/handlers"
	"github.com/supportrelay/chat-relay/internal/auth"
	"github.com/supportrelay/chat-relay/internal/realtime"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Chat           *handlers.ChatHandler
	Agents         *handlers.AgentsHandler
	Realtime       *realtime.WSHandler
	AuthMiddleware *auth.AuthMiddleware
	UploadsDir     string
}

// RegisterRoutes wires HTTP routes. The end-user widget endpoints are
// unauthenticated; dashboard endpoints require an agent token.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/new_thread", cfg.Chat.NewThread)
	app.Post("/ask", cfg.Chat.Ask)
	app.Get("/get_chats", cfg.Chat.ListChats)
	app.Get("/get_chat_messages/:thread_id", cfg.Chat.GetMessages)
	app.Post("/resolve_chat", cfg.Chat.ResolveChat)
	app.Post("/reopen_chat", cfg.Chat.ReopenChat)

	app.Post("/agent/add", cfg.Agents.Register)
	app.Post("/api/auth/login", cfg.Agents.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/get_agent_chats", cfg.Chat.ListAgentChats)
	protected.Post("/connect_agent", cfg.Chat.ConnectAgent)
	protected.Post("/send_agent_message", cfg.Chat.SendAgentMessage)

	app.Static("/uploads", cfg.UploadsDir)

	app.Use("/ws", cfg.Realtime.UpgradeGate())
	app.Get("/ws", cfg.Realtime.Handler())
}
