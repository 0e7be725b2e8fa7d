package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/supportrelay/chat-relay/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal is the authenticated agent attached to a request.
type Principal struct {
	AgentID string
	Email   string
	Name    string
}

// AuthMiddleware validates agent JWTs from the Authorization header or
// the access_token cookie and attaches the principal to the context.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs the middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces agent authentication.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	tokenStr := bearerToken(c)
	if tokenStr == "" {
		tokenStr = c.Cookies("access_token")
	}
	if tokenStr == "" {
		return apperrors.NewUnauthorized("missing credentials")
	}

	claims, err := m.tokens.ParseToken(tokenStr)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(principalKey, &Principal{
		AgentID: claims.AgentID,
		Email:   claims.Email,
		Name:    claims.Name,
	})
	return c.Next()
}

// PrincipalFromContext returns the authenticated agent, if any.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	principal, ok := c.Locals(principalKey).(*Principal)
	return principal, ok
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
