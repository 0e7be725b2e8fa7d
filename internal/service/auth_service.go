package service

import (
	"context"
	"strings"
	"time"

	"github.com/supportrelay/chat-relay/internal/auth"
	"github.com/supportrelay/chat-relay/internal/config"
	"github.com/supportrelay/chat-relay/internal/domain"
	"github.com/supportrelay/chat-relay/internal/repository"
	apperrors "github.com/supportrelay/chat-relay/pkg/util/errorutil"
)

// AuthService manages agent account registration and login against the
// persistent directory. Presence is not touched here; an agent comes
// online by announcing itself over the realtime channel.
type AuthService struct {
	directory  repository.AgentDirectory
	tokens     *auth.TokenManager
	bcryptCost int
}

// NewAuthService creates the service.
func NewAuthService(cfg config.AuthConfig, directory repository.AgentDirectory) *AuthService {
	return &AuthService{
		directory:  directory,
		tokens:     auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
	}
}

// TokenManager exposes the manager for the auth middleware.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

// RegisterAgent creates a new agent account.
func (s *AuthService) RegisterAgent(ctx context.Context, name, email, password string) (*domain.AgentAccount, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return nil, apperrors.NewValidationError("name, email and password required", nil)
	}

	if _, err := s.directory.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("agent already exists", map[string]any{"email": email})
	} else if !repository.IsNoRows(err) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	account := &domain.AgentAccount{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.directory.Create(ctx, account); err != nil {
		return nil, apperrors.MapError(err)
	}
	return account, nil
}

// LoginResult carries the issued token and its owner.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *domain.AgentAccount
}

// Login verifies credentials and issues a JWT.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password required", nil)
	}

	account, err := s.directory.GetByEmail(ctx, email)
	if err != nil {
		if repository.IsNoRows(err) {
			return nil, apperrors.NewNotFound("agent", map[string]any{"email": email})
		}
		return nil, apperrors.MapError(err)
	}

	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(account.ID, account.Email, account.Name)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Account: account}, nil
}
