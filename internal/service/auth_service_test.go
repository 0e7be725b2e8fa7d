package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/supportrelay/chat-relay/internal/config"
	"github.com/supportrelay/chat-relay/internal/domain"
	apperrors "github.com/supportrelay/chat-relay/pkg/util/errorutil"
)

// memoryDirectory is a map-backed AgentDirectory for tests.
type memoryDirectory struct {
	accounts map[string]*domain.AgentAccount
	nextID   int
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{accounts: make(map[string]*domain.AgentAccount)}
}

func (d *memoryDirectory) Create(_ context.Context, account *domain.AgentAccount) error {
	d.nextID++
	account.ID = "acct-" + strconv.Itoa(d.nextID)
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	copied := *account
	d.accounts[account.Email] = &copied
	return nil
}

func (d *memoryDirectory) GetByEmail(_ context.Context, email string) (*domain.AgentAccount, error) {
	account, ok := d.accounts[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *account
	return &copied, nil
}

func newAuthFixture() (*AuthService, *memoryDirectory) {
	directory := newMemoryDirectory()
	svc := NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 60,
		BcryptCost:            4,
	}, directory)
	return svc, directory
}

func TestRegisterAgent(t *testing.T) {
	svc, directory := newAuthFixture()
	ctx := context.Background()

	account, err := svc.RegisterAgent(ctx, "Agent One", "Agent@Example.com", "s3cret")
	require.NoError(t, err)
	require.Equal(t, "agent@example.com", account.Email, "email is normalized")
	require.NotEqual(t, "s3cret", account.PasswordHash)
	require.Contains(t, directory.accounts, "agent@example.com")
}

func TestRegisterAgentValidation(t *testing.T) {
	svc, _ := newAuthFixture()

	_, err := svc.RegisterAgent(context.Background(), "", "a@example.com", "pw")
	require.Error(t, err)
	require.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestRegisterAgentConflict(t *testing.T) {
	svc, _ := newAuthFixture()
	ctx := context.Background()

	_, err := svc.RegisterAgent(ctx, "Agent One", "a@example.com", "pw")
	require.NoError(t, err)

	_, err = svc.RegisterAgent(ctx, "Agent Two", "a@example.com", "pw")
	require.Error(t, err)
	require.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)
}

func TestLoginIssuesToken(t *testing.T) {
	svc, _ := newAuthFixture()
	ctx := context.Background()

	_, err := svc.RegisterAgent(ctx, "Agent One", "a@example.com", "s3cret")
	require.NoError(t, err)

	result, err := svc.Login(ctx, "a@example.com", "s3cret")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.True(t, result.ExpiresAt.After(time.Now()))

	claims, err := svc.TokenManager().ParseToken(result.Token)
	require.NoError(t, err)
	require.Equal(t, "a@example.com", claims.Email)
	require.Equal(t, "Agent One", claims.Name)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture()
	ctx := context.Background()

	_, err := svc.RegisterAgent(ctx, "Agent One", "a@example.com", "s3cret")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "a@example.com", "wrong")
	require.Error(t, err)
	require.Equal(t, "UNAUTHORIZED", apperrors.ToDomainError(err).Code)
}

func TestLoginUnknownAgent(t *testing.T) {
	svc, _ := newAuthFixture()

	_, err := svc.Login(context.Background(), "ghost@example.com", "pw")
	require.Error(t, err)
	require.Equal(t, "NOT_FOUND", apperrors.ToDomainError(err).Code)
}
