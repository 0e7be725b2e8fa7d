package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/supportrelay/chat-relay/internal/domain"
)

// ErrDirectoryUnavailable indicates no database connection is configured.
var ErrDirectoryUnavailable = errors.New("agent directory unavailable")

const directoryCacheTTL = 5 * time.Minute

// AgentDirectory handles persistence for registered agent accounts.
// This is the external account store; presence and load live in the
// in-memory AgentRegistry.
type AgentDirectory interface {
	Create(ctx context.Context, account *domain.AgentAccount) error
	GetByEmail(ctx context.Context, email string) (*domain.AgentAccount, error)
}

type agentDirectory struct {
	pool   *pgxpool.Pool
	cache  *redis.Client
	logger *zap.Logger
}

// NewAgentDirectory instantiates the directory. The redis client is
// optional and only used as a read-through cache keyed by email.
func NewAgentDirectory(pool *pgxpool.Pool, cache *redis.Client, logger *zap.Logger) AgentDirectory {
	return &agentDirectory{pool: pool, cache: cache, logger: logger}
}

func (r *agentDirectory) Create(ctx context.Context, account *domain.AgentAccount) error {
	if r.pool == nil {
		return ErrDirectoryUnavailable
	}

	const query = `
        INSERT INTO agent_accounts (name, email, password_hash)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		account.Name,
		account.Email,
		account.PasswordHash,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return err
	}

	r.invalidate(ctx, account.Email)
	return nil
}

func (r *agentDirectory) GetByEmail(ctx context.Context, email string) (*domain.AgentAccount, error) {
	if cached := r.fromCache(ctx, email); cached != nil {
		return cached, nil
	}
	if r.pool == nil {
		return nil, ErrDirectoryUnavailable
	}

	const query = `
        SELECT id, name, email, password_hash, created_at, updated_at
        FROM agent_accounts
        WHERE email=$1`

	account := &domain.AgentAccount{}
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&account.ID,
		&account.Name,
		&account.Email,
		&account.PasswordHash,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.toCache(ctx, account)
	return account, nil
}

func (r *agentDirectory) fromCache(ctx context.Context, email string) *domain.AgentAccount {
	if r.cache == nil {
		return nil
	}
	raw, err := r.cache.Get(ctx, cacheKey(email)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Debug("agent cache read failed", zap.Error(err))
		}
		return nil
	}
	account := &domain.AgentAccount{}
	if err := json.Unmarshal(raw, account); err != nil {
		return nil
	}
	return account
}

func (r *agentDirectory) toCache(ctx context.Context, account *domain.AgentAccount) {
	if r.cache == nil {
		return
	}
	raw, err := json.Marshal(account)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, cacheKey(account.Email), raw, directoryCacheTTL).Err(); err != nil {
		r.logger.Debug("agent cache write failed", zap.Error(err))
	}
}

func (r *agentDirectory) invalidate(ctx context.Context, email string) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Del(ctx, cacheKey(email)).Err()
}

func cacheKey(email string) string {
	return "agent:" + email
}

// IsNoRows reports whether the error is the pgx no-rows sentinel.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
