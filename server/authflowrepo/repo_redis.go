package authflowrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/go-ledger-sync/internal/errors"
	"github.com/redis/go-redis/v9"
)

var _ Repo = (*RedisRepo)(nil)

const redisKeyPrefix = "ledgersync:authflow:"

// RedisRepo shares pending authorizations between server replicas. Entries expire
// after ttl so abandoned flows clean themselves up.
type RedisRepo struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRepo(client *redis.Client, ttl time.Duration) *RedisRepo {
	return &RedisRepo{client: client, ttl: ttl}
}

func (r *RedisRepo) Upsert(ctx context.Context, state string, authState *AuthFlowState) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if authState == nil {
		return errors.New("authState cannot be nil")
	}
	b, err := json.Marshal(authState)
	if err != nil {
		return fmt.Errorf("marshal auth flow state: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+state, b, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set auth flow state: %w", err)
	}
	return nil
}

func (r *RedisRepo) Get(ctx context.Context, state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, errors.New("state cannot be empty")
	}
	b, err := r.client.Get(ctx, redisKeyPrefix+state).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("redis get auth flow state: %w", err)
	}
	var s AuthFlowState
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("unmarshal auth flow state: %w", err)
	}
	return &s, nil
}

func (r *RedisRepo) Delete(ctx context.Context, state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if err := r.client.Del(ctx, redisKeyPrefix+state).Err(); err != nil {
		return fmt.Errorf("redis delete auth flow state: %w", err)
	}
	return nil
}
