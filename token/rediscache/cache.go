// Package rediscache is a token.Cache backed by redis, shared by every worker process.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-ledger-sync/token"
	"github.com/redis/go-redis/v9"
)

var _ token.Cache = (*Cache)(nil)

type Cache struct {
	client *redis.Client
}

func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// NewFromURL parses a redis:// URL and verifies the server answers.
func NewFromURL(ctx context.Context, rawURL string) (*Cache, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("[rediscache NewFromURL] invalid url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("[rediscache NewFromURL] ping: %w", err)
	}
	return New(client), nil
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
