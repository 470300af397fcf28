package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenCache persists the signed-in session token across restarts.
type TokenCache interface {
	Save(ctx context.Context, token string, ttl time.Duration) error
	Load(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// RedisTokenCache stores the current session token under a single key.
type RedisTokenCache struct {
	client *redis.Client
	key    string
}

// NewRedisTokenCache creates a Redis-backed cache. Key may be empty.
func NewRedisTokenCache(client *redis.Client, key string) *RedisTokenCache {
	if key == "" {
		key = "tracker:session:current"
	}
	return &RedisTokenCache{client: client, key: key}
}

func (c *RedisTokenCache) Save(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Second
	}
	return c.client.Set(ctx, c.key, token, ttl).Err()
}

// Load returns an empty token when nothing is cached.
func (c *RedisTokenCache) Load(ctx context.Context) (string, error) {
	token, err := c.client.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return token, err
}

func (c *RedisTokenCache) Clear(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}
