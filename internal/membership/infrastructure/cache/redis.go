package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/donora/internal/membership/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces membership entries.
const KeyPrefix = "donora:membership:user:"

// RedisCache is a MembershipCache shared between CLI and MCP processes.
// Keys are namespaced: donora:membership:user:{user_id}
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Key returns the redis key for a user.
func Key(userID uuid.UUID) string {
	return KeyPrefix + userID.String()
}

// Get implements domain.MembershipCache.
func (c *RedisCache) Get(ctx context.Context, userID uuid.UUID) (*domain.Membership, bool, error) {
	val, err := c.client.Get(ctx, Key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get membership: %w", err)
	}
	m, err := decode(val)
	if err != nil {
		// A corrupt entry is treated as a miss and removed.
		_ = c.client.Del(ctx, Key(userID)).Err()
		return nil, false, nil
	}
	return m, true, nil
}

// Set implements domain.MembershipCache.
func (c *RedisCache) Set(ctx context.Context, userID uuid.UUID, m *domain.Membership, ttl time.Duration) error {
	data, err := encode(m)
	if err != nil {
		return fmt.Errorf("encode membership: %w", err)
	}
	if err := c.client.Set(ctx, Key(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set membership: %w", err)
	}
	return nil
}

// Invalidate implements domain.MembershipCache.
func (c *RedisCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if err := c.client.Del(ctx, Key(userID)).Err(); err != nil {
		return fmt.Errorf("redis invalidate membership: %w", err)
	}
	return nil
}

// Ping checks connectivity for the health registry.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
