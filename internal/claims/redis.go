package claims

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCoordinator stores claims as redis keys with a TTL. SET NX is
// the conditional write, and redis expiry replaces the explicit
// expires_at check: an expired claim simply no longer exists.
type RedisCoordinator struct {
	client *redis.Client
	prefix string
}

// NewRedisCoordinator creates a coordinator talking to the given redis
// address. Keys are namespaced under "claims:".
func NewRedisCoordinator(addr string) *RedisCoordinator {
	return &RedisCoordinator{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: "claims:",
	}
}

// Ping verifies connectivity, for startup validation.
func (c *RedisCoordinator) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCoordinator) Acquire(ctx context.Context, key string, ttl time.Duration, holder string) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.prefix+key, holder, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquiring claim %s: %w", key, err)
	}
	return ok, nil
}

func (c *RedisCoordinator) Release(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("releasing claim %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *RedisCoordinator) Close() error {
	return c.client.Close()
}
