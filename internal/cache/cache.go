package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a namespaced key-value view over Redis. The status endpoint uses
// it to avoid hitting the catalog for requests that already completed, since
// completion is terminal.
type Cache struct {
	Redis     redis.UniversalClient
	Namespace string
}

// Create Redis connection
func NewCache(namespace string, redisCl redis.UniversalClient) *Cache {
	return &Cache{
		Namespace: namespace,
		Redis:     redisCl,
	}
}

// Get value from Redis
func (c *Cache) Get(ctx context.Context, key string) (interface{}, error) {
	cmd := c.Redis.Get(ctx, c.Namespace+":"+key)
	return cmd.Val(), cmd.Err()
}

// Store data to Redis with a ttl in seconds
func (c *Cache) Store(ctx context.Context, key string, ttl int, value interface{}) error {
	dur, err := time.ParseDuration(strconv.Itoa(ttl) + "s")
	if err != nil {
		return err
	}

	cmd := c.Redis.Set(ctx, c.Namespace+":"+key, value, dur)
	return cmd.Err()
}

// Delete key from Redis
func (c *Cache) Remove(ctx context.Context, key string) error {
	cmd := c.Redis.Del(ctx, c.Namespace+":"+key)
	return cmd.Err()
}
