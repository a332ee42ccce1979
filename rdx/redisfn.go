// Package rdx caches model completions. Redis is used when configured,
// otherwise an in-process cache.
package rdx

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores opaque values under string keys.
type Cache interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Close() error
}

type RedisCache struct {
	conn   *redis.Client
	prefix string
}

// NewRedisCache connects to addr and pings it once.
func NewRedisCache(ctx context.Context, addr, password string) (*RedisCache, error) {
	conn := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx).Err(); err != nil {
		conn.Close()
		return nil, err
	}
	return &RedisCache{conn: conn, prefix: "wanderplan:"}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.conn.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.conn.Set(ctx, c.prefix+key, val, ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.conn.Close()
}

// Open returns a Redis cache for a non-empty addr and falls back to the
// local cache when Redis is unset or unreachable.
func Open(ctx context.Context, addr, password string) Cache {
	if addr == "" {
		return NewLocalCache()
	}
	c, err := NewRedisCache(ctx, addr, password)
	if err != nil {
		log.Printf("⚠️ Redis at %s unavailable, using in-process cache: %v", addr, err)
		return NewLocalCache()
	}
	log.Printf("✅ Connected to Redis at %s", addr)
	return c
}
