package rdx

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

type LocalCache struct {
	store *cache.Cache
}

func NewLocalCache() *LocalCache {
	return &LocalCache{store: cache.New(30*time.Minute, 10*time.Minute)}
}

func (c *LocalCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.store.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	return b, ok, nil
}

func (c *LocalCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	c.store.Set(key, append([]byte(nil), val...), ttl)
	return nil
}

func (c *LocalCache) Close() error {
	c.store.Flush()
	return nil
}
