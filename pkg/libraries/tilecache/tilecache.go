// Package tilecache keeps encoded tiles in a process local LRU, optionally
// backed by Redis so several instances share rendered tiles.
package tilecache

import (
	"context"
	"errors"
	"fmt"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulkoehlerdev/spillway/pkg/libraries/metrics"
	"github.com/redis/go-redis/v9"
	"strings"
	"time"
)

const scanBatch = 256

type Config struct {
	LRUSize   int
	RedisAddr string
	TTL       time.Duration
}

type Cache struct {
	local *lru.Cache[string, []byte]
	rdb   *redis.Client
	ttl   time.Duration
}

// New builds the cache. A non empty RedisAddr must answer a ping.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	size := cfg.LRUSize
	if size <= 0 {
		size = 1024
	}
	local, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru: %w", err)
	}

	c := &Cache{local: local, ttl: cfg.TTL}
	if cfg.RedisAddr == "" {
		return c, nil
	}

	c.rdb = redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		_ = c.rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return c, nil
}

// Get looks key up in the LRU first, then in Redis. Redis hits are copied
// into the LRU.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := c.local.Get(key); ok {
		metrics.IncCacheHit("lru")
		return v, true
	}
	metrics.IncCacheMiss("lru")

	if c.rdb == nil {
		return nil, false
	}
	v, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		metrics.IncCacheMiss("redis")
		return nil, false
	}
	metrics.IncCacheHit("redis")
	c.local.Add(key, v)
	return v, true
}

func (c *Cache) Set(ctx context.Context, key string, val []byte) error {
	c.local.Add(key, val)
	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Set(ctx, key, val, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set tile %q in redis: %w", key, err)
	}
	return nil
}

// PurgeLayer drops every cached tile of layer.
func (c *Cache) PurgeLayer(ctx context.Context, layer string) error {
	prefix := layerPrefix(layer)
	for _, k := range c.local.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.local.Remove(k)
		}
	}

	if c.rdb == nil {
		return nil
	}
	iter := c.rdb.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan tiles of layer %s: %w", layer, err)
	}
	if len(batch) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
		return fmt.Errorf("failed to delete tiles of layer %s: %w", layer, err)
	}
	return nil
}

func (c *Cache) Len() int {
	return c.local.Len()
}

func (c *Cache) Close() error {
	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
