package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is an optional distributed invalidation signal for the key
// store's read-through cache. It never holds the source of truth — the
// YAML file does — so a Cache implementation only needs to support
// "forget this key_hash so the next read reloads from disk."
type Cache interface {
	Invalidate(keyHash string)
}

// RedisCache publishes invalidations on a Redis pub/sub channel for
// driftwatchd processes sharing one API_KEYS_PATH. It only publishes;
// nothing in this package subscribes to the channel, so a KeyStore still
// picks up another process's changes through its 60s TTL reload.
type RedisCache struct {
	client  *redis.Client
	channel string
}

// NewRedisCache constructs a RedisCache over client, publishing
// invalidations on channel.
func NewRedisCache(client *redis.Client, channel string) *RedisCache {
	return &RedisCache{client: client, channel: channel}
}

// Invalidate publishes keyHash on the invalidation channel. Publish
// failures are discarded, not returned or logged, since this is a
// performance path only: the TTL reload still applies.
func (r *RedisCache) Invalidate(keyHash string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = r.client.Publish(ctx, r.channel, keyHash).Err()
}
