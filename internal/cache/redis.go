package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// InvalidationChannel is the pub/sub topic other resolverd instances
// subscribe to so a cache write on one node can be noticed by the rest of
// the fleet.
const InvalidationChannel = "resolverd:invalidation"

// RedisRemote is a Remote backed by go-redis. It is purely additive: the
// in-process Cache remains the source of truth for what this resolver will
// answer with, and RedisRemote only shortens cold starts and lets peers
// hear about invalidations.
type RedisRemote struct {
	client *redis.Client
}

// NewRedisRemote dials addr lazily (go-redis connects on first use).
func NewRedisRemote(addr, password string, db int) *RedisRemote {
	return &RedisRemote{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (r *RedisRemote) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, "resolverd:"+key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

func (r *RedisRemote) Set(ctx context.Context, key string, data []byte, ttl time.Duration) {
	r.client.Set(ctx, "resolverd:"+key, data, ttl)
}

// Invalidate publishes key to InvalidationChannel; it does not delete the
// key from Redis itself, mirroring the pub/sub-only design this is
// adapted from.
func (r *RedisRemote) Invalidate(ctx context.Context, key string) error {
	return r.client.Publish(ctx, InvalidationChannel, key).Err()
}

// Ping checks connectivity, used at startup to fail fast on misconfigured
// addresses rather than silently degrading to local-only caching.
func (r *RedisRemote) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Subscribe returns a channel of invalidation keys published by peers.
func (r *RedisRemote) Subscribe(ctx context.Context) <-chan *redis.Message {
	return r.client.Subscribe(ctx, InvalidationChannel).Channel()
}
