package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV is a Redis-backed session store. Expiry is delegated to Redis key TTLs.
type KV struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewKV wraps rdb. prefix namespaces every key, so several deployments can
// share one Redis database.
func NewKV(rdb redis.UniversalClient, prefix string) *KV {
	return &KV{rdb: rdb, prefix: prefix}
}

func (k *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := k.rdb.Get(ctx, k.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (k *KV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return k.rdb.Set(ctx, k.prefix+key, value, ttl).Err()
}

func (k *KV) Del(ctx context.Context, key string) error {
	return k.rdb.Del(ctx, k.prefix+key).Err()
}

// Ping reports whether Redis is reachable.
func (k *KV) Ping(ctx context.Context) error {
	return k.rdb.Ping(ctx).Err()
}
