package dedupe

import (
	"context"
	"errors"
	"fmt"
	"time"

	rdb "pumpswap-indexer/internal/storage/redis"
)

// RedisDeduper shares seen ids across processes with SETNX + TTL.
type RedisDeduper struct {
	rdb    *rdb.Client
	ttl    time.Duration
	prefix string
}

// Compile-time interface check.
var _ Deduper = (*RedisDeduper)(nil)

// NewRedisDeduper creates a deduper storing keys as prefix + "dedupe:" + id.
func NewRedisDeduper(client *rdb.Client, prefix string, ttl time.Duration) (*RedisDeduper, error) {
	if client == nil {
		return nil, errors.New("redis client is required for the deduper")
	}
	return &RedisDeduper{
		rdb:    client,
		ttl:    ttl,
		prefix: prefix + "dedupe:",
	}, nil
}

// Seen implements Deduper.
func (d *RedisDeduper) Seen(ctx context.Context, id string) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, d.prefix+id, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	// ok=true means the key was new
	return !ok, nil
}

// Forget implements Deduper.
func (d *RedisDeduper) Forget(ctx context.Context, id string) error {
	if err := d.rdb.Del(ctx, d.prefix+id).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
