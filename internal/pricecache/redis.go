package pricecache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	rdb "pumpswap-indexer/internal/storage/redis"
)

// RedisTier shares prices across processes through Redis string keys.
type RedisTier struct {
	rdb    *rdb.Client
	prefix string
}

// Compile-time interface check.
var _ SharedTier = (*RedisTier)(nil)

// NewRedisTier creates a tier storing keys as prefix + "price:" + mint.
func NewRedisTier(client *rdb.Client, prefix string) (*RedisTier, error) {
	if client == nil {
		return nil, errors.New("redis client is required for the price tier")
	}
	return &RedisTier{rdb: client, prefix: prefix + "price:"}, nil
}

// Get returns the shared price for mint.
func (t *RedisTier) Get(ctx context.Context, mint string) (float64, bool, error) {
	v, err := t.rdb.Get(ctx, t.prefix+mint).Float64()
	if errors.Is(err, goredis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get price: %w", err)
	}
	return v, true, nil
}

// Set stores price with the given expiry.
func (t *RedisTier) Set(ctx context.Context, mint string, price float64, ttl time.Duration) error {
	val := strconv.FormatFloat(price, 'g', -1, 64)
	if err := t.rdb.Set(ctx, t.prefix+mint, val, ttl).Err(); err != nil {
		return fmt.Errorf("redis set price: %w", err)
	}
	return nil
}
