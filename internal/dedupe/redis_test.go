package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rdb "pumpswap-indexer/internal/storage/redis"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *rdb.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := &rdb.Client{
		Client: goredis.NewClient(&goredis.Options{Addr: mr.Addr()}),
	}
	t.Cleanup(func() { client.Close() })

	return mr, client
}

func TestNewRedisDeduper_NilClient(t *testing.T) {
	d, err := NewRedisDeduper(nil, "p:", time.Minute)
	assert.Error(t, err)
	assert.Nil(t, d)
}

func TestRedisDeduper_Seen(t *testing.T) {
	mr, client := setupTestRedis(t)
	d, err := NewRedisDeduper(client, "test:", time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	seen, err := d.Seen(ctx, "sig")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.True(t, mr.Exists("test:dedupe:sig"))
	assert.Equal(t, time.Minute, mr.TTL("test:dedupe:sig"))

	seen, err = d.Seen(ctx, "sig")
	require.NoError(t, err)
	assert.True(t, seen)

	mr.FastForward(2 * time.Minute)
	seen, err = d.Seen(ctx, "sig")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisDeduper_Forget(t *testing.T) {
	mr, client := setupTestRedis(t)
	d, err := NewRedisDeduper(client, "test:", time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = d.Seen(ctx, "sig")
	require.NoError(t, err)
	require.NoError(t, d.Forget(ctx, "sig"))
	assert.False(t, mr.Exists("test:dedupe:sig"))

	seen, err := d.Seen(ctx, "sig")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisDeduper_Unavailable(t *testing.T) {
	mr, client := setupTestRedis(t)
	d, err := NewRedisDeduper(client, "test:", time.Minute)
	require.NoError(t, err)

	mr.Close()
	_, err = d.Seen(context.Background(), "sig")
	assert.Error(t, err)
}
