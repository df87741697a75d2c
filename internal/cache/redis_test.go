package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestNewRedisClient_EmptyAddress(t *testing.T) {
	client, err := NewRedisClient(RedisConfig{})
	assert.ErrorIs(t, err, ErrEmptyAddress)
	assert.Nil(t, client)
}

func TestRedisCache(t *testing.T) {
	_, client := newTestRedis(t)
	exercise(t, NewRedisCache(client, "industria:", nil))
}

func TestRedisCache_TTL(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewRedisCache(client, "industria:", nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("x"), time.Minute))
	require.NoError(t, c.Set(ctx, "forever", []byte("y"), NoTTL))

	assert.Equal(t, time.Minute, mr.TTL("industria:short"))
	assert.Equal(t, time.Duration(0), mr.TTL("industria:forever"))

	mr.FastForward(2 * time.Minute)
	_, found := c.Get(ctx, "short")
	assert.False(t, found)
	_, found = c.Get(ctx, "forever")
	assert.True(t, found)
}

func TestRedisCache_ClearOnlyTouchesPrefix(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewRedisCache(client, "industria:", nil)
	ctx := context.Background()

	require.NoError(t, mr.Set("other:key", "keep"))
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.Set(ctx, k, []byte(k), NoTTL))
	}

	require.NoError(t, c.Clear(ctx))

	assert.False(t, mr.Exists("industria:a"))
	assert.False(t, mr.Exists("industria:c"))
	assert.True(t, mr.Exists("other:key"))
}

func TestRedisCache_ServerErrorIsMiss(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewRedisCache(client, "industria:", nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), NoTTL))
	mr.SetError("ERR simulated failure")

	_, found := c.Get(ctx, "k")
	assert.False(t, found)
	assert.Error(t, c.Set(ctx, "k", []byte("v"), NoTTL))
}
