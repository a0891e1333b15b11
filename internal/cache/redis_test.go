package cache

import (
	"context"
	"fmt"
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
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewRedisStore(client, "", time.Hour)

	require.NoError(t, store.Ping(ctx))

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "weights:abc", []byte(`{"experience":0.4}`)))
	assert.True(t, mr.Exists(DefaultRedisPrefix+"weights:abc"))

	got, ok, err := store.Get(ctx, "weights:abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"experience":0.4}`, string(got))

	mr.FastForward(2 * time.Hour)
	_, ok, err = store.Get(ctx, "weights:abc")
	require.NoError(t, err)
	assert.False(t, ok, "entry should expire with the configured ttl")
}

func TestRedisStorePurgeKeepsForeignKeys(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewRedisStore(client, "test:", 0)

	for i := 0; i < 250; i++ {
		require.NoError(t, store.Set(ctx, fmt.Sprintf("k%d", i), []byte("v")))
	}
	require.NoError(t, mr.Set("other:key", "keep"))

	require.NoError(t, store.Purge(ctx))

	keys := mr.Keys()
	assert.Equal(t, []string{"other:key"}, keys)
}

func TestRedisStoreReportsErrors(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewRedisStore(client, "", 0)
	mr.Close()

	_, _, err := store.Get(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, store.Set(ctx, "k", []byte("v")))
	assert.Error(t, store.Ping(ctx))
}
