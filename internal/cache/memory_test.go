package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2, 0)

	value := []byte("v1")
	require.NoError(t, store.Set(ctx, "a", value))
	value[0] = 'x'

	got, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), got, "stored value must not alias the caller's slice")

	require.NoError(t, store.Set(ctx, "b", []byte("v2")))
	require.NoError(t, store.Set(ctx, "c", []byte("v3")))

	_, ok, _ = store.Get(ctx, "a")
	assert.False(t, ok, "least recently used entry should be evicted")
	assert.Equal(t, 2, store.Len())

	require.NoError(t, store.Purge(ctx))
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0, 20*time.Millisecond)

	require.NoError(t, store.Set(ctx, "k", []byte("v")))
	_, ok, _ := store.Get(ctx, "k")
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)

	_, ok, _ = store.Get(ctx, "k")
	assert.False(t, ok, "entry should expire after ttl")
}
