package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayCache_CheckAndSet_NewKey(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewReplayCache(client)
	ctx := context.Background()

	ok, err := cache.CheckAndSet(ctx, "charge.success:sig-abc", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "unseen (event, signature) hash should return true")
}

func TestReplayCache_CheckAndSet_Replay(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewReplayCache(client)
	ctx := context.Background()

	ok, err := cache.CheckAndSet(ctx, "charge.success:sig-xyz", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.CheckAndSet(ctx, "charge.success:sig-xyz", 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "replayed (event, signature) hash should return false")
}

func TestReplayCache_CheckAndSet_DifferentKeys(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewReplayCache(client)
	ctx := context.Background()

	ok1, err := cache.CheckAndSet(ctx, "charge.success:sig-111", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok1)

	ok2, err := cache.CheckAndSet(ctx, "refund.processed:sig-111", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok2, "different event with same signature should be a distinct key")
}

func TestReplayCache_CheckAndSet_ExpiredKey(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewReplayCache(client)
	ctx := context.Background()

	ok, err := cache.CheckAndSet(ctx, "charge.success:sig-expire", 1*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	s.FastForward(2 * time.Second)

	ok, err = cache.CheckAndSet(ctx, "charge.success:sig-expire", 1*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "expired replay marker should be accepted again")
}
