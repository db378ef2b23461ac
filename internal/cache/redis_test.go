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

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client), mr
}

func TestRedis_SetGetRoundTrip(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	rec := sampleRecord()
	require.NoError(t, c.Set(ctx, "t1", rec, time.Minute))
	assert.True(t, mr.Exists("server:status:t1"))

	got, ok, err := c.Get(ctx, "t1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.Name, got.Name)
	assert.Equal(t, rec.Occupancy(), got.Occupancy())
	assert.Equal(t, rec.Latency, got.Latency)
	assert.True(t, rec.ObservedAt.Equal(got.ObservedAt))
}

func TestRedis_NativeExpiry(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "t1", sampleRecord(), time.Minute))
	mr.FastForward(61 * time.Second)

	_, ok, err := c.Get(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_Invalidate(t *testing.T) {
	c, _ := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "t1", sampleRecord(), time.Minute))
	require.NoError(t, c.Invalidate(ctx, "t1"))
	_, ok, err := c.Get(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_UnavailableBackendReturnsError(t *testing.T) {
	c, mr := newTestRedis(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, ok, err := c.Get(ctx, "t1")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, c.Set(ctx, "t1", sampleRecord(), time.Minute))
}
