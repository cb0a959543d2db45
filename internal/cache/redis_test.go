package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-intel/internal/model"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedis_GetSet(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	store := NewRedis[model.Location](client, "intel:enrich", "geo", 0)

	_, ok, err := store.Get(ctx, "Ferrari")
	require.NoError(t, err)
	assert.False(t, ok)

	loc := model.Location{Lat: 44.53, Lon: 10.86, Country: "Italia", Found: true}
	require.NoError(t, store.Set(ctx, "Ferrari", loc))

	assert.True(t, mr.Exists("intel:enrich:geo:Ferrari"))

	got, ok, err := store.Get(ctx, "Ferrari")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, loc, got)
}

func TestRedis_NegativeResultIsStored(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	store := NewRedis[model.Location](client, "", "geo", 0)
	sentinel := model.Location{Country: "Unknown"}
	require.NoError(t, store.Set(ctx, "Nowhere Ltd", sentinel))

	got, ok, err := store.Get(ctx, "Nowhere Ltd")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, got.Found)
}

func TestRedis_TTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	store := NewRedis[model.Ownership](client, "intel", "ip", time.Hour)
	require.NoError(t, store.Set(ctx, "203.0.113.5", model.Ownership{ASN: "64500"}))

	assert.Equal(t, time.Hour, mr.TTL("intel:ip:203.0.113.5"))

	mr.FastForward(2 * time.Hour)
	_, ok, err := store.Get(ctx, "203.0.113.5")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_CorruptEntry(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("intel:ip:1.1.1.1", "not json"))
	store := NewRedis[model.Ownership](client, "intel", "ip", 0)

	_, ok, err := store.Get(ctx, "1.1.1.1")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0", 3, 5)
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, 5, client.Options().PoolSize)

	_, err = NewRedisClient(context.Background(), "not-a-url://", 0, 0)
	assert.Error(t, err)
}
